package main

import (
	"strings"

	"github.com/spf13/viper"
)

const version = "0.1.0"

// envReplacer replaces `-` with `_`.
// This is used to map flags like `--my-param` to environment variables like
// `MY_PARAM`.
var envReplacer = strings.NewReplacer("-", "_")

func init() {
	viper.SetEnvPrefix("BRIDGED")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(envReplacer)
}
