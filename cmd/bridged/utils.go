package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bitvmbridge/bridged/internal/config"
	"github.com/urfave/cli/v2"
)

const (
	urlFlagName        = "url"
	userPubkeyFlagName = "user-pubkey"

	timeout = 10 * time.Second
)

var (
	urlFlag = &cli.StringFlag{
		Name:  urlFlagName,
		Usage: "the url where to reach the verifier daemon",
		Value: fmt.Sprintf("http://127.0.0.1:%d", config.DefaultPort),
	}
	userPubkeyFlag = &cli.StringFlag{
		Name:     userPubkeyFlagName,
		Usage:    "hex-encoded x-only public key of the depositor",
		Required: true,
	}

	depositAddressCmd = &cli.Command{
		Name:   "deposit-address",
		Usage:  "Derive the deposit address for a user's public key",
		Flags:  []cli.Flag{urlFlag, userPubkeyFlag},
		Action: depositAddressAction,
	}
)

type depositAddress struct {
	Address string `json:"address"`
}

func depositAddressAction(c *cli.Context) error {
	url := fmt.Sprintf(
		"%s/v1/deposit-address?user_pubkey=%s",
		c.String(urlFlagName), c.String(userPubkeyFlagName),
	)
	result := &depositAddress{}
	if err := getJSON(url, result); err != nil {
		return err
	}

	fmt.Println(result.Address)
	return nil
}

func getJSON(url string, result interface{}) error {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	// nolint
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s", buf)
	}

	return json.Unmarshal(buf, result)
}
