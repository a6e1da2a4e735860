package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/urfave/cli/v2"
)

const (
	// DefaultPort is the public port of the JSON-over-HTTP interface.
	DefaultPort = 7100

	defaultLogLevel              = 4 // info
	defaultDbType                = "badger"
	defaultNetwork               = "mainnet"
	defaultConfirmationThreshold = 6
)

var (
	defaultDatadir = btcutil.AppDataDir("bridged", false)

	supportedDbs = map[string]struct{}{
		"badger": {},
	}
	supportedNetworks = map[string]*chaincfg.Params{
		"mainnet": &chaincfg.MainNetParams,
		"testnet": &chaincfg.TestNet3Params,
		"signet":  &chaincfg.SigNetParams,
		"regtest": &chaincfg.RegressionNetParams,
	}
)

// env returns a list of strings prefixed with `BRIDGED_`.
// This is used as a syntax sugar for defining env vars.
func env(values ...string) []string {
	envs := make([]string, len(values))
	for i, value := range values {
		envs[i] = fmt.Sprintf("BRIDGED_%s", value)
	}
	return envs
}

var (
	Datadir = &cli.StringFlag{
		Usage: "Directory to store data",
		Name:  "datadir", EnvVars: env("DATADIR"),
		Value: defaultDatadir,
	}

	Port = &cli.UintFlag{
		Usage: "Port to listen on",
		Name:  "port", EnvVars: env("PORT"),
		Value: uint(DefaultPort),
	}

	LogLevel = &cli.IntFlag{
		Usage: "Logging level (0-6, where 6 is trace)",
		Name:  "log-level", EnvVars: env("LOG_LEVEL"),
		Value: defaultLogLevel,
	}

	Network = &cli.StringFlag{
		Usage: "Bitcoin network (mainnet, testnet, signet, regtest)",
		Name:  "network", EnvVars: env("NETWORK"),
		Value: defaultNetwork,
	}

	DbType = &cli.StringFlag{
		Usage: "Database type (badger)",
		Name:  "db-type", EnvVars: env("DB_TYPE"),
		Value: defaultDbType,
	}

	BitcoindRpcHost = &cli.StringFlag{
		Usage: "Bitcoind JSON-RPC host:port",
		Name:  "bitcoind-rpc-host", EnvVars: env("BITCOIND_RPC_HOST"),
		Value: "127.0.0.1:8332",
	}

	BitcoindRpcUser = &cli.StringFlag{
		Usage: "Bitcoind JSON-RPC username",
		Name:  "bitcoind-rpc-user", EnvVars: env("BITCOIND_RPC_USER"),
	}

	BitcoindRpcPass = &cli.StringFlag{
		Usage: "Bitcoind JSON-RPC password",
		Name:  "bitcoind-rpc-pass", EnvVars: env("BITCOIND_RPC_PASS"),
	}

	SignerKey = &cli.StringFlag{
		Usage: "Hex-encoded secret key of this verifier",
		Name:  "signer-key", EnvVars: env("SIGNER_KEY"),
	}

	VerifierPubkeys = &cli.StringFlag{
		Usage: "Comma-separated list of x-only verifier public keys, in protocol order",
		Name:  "verifier-pubkeys", EnvVars: env("VERIFIER_PUBKEYS"),
	}

	OperatorPubkey = &cli.StringFlag{
		Usage: "X-only public key of the bridge operator",
		Name:  "operator-pubkey", EnvVars: env("OPERATOR_PUBKEY"),
	}

	ConfirmationThreshold = &cli.Int64Flag{
		Usage: "Confirmations required on a deposit UTXO before nonces are released",
		Name:  "confirmation-threshold", EnvVars: env("CONFIRMATION_THRESHOLD"),
		Value: defaultConfirmationThreshold,
	}
)

var Flags = []cli.Flag{
	Datadir,
	Port,
	LogLevel,
	Network,
	DbType,
	BitcoindRpcHost,
	BitcoindRpcUser,
	BitcoindRpcPass,
	SignerKey,
	VerifierPubkeys,
	OperatorPubkey,
	ConfirmationThreshold,
}

type Config struct {
	Datadir  string
	Port     uint32
	LogLevel int
	Network  string
	DbType   string
	DbDir    string

	BitcoindRpcHost string
	BitcoindRpcUser string
	BitcoindRpcPass string

	SignerKey             string
	VerifierPubkeys       []string
	OperatorPubkey        string
	ConfirmationThreshold int64
}

func LoadConfig(c *cli.Context) (*Config, error) {
	if err := initDatadir(c); err != nil {
		return nil, fmt.Errorf("failed to create datadir: %s", err)
	}

	var verifierPubkeys []string
	if raw := c.String(VerifierPubkeys.Name); len(raw) > 0 {
		for _, pk := range strings.Split(raw, ",") {
			verifierPubkeys = append(verifierPubkeys, strings.TrimSpace(pk))
		}
	}

	return &Config{
		Datadir:               c.String(Datadir.Name),
		Port:                  uint32(c.Uint(Port.Name)),
		LogLevel:              c.Int(LogLevel.Name),
		Network:               c.String(Network.Name),
		DbType:                c.String(DbType.Name),
		DbDir:                 filepath.Join(c.String(Datadir.Name), "db"),
		BitcoindRpcHost:       c.String(BitcoindRpcHost.Name),
		BitcoindRpcUser:       c.String(BitcoindRpcUser.Name),
		BitcoindRpcPass:       c.String(BitcoindRpcPass.Name),
		SignerKey:             c.String(SignerKey.Name),
		VerifierPubkeys:       verifierPubkeys,
		OperatorPubkey:        c.String(OperatorPubkey.Name),
		ConfirmationThreshold: c.Int64(ConfirmationThreshold.Name),
	}, nil
}

func initDatadir(c *cli.Context) error {
	datadir := c.String(Datadir.Name)
	if _, err := os.Stat(datadir); os.IsNotExist(err) {
		return os.MkdirAll(datadir, os.ModeDir|0o755)
	}
	return nil
}

func (c *Config) Validate() error {
	if _, ok := supportedDbs[c.DbType]; !ok {
		return fmt.Errorf("db type not supported, please select one of: badger")
	}
	if _, ok := supportedNetworks[c.Network]; !ok {
		return fmt.Errorf(
			"network not supported, please select one of: mainnet, testnet, signet, regtest",
		)
	}
	if len(c.SignerKey) == 0 {
		return fmt.Errorf("missing signer key")
	}
	if len(c.VerifierPubkeys) < 2 {
		return fmt.Errorf("at least 2 verifier pubkeys are required")
	}
	if len(c.OperatorPubkey) == 0 {
		return fmt.Errorf("missing operator pubkey")
	}
	if c.ConfirmationThreshold < 1 {
		return fmt.Errorf("confirmation threshold must be at least 1")
	}
	if _, err := c.VerifierKeys(); err != nil {
		return err
	}
	if _, err := c.OperatorKey(); err != nil {
		return err
	}
	return nil
}

// NetworkParams resolves the configured network name.
func (c *Config) NetworkParams() *chaincfg.Params {
	return supportedNetworks[c.Network]
}

// VerifierKeys parses the configured x-only verifier set, preserving the
// configured order. Every participant must use the same order for key and
// nonce aggregation.
func (c *Config) VerifierKeys() ([]*btcec.PublicKey, error) {
	keys := make([]*btcec.PublicKey, 0, len(c.VerifierPubkeys))
	for i, pkHex := range c.VerifierPubkeys {
		pk, err := parseXOnlyKey(pkHex)
		if err != nil {
			return nil, fmt.Errorf("invalid verifier pubkey at index %d: %s", i, err)
		}
		keys = append(keys, pk)
	}
	return keys, nil
}

func (c *Config) OperatorKey() (*btcec.PublicKey, error) {
	pk, err := parseXOnlyKey(c.OperatorPubkey)
	if err != nil {
		return nil, fmt.Errorf("invalid operator pubkey: %s", err)
	}
	return pk, nil
}

func parseXOnlyKey(pkHex string) (*btcec.PublicKey, error) {
	buf, err := hex.DecodeString(pkHex)
	if err != nil {
		return nil, err
	}
	return schnorr.ParsePubKey(buf)
}
