package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/bitvmbridge/bridged/internal/config"
	"github.com/bitvmbridge/bridged/internal/core/application"
	btcdrpc "github.com/bitvmbridge/bridged/internal/infrastructure/blockchain/btcd"
	"github.com/bitvmbridge/bridged/internal/infrastructure/db"
	"github.com/bitvmbridge/bridged/internal/interface/rest"
	"github.com/bitvmbridge/bridged/pkg/actor"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:    "bridged",
		Usage:   "bitvm bridge verifier daemon",
		Flags:   config.Flags,
		Action:  runDaemon,
		Version: version,
		Commands: []*cli.Command{
			depositAddressCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runDaemon(c *cli.Context) error {
	cfg, err := config.LoadConfig(c)
	if err != nil {
		log.Fatalf("invalid config: %s", err)
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %s", err)
	}

	net := cfg.NetworkParams()
	signer, err := actor.FromHex(cfg.SignerKey, net)
	if err != nil {
		log.Fatalf("failed to load signer key: %s", err)
	}
	verifierPks, err := cfg.VerifierKeys()
	if err != nil {
		log.Fatal(err)
	}
	operatorPk, err := cfg.OperatorKey()
	if err != nil {
		log.Fatal(err)
	}

	repoManager, err := db.NewService(db.ServiceConfig{
		DataStoreType:   cfg.DbType,
		DataStoreConfig: []interface{}{cfg.DbDir, log.New()},
	})
	if err != nil {
		log.Fatalf("failed to open db: %s", err)
	}

	btcRpc, err := btcdrpc.NewBitcoinRpc(
		cfg.BitcoindRpcHost, cfg.BitcoindRpcUser, cfg.BitcoindRpcPass,
	)
	if err != nil {
		log.Fatalf("failed to connect to bitcoind: %s", err)
	}

	appSvc, err := application.NewService(
		signer, verifierPks, operatorPk,
		repoManager, btcRpc, net, cfg.ConfirmationThreshold,
	)
	if err != nil {
		log.Fatalf("failed to create verifier service: %s", err)
	}

	svc := rest.NewService(cfg.Port, appSvc)

	log.Info("starting service...")
	if err := svc.Start(); err != nil {
		log.Fatalf("failed to start service: %s", err)
	}

	log.RegisterExitHandler(func() {
		svc.Stop()
		repoManager.Close()
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(
		sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGHUP, os.Interrupt,
	)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)
	return nil
}
