// Command rampd runs the order-coordination agent as a standalone process:
// it loads configuration and any prior snapshot from disk, wires up an
// Agent, and saves a fresh snapshot back to disk on graceful shutdown.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/crypto"
	gethlog "github.com/ethereum/go-ethereum/log"
	"github.com/rampforge/agent/config"
	"github.com/rampforge/agent/rampagent"
	"github.com/rampforge/agent/signer"
	"github.com/urfave/cli/v2"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "path to the JSON configuration file",
		Value: "rampd.json",
	}
	snapshotFlag = &cli.StringFlag{
		Name:  "snapshot",
		Usage: "path to the heap snapshot written on graceful shutdown and read on startup",
		Value: "rampd.snapshot.json",
	}
	signingKeyFlag = &cli.StringFlag{
		Name:    "signing-key",
		Usage:   "hex-encoded secp256k1 private key backing the signing oracle; if unset, a fresh key is generated and logged once",
		EnvVars: []string{"RAMPD_SIGNING_KEY"},
	}
)

func main() {
	app := &cli.App{
		Name:  "rampd",
		Usage: "fiat/crypto ramp order-coordination agent",
		Flags: []cli.Flag{configFlag, snapshotFlag, signingKeyFlag},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		gethlog.Crit("rampd failed", "err", err)
	}
}

func run(ctx *cli.Context) error {
	log := gethlog.New("component", "rampd")

	cfg, err := config.Load(ctx.String(configFlag.Name))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	oracle, err := loadOracle(ctx.String(signingKeyFlag.Name), log)
	if err != nil {
		return fmt.Errorf("loading signing oracle: %w", err)
	}

	agent, err := rampagent.New(context.Background(), cfg, oracle, nil)
	if err != nil {
		return fmt.Errorf("constructing agent: %w", err)
	}

	snapshotPath := ctx.String(snapshotFlag.Name)
	if snap, err := loadSnapshot(snapshotPath); err != nil {
		log.Warn("no prior snapshot restored", "path", snapshotPath, "err", err)
	} else {
		agent.Restore(snap)
		log.Info("restored snapshot", "path", snapshotPath)
	}

	log.Info("rampd started", "chains", len(cfg.Chains))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down, writing snapshot", "path", snapshotPath)
	if err := saveSnapshot(snapshotPath, agent.Snapshot()); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// loadOracle parses hexKey as a secp256k1 private key, or generates and logs
// a fresh one if hexKey is empty — first-run bootstrapping only, per
// signer.GenerateLocalOracle's own doc comment; a production deployment
// should supply signing-key (or replace LocalOracle with an HSM-backed
// Oracle implementation).
func loadOracle(hexKey string, log gethlog.Logger) (signer.Oracle, error) {
	if hexKey == "" {
		oracle, err := signer.GenerateLocalOracle()
		if err != nil {
			return nil, err
		}
		log.Warn("no signing key configured, generated an ephemeral one", "pubkey", fmt.Sprintf("%x", oracle.PublicKey()))
		return oracle, nil
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parsing signing key: %w", err)
	}
	return signer.NewLocalOracle(key), nil
}

func loadSnapshot(path string) (config.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return config.Snapshot{}, err
	}
	return config.UnmarshalSnapshot(data)
}

func saveSnapshot(path string, snap config.Snapshot) error {
	data, err := config.MarshalSnapshot(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
