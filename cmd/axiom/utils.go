// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/inconshreveable/log15"
	isatty "github.com/mattn/go-isatty"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/axiomchain/axiom/genesis"
	"github.com/axiomchain/axiom/lvldb"
	"github.com/axiomchain/axiom/metrics"
	"github.com/axiomchain/axiom/session"
)

func fatal(args ...interface{}) {
	fmt.Fprint(os.Stderr, "Fatal: ")
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(1)
}

func fatalf(format string, args ...interface{}) {
	fatal(fmt.Sprintf(format, args...))
}

func initLogger(ctx *cli.Context) {
	logLevel := ctx.Int(verbosityFlag.Name)
	format := log15.LogfmtFormat()
	if isatty.IsTerminal(os.Stderr.Fd()) {
		format = log15.TerminalFormat()
	}
	log15.Root().SetHandler(log15.LvlFilterHandler(
		log15.Lvl(logLevel),
		log15.StreamHandler(os.Stderr, format),
	))
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".axiom")
	}
	return ""
}

func openMainDB(ctx *cli.Context) *lvldb.LevelDB {
	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		fatalf("unable to infer default data dir, use -%s to specify one", dataDirFlag.Name)
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		fatalf("create data dir at '%v': %v", dataDir, err)
	}
	dir := filepath.Join(dataDir, "main.db")
	db, err := lvldb.New(dir, lvldb.Options{})
	if err != nil {
		fatalf("open main database at '%v': %v", dir, err)
	}
	return db
}

// selectGenesis resolves the --network flag into bootstrap keys and an
// optional policy override from the genesis file.
func selectGenesis(ctx *cli.Context) ([]session.GenesisKey, *genesis.Config) {
	network := ctx.String(networkFlag.Name)
	if network == "dev" {
		keys, err := genesis.Devnet(keyTypes)
		if err != nil {
			fatal(err)
		}
		return keys, nil
	}

	config, err := genesis.Load(network)
	if err != nil {
		fatal(err)
	}
	keys, err := config.GenesisKeys(keyTypes)
	if err != nil {
		fatal(err)
	}
	return keys, config
}

// selectPolicy builds the session policy, flags taking precedence over the
// genesis file.
func selectPolicy(ctx *cli.Context, config *genesis.Config) session.Policy {
	period := uint32(0)
	offset := uint32(0)
	if config != nil {
		period = config.SessionPeriod
		offset = config.SessionOffset
	}
	if ctx.IsSet(sessionPeriodFlag.Name) {
		period = uint32(ctx.Uint64(sessionPeriodFlag.Name))
	}
	if ctx.IsSet(sessionOffsetFlag.Name) {
		offset = uint32(ctx.Uint64(sessionOffsetFlag.Name))
	}
	if period == 0 {
		return nil // engine default
	}
	policy, err := session.NewPeriodic(period, offset)
	if err != nil {
		fatal(err)
	}
	return policy
}

func startMetricsServer(ctx *cli.Context) func() {
	if !ctx.Bool(enableMetricsFlag.Name) {
		return func() {}
	}
	metrics.InitializePrometheusMetrics()
	srv := &http.Server{
		Addr:    ctx.String(metricsAddrFlag.Name),
		Handler: metrics.HTTPHandler(),
	}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Warn("metrics server stopped", "err", err)
		}
	}()
	return func() { srv.Close() }
}

func handleExitSignal() context.Context {
	exitSignalCh := make(chan os.Signal, 1)
	signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := <-exitSignalCh
		log.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return ctx
}
