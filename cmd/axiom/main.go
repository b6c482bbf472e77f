// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"os"

	"github.com/inconshreveable/log15"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/axiomchain/axiom/axiom"
	"github.com/axiomchain/axiom/node"
	"github.com/axiomchain/axiom/session"
)

var (
	version   string
	gitCommit string
	gitTag    string
	log       = log15.New()
)

// keyTypes fixes the session key schema of the network.
var keyTypes = []axiom.KeyTypeID{axiom.KeyTypeAuthor, axiom.KeyTypeFinality}

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "Axiom",
		Usage:     "Session rotation node of the Axiom network",
		Copyright: "2024 The Axiom developers",
		Flags: []cli.Flag{
			networkFlag,
			dataDirFlag,
			apiAddrFlag,
			apiCorsFlag,
			sessionPeriodFlag,
			sessionOffsetFlag,
			verbosityFlag,
			pprofFlag,
			enableMetricsFlag,
			metricsAddrFlag,
		},
		Action: defaultAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	defer func() { log.Info("exited") }()

	initLogger(ctx)

	stopMetrics := startMetricsServer(ctx)
	defer stopMetrics()

	genesisKeys, config := selectGenesis(ctx)

	mainDB := openMainDB(ctx)
	defer func() { log.Info("closing main database..."); mainDB.Close() }()

	engine, err := session.New(mainDB, session.Options{
		KeyTypes: keyTypes,
		Policy:   selectPolicy(ctx, config),
		Verifier: session.Secp256k1Verifier{},
		Liveness: session.NewRefCounter(mainDB),
	})
	if err != nil {
		return err
	}

	validators, err := engine.Validators()
	if err != nil {
		return err
	}
	if len(validators) == 0 {
		if err := engine.Bootstrap(genesisKeys); err != nil {
			return err
		}
		log.Info("bootstrapped genesis session", "validators", len(genesisKeys))
	}

	n, err := node.New(mainDB, engine, node.Options{
		APIAddr:        ctx.String(apiAddrFlag.Name),
		AllowedOrigins: ctx.String(apiCorsFlag.Name),
		PprofOn:        ctx.Bool(pprofFlag.Name),
	})
	if err != nil {
		return err
	}
	return n.Run(handleExitSignal())
}
