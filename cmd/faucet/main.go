package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	// Flags read their EnvVars during parsing, so .env must be loaded first.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "failed to load .env:", err)
		os.Exit(1)
	}

	app := &cli.App{
		Name:  "faucet",
		Usage: "Two-chain token faucet with a BSC to SocChain bridge",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Serve the faucet and bridge HTTP API",
				Flags:  runFlags(),
				Action: run,
			},
			{
				Name:   "migrate",
				Usage:  "Create the claims and bridge attempt tables",
				Flags:  storeFlags(),
				Action: migrate,
			},
			{
				Name:   "history",
				Usage:  "Print the claim history of an address on one chain",
				Flags:  historyFlags(),
				Action: history,
			},
			{
				Name:   "gen-account",
				Usage:  "Generate a new faucet account",
				Action: genAccount,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
