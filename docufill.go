package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/docufill/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "docufill",
		Usage:   "AI-assisted legal document auto-fill",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Human-readable log output",
			},
		},
		Commands: []*cli.Command{
			cmd.AnalyzeCommand(),
			cmd.FillCommand(),
			cmd.EntitiesCommand(),
			cmd.HealthCommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
