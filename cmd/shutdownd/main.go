package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"shutdownd/internal/core"
)

var version = "dev"

func main() {
	app := cli.App{
		Name:    "shutdownd",
		Usage:   "automated maintenance-restart daemon",
		Version: version,
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "config, c",
				Value: "./config.yaml",
				Usage: "path to config file (yaml or json)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "shutdownd: %s\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := core.NewApp(c.String("config"))
	if err != nil {
		return err
	}

	if err := app.Run(ctx); err != nil {
		_ = app.Stop(context.Background())
		return err
	}
	return app.Stop(context.Background())
}
