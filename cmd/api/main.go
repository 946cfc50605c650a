package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"landscape-job-service/internal/config"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug mode." env:"DEBUG"`
		Version kong.VersionFlag
		Serve   ServeCmd `cmd:"" default:"withargs" help:"Start the job API"`
	}
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("api"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&config.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
