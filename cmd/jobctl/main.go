package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"landscape-job-service/cmd/jobctl/internal/commands"
	"landscape-job-service/internal/config"
)

var (
	version = "dev"
	cli     struct {
		Exec    commands.ExecCmd  `cmd:"" help:"Apply a lifecycle action to a job"`
		Watch   commands.WatchCmd `cmd:"" help:"Watch a live job list"`
		Token   commands.TokenCmd `cmd:"" help:"Generate a development access token"`
		Debug   bool              `help:"Enable debug mode." env:"DEBUG"`
		Version kong.VersionFlag
	}
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("jobctl"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&config.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
