package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/wolfeidau/shortlink/cmd/server/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug mode."`
		Version kong.VersionFlag
		Serve   commands.ServeCmd   `cmd:"" help:"Start the HTTP server"`
		Cleanup commands.CleanupCmd `cmd:"" help:"Delete expired sessions, lockouts, rate limit windows and challenges"`
		Admin   commands.AdminCmd   `cmd:"" help:"Manage admin accounts"`
	}
)

func main() {
	// A missing .env file is fine, the environment is used as is.
	_ = godotenv.Load()

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
