package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Server  ServerCmd        `cmd:"" help:"Run the Okey game server"`
	Verify  VerifyCmd        `cmd:"" help:"Verify a provably-fair reveal record"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("okeyd"),
		kong.Description("Authoritative real-time Okey game server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
