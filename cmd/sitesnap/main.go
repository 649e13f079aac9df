package main

import (
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sitesnap/cmd/sitesnap/commands"
	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesnap/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("sitesnap"),
		kong.Description("Freeze a content-managed site into static files and publish them."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	global := commands.NewGlobal(os.Stdout)
	if err := parser.Run(global, cli); err != nil {
		errors.NewCLIErrorAdapter(cli.Verbose, nil).HandleError(err)
	}
}
