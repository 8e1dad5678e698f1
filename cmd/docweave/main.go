package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docweave/cmd/docweave/commands"
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := commands.NewGlobal(os.Stdout, os.Stderr)
	parser := kong.Parse(cli,
		kong.Name("docweave"),
		kong.Description("Assemble the markdown reachable from each repository's README into one book."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)
	err := parser.Run(global, cli)
	os.Exit(errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).Report(os.Stderr, err))
}
