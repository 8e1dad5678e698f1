package commands

import (
	"fmt"

	"git.home.luguber.info/inful/docweave/internal/version"
)

// VersionCmd implements the 'version' command.
type VersionCmd struct{}

func (v *VersionCmd) Run(g *Global) error {
	_, _ = fmt.Fprintln(g.Out, version.String())
	return nil
}
