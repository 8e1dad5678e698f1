package commands

import (
	"fmt"
	"os"

	"git.home.luguber.info/inful/docweave/internal/closure"
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/markdown"
)

// ClosureCmd implements the 'closure' command.
type ClosureCmd struct {
	Dir                string `arg:"" type:"existingdir" help:"Repository checkout"`
	Start              string `help:"Start file relative to the directory instead of the README"`
	JSON               bool   `name:"json" help:"Print the result as JSON"`
	HTMLLinks          bool   `name:"html-links" help:"Also follow href and src attributes in raw HTML"`
	NoFragmentFallback bool   `help:"Do not retry targets without their #fragment or ?query"`
	Strict             bool   `help:"Log broken links as warnings"`
}

func (c *ClosureCmd) Run(g *Global) error {
	w := closure.NewWalker(os.DirFS(c.Dir),
		closure.WithLogger(g.Logger),
		closure.WithMarkdownOptions(markdown.Options{HTMLLinks: c.HTMLLinks}),
		closure.WithFragmentFallback(!c.NoFragmentFallback),
		closure.WithStrict(c.Strict),
	)

	var (
		res closure.Result
		err error
	)
	if c.Start != "" {
		res, err = w.Compute(c.Start, nil)
	} else {
		_, res, err = w.ComputeRepository()
	}
	if len(res.Files) == 0 && err != nil {
		return err
	}
	if err != nil {
		g.Logger.Warn("Some linked files could not be read", logfields.Error(err))
	}
	if !res.OK {
		return errors.MarkdownError("start file is not valid markdown").
			WithContext("path", c.Dir).
			Build()
	}

	if c.JSON {
		return encodeJSON(g, res)
	}
	for _, f := range res.Files {
		_, _ = fmt.Fprintln(g.Out, f)
	}
	for _, l := range res.Broken {
		_, _ = fmt.Fprintf(g.Out, "broken: %s -> %s\n", l.Source, l.Target)
	}
	for _, l := range res.Skipped {
		_, _ = fmt.Fprintf(g.Out, "outside: %s -> %s\n", l.Source, l.Target)
	}
	return nil
}
