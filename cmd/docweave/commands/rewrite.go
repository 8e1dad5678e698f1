package commands

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/docweave/internal/markdown"
	"git.home.luguber.info/inful/docweave/internal/rewrite"
)

// RewriteCmd implements the 'rewrite' command.
type RewriteCmd struct {
	Dir       string `arg:"" type:"existingdir" help:"Directory whose files are rewritten in place"`
	Namespace string `short:"n" required:"" help:"Prefix for relative link targets"`
	DryRun    bool   `help:"Report what would change without writing"`
	HTMLLinks bool   `name:"html-links" help:"Also rewrite href and src attributes in raw HTML"`
}

func (r *RewriteCmd) Run(g *Global) error {
	results, err := rewrite.Dir(r.Dir, r.Namespace, rewrite.Options{
		Markdown: markdown.Options{HTMLLinks: r.HTMLLinks},
		DryRun:   r.DryRun,
		Logger:   g.Logger,
	})

	total, files := 0, 0
	for _, res := range results {
		if res.Rewritten == 0 {
			continue
		}
		rel, relErr := filepath.Rel(r.Dir, res.Path)
		if relErr != nil {
			rel = res.Path
		}
		_, _ = fmt.Fprintf(g.Out, "%s\t%d\n", filepath.ToSlash(rel), res.Rewritten)
		total += res.Rewritten
		files++
	}
	verb := "rewrote"
	if r.DryRun {
		verb = "would rewrite"
	}
	_, _ = fmt.Fprintf(g.Out, "%s %d links in %d files\n", verb, total, files)
	return err
}
