package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/docweave/internal/config"
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/state"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	ID    string `arg:"" optional:"" help:"Show one run in detail"`
	Limit int    `short:"n" default:"20" help:"Number of runs to list"`
	JSON  bool   `name:"json" help:"Print as JSON"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	if !cfg.State.Enabled {
		return errors.ConfigError("run history is disabled (set state.enabled)").
			WithContext("path", root.Config).
			UserAction().
			Build()
	}
	store, err := state.Open(cfg.State.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if h.ID != "" {
		detail, err := store.GetRun(ctx, h.ID)
		if err != nil {
			return err
		}
		if h.JSON {
			return encodeJSON(g, detail)
		}
		printRunDetail(g, detail)
		return nil
	}

	runs, err := store.ListRuns(ctx, h.Limit)
	if err != nil {
		return err
	}
	if h.JSON {
		if runs == nil {
			runs = []state.Run{}
		}
		return encodeJSON(g, runs)
	}
	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSTATUS\tSTARTED\tREPOSITORIES\tFILES\tERROR")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.Status, r.StartedAt.Format(time.RFC3339), r.Repositories, r.Files, r.Error)
	}
	return tw.Flush()
}

func printRunDetail(g *Global, d *state.RunDetail) {
	_, _ = fmt.Fprintf(g.Out, "run %s: %s\n", d.ID, d.Status)
	_, _ = fmt.Fprintf(g.Out, "started:  %s\n", d.StartedAt.Format(time.RFC3339))
	if !d.FinishedAt.IsZero() {
		_, _ = fmt.Fprintf(g.Out, "finished: %s\n", d.FinishedAt.Format(time.RFC3339))
	}
	if d.Error != "" {
		_, _ = fmt.Fprintf(g.Out, "error:    %s\n", d.Error)
	}
	for _, f := range d.Files {
		_, _ = fmt.Fprintf(g.Out, "  %s/%s %s\n", f.Repository, f.Path, f.Fingerprint)
	}
	for _, b := range d.Broken {
		_, _ = fmt.Fprintf(g.Out, "  broken: %s/%s -> %s\n", b.Repository, b.Source, b.Target)
	}
}

func encodeJSON(g *Global, v any) error {
	enc := json.NewEncoder(g.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
