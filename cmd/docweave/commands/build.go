package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/docweave/internal/config"
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/pipeline"
	"git.home.luguber.info/inful/docweave/internal/state"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Output string `short:"o" help:"Output directory, overriding output.directory"`
	Clean  bool   `help:"Remove the output directory before building"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	if b.Output != "" {
		cfg.Output.Directory = b.Output
	}
	if b.Clean {
		cfg.Output.Clean = true
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunBuild(ctx, g, cfg)
}

// RunBuild runs the pipeline once with the history and events cfg enables
// and prints a summary of the report.
func RunBuild(ctx context.Context, g *Global, cfg *config.Config) error {
	be, err := openBackends(cfg, g.Logger)
	if err != nil {
		return err
	}
	defer be.close(g.Logger)

	opts := []pipeline.Option{
		pipeline.WithLogger(g.Logger),
		pipeline.WithPublisher(be.publisher),
	}
	if be.store != nil {
		opts = append(opts, pipeline.WithHistory(be.store))
	}
	runner, err := pipeline.New(cfg, opts...)
	if err != nil {
		return err
	}

	rep, err := runner.Run(ctx)
	if rep != nil {
		printReport(g, rep)
	}
	if err != nil {
		return err
	}
	if rep.Status == state.StatusFailed {
		return errors.BookError("documentation run failed").
			WithContext("run_id", rep.RunID).
			Build()
	}
	return nil
}

func printReport(g *Global, rep *pipeline.Report) {
	_, _ = fmt.Fprintf(g.Out, "run %s: %s (%d repositories, %d files, %d broken links)\n",
		rep.RunID, rep.Status, len(rep.Repositories), rep.FileCount(), rep.BrokenCount())
	for _, r := range rep.Repositories {
		if r.Failed() {
			_, _ = fmt.Fprintf(g.Out, "  %s: failed: %s\n", r.Name, r.Error)
			continue
		}
		_, _ = fmt.Fprintf(g.Out, "  %s: %d files, %d changed, %d broken\n", r.Name, len(r.Files), r.Changed, len(r.Broken))
	}
}
