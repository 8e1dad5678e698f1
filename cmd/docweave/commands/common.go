package commands

import (
	"io"
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docweave/internal/config"
	"git.home.luguber.info/inful/docweave/internal/events"
	"git.home.luguber.info/inful/docweave/internal/observability"
	"git.home.luguber.info/inful/docweave/internal/state"
)

// Global is shared state handed to every command.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
	Err    io.Writer
}

// NewGlobal returns a Global writing results to out and logs to errOut.
func NewGlobal(out, errOut io.Writer) *Global {
	return &Global{Logger: slog.Default(), Out: out, Err: errOut}
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path" default:"docweave.yaml" type:"path"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `help:"Log output format" enum:"text,json" default:"text"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build       BuildCmd   `cmd:"" help:"Run the pipeline once and write the book"`
	Daemon      DaemonCmd  `cmd:"" help:"Run the pipeline on a schedule and serve run history"`
	Closure     ClosureCmd `cmd:"" help:"Print the files reachable from a directory's README"`
	Rewrite     RewriteCmd `cmd:"" help:"Prefix relative links below a directory with a namespace"`
	History     HistoryCmd `cmd:"" help:"Show recorded runs"`
	Init        InitCmd    `cmd:"" help:"Write an example configuration file"`
	VersionInfo VersionCmd `cmd:"" name:"version" help:"Print build information"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply(g *Global) error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var inner slog.Handler
	if c.LogFormat == "json" {
		inner = slog.NewJSONHandler(g.Err, opts)
	} else {
		inner = slog.NewTextHandler(g.Err, opts)
	}
	g.Logger = slog.New(observability.NewHandler(inner))
	slog.SetDefault(g.Logger)
	return nil
}

// backends holds the optional run history and event publisher a
// configuration enables.
type backends struct {
	store     *state.Store
	publisher events.Publisher
}

func openBackends(cfg *config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{publisher: events.Noop{}}
	if cfg.State.Enabled {
		s, err := state.Open(cfg.State.Path)
		if err != nil {
			return nil, err
		}
		b.store = s
	}
	if cfg.Events.Enabled {
		p, err := events.Connect(cfg.Events.URL, cfg.Events.Subject, logger)
		if err != nil {
			b.close(logger)
			return nil, err
		}
		b.publisher = p
	}
	return b, nil
}

func (b *backends) close(logger *slog.Logger) {
	b.publisher.Close()
	if b.store != nil {
		if err := b.store.Close(); err != nil {
			logger.Warn("Failed to close run history", slog.String("error", err.Error()))
		}
	}
}
