package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

// CLI definition and global flags.
type CLI struct {
	Config  string `short:"c" help:"Config file path (default ~/.config/lotwatch/config.toml)" type:"path"`
	Prefs   string `help:"UI preferences path (default ~/.config/lotwatch/prefs.toml)" type:"path"`
	Verbose bool   `short:"v" help:"Enable debug logging"`
	LogFile string `name:"log-file" help:"Write logs to this file (the terminal UI logs nowhere otherwise)" type:"path"`

	Watch  WatchCmd  `cmd:"" default:"1" help:"Show the lottery table (default)"`
	Dump   DumpCmd   `cmd:"" help:"Poll without a terminal and log every snapshot change"`
	Notify NotifyCmd `cmd:"" help:"Publish revalidate or optimistic patch events over NATS"`

	logOut io.Writer
	closer io.Closer
}

// AfterApply opens the log destination once flags are parsed.
func (c *CLI) AfterApply() error {
	c.logOut = os.Stderr
	if c.LogFile != "" {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		c.logOut, c.closer = f, f
	}
	return nil
}

// logger builds the slog logger. The terminal UI owns stderr, so without
// --log-file its logs are discarded.
func (c *CLI) logger(terminal bool) *slog.Logger {
	out := c.logOut
	if out == nil || (terminal && c.LogFile == "") {
		out = io.Discard
	}
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("lotwatch"),
		kong.Description("Watch lottery contracts reported by an indexer."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lotwatch: %v\n", err)
		return 1
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		parser.FatalIfErrorf(err)
		return 2
	}
	defer func() {
		if cli.closer != nil {
			_ = cli.closer.Close()
		}
	}()

	if err := kctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "lotwatch: %v\n", err)
		return 1
	}
	return 0
}
