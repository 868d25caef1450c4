package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/five82/lotwatch/internal/app"
	"github.com/five82/lotwatch/internal/ledger"
	"github.com/five82/lotwatch/internal/signal"
	"github.com/five82/lotwatch/internal/syncstore"
)

// WatchCmd implements the default 'watch' command.
type WatchCmd struct {
	Poll time.Duration `help:"Requested refresh interval (overrides prefs)"`
}

func (w *WatchCmd) Run(ctx context.Context, root *CLI) error {
	return app.Run(ctx, root.options(w.Poll, true))
}

// DumpCmd implements the 'dump' command.
type DumpCmd struct {
	Poll time.Duration `help:"Requested refresh interval (overrides config)"`
	Once bool          `help:"Fetch once, print the list as JSON and exit"`
}

func (d *DumpCmd) Run(ctx context.Context, root *CLI) error {
	opts := root.options(d.Poll, false)
	if d.Once {
		return app.DumpOnce(ctx, opts, os.Stdout)
	}
	return app.RunHeadless(ctx, opts)
}

// NotifyCmd groups the NATS publishing subcommands.
type NotifyCmd struct {
	Revalidate NotifyRevalidateCmd `cmd:"" help:"Ask running lotwatch instances to revalidate"`
	Delta      NotifyDeltaCmd      `cmd:"" help:"Publish an optimistic numeric delta for one lottery"`
	Create     NotifyCreateCmd     `cmd:"" help:"Publish an optimistic new lottery"`
}

// NotifyRevalidateCmd implements 'notify revalidate'.
type NotifyRevalidateCmd struct {
	Force bool `help:"Bypass backoff and throttle windows"`
}

func (n *NotifyRevalidateCmd) Run(ctx context.Context, root *CLI) error {
	return app.Notify(ctx, root.options(0, false), func(p *signal.Publisher) error {
		return p.Revalidate(n.Force)
	})
}

// NotifyDeltaCmd implements 'notify delta'.
type NotifyDeltaCmd struct {
	ID    string           `arg:"" help:"Lottery id (0x-prefixed)"`
	Field map[string]int64 `short:"f" help:"Field delta as name=amount, e.g. ticketsSold=3 (repeatable)"`
	Key   string           `help:"Idempotency key (generated when empty)"`
}

func (n *NotifyDeltaCmd) patch() (syncstore.DeltaPatch, error) {
	id := ledger.NormalizeID(n.ID)
	if id == "" {
		return syncstore.DeltaPatch{}, fmt.Errorf("invalid lottery id %q", n.ID)
	}
	if len(n.Field) == 0 {
		return syncstore.DeltaPatch{}, fmt.Errorf("at least one --field is required")
	}
	return syncstore.DeltaPatch{Key: strings.TrimSpace(n.Key), EntityID: id, Deltas: n.Field}, nil
}

func (n *NotifyDeltaCmd) Run(ctx context.Context, root *CLI) error {
	patch, err := n.patch()
	if err != nil {
		return err
	}
	return publishPatch(ctx, root, patch)
}

// NotifyCreateCmd implements 'notify create'.
type NotifyCreateCmd struct {
	ID    string            `arg:"" help:"Lottery id (0x-prefixed)"`
	Field map[string]string `short:"f" help:"Initial field as name=value, e.g. ticketPrice=5 (repeatable)"`
	Key   string            `help:"Idempotency key (generated when empty)"`
}

func (n *NotifyCreateCmd) patch() (syncstore.CreatePatch, error) {
	id := ledger.NormalizeID(n.ID)
	if id == "" {
		return syncstore.CreatePatch{}, fmt.Errorf("invalid lottery id %q", n.ID)
	}
	return syncstore.CreatePatch{Key: strings.TrimSpace(n.Key), EntityID: id, Fields: n.Field}, nil
}

func (n *NotifyCreateCmd) Run(ctx context.Context, root *CLI) error {
	patch, err := n.patch()
	if err != nil {
		return err
	}
	return publishPatch(ctx, root, patch)
}

func publishPatch(ctx context.Context, root *CLI, patch syncstore.Patch) error {
	return app.Notify(ctx, root.options(0, false), func(p *signal.Publisher) error {
		key, err := p.Patch(patch)
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	})
}

func (c *CLI) options(poll time.Duration, terminal bool) app.Options {
	return app.Options{
		ConfigPath: c.Config,
		PrefsPath:  c.Prefs,
		PollEvery:  poll,
		Logger:     c.logger(terminal),
	}
}
