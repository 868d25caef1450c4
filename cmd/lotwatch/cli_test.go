package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("lotwatch"),
		kong.Exit(func(int) { t.Fatalf("unexpected exit for %v", args) }),
		kong.BindTo(context.Background(), (*context.Context)(nil)),
	)
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	return &cli, kctx
}

func TestWatchIsDefault(t *testing.T) {
	_, kctx := parse(t)
	assert.Equal(t, "watch", kctx.Command())

	cli, kctx := parse(t, "watch", "--poll", "45s", "-v")
	assert.Equal(t, "watch", kctx.Command())
	assert.Equal(t, 45*time.Second, cli.Watch.Poll)
	assert.True(t, cli.Verbose)
}

func TestDumpFlags(t *testing.T) {
	cli, kctx := parse(t, "--config", "/tmp/lotwatch.toml", "dump", "--once")
	assert.Equal(t, "dump", kctx.Command())
	assert.True(t, cli.Dump.Once)
	assert.Equal(t, "/tmp/lotwatch.toml", cli.Config)
}

func TestNotifyDeltaPatch(t *testing.T) {
	cli, kctx := parse(t, "notify", "delta", "0xABC", "-f", "ticketsSold=3", "-f", "pot=15", "--key", " k1 ")
	assert.Equal(t, "notify delta <id>", kctx.Command())

	patch, err := cli.Notify.Delta.patch()
	require.NoError(t, err)
	assert.Equal(t, "0xabc", patch.EntityID)
	assert.Equal(t, "k1", patch.Key)
	assert.Equal(t, map[string]int64{"ticketsSold": 3, "pot": 15}, patch.Deltas)
}

func TestNotifyDeltaValidation(t *testing.T) {
	_, err := (&NotifyDeltaCmd{ID: "lottery-1", Field: map[string]int64{"ticketsSold": 1}}).patch()
	assert.ErrorContains(t, err, "invalid lottery id")

	_, err = (&NotifyDeltaCmd{ID: "0xabc"}).patch()
	assert.ErrorContains(t, err, "--field")
}

func TestNotifyCreatePatch(t *testing.T) {
	cli, _ := parse(t, "notify", "create", "0xDEF", "-f", "ticketPrice=5", "-f", "status=open")

	patch, err := cli.Notify.Create.patch()
	require.NoError(t, err)
	assert.Equal(t, "0xdef", patch.EntityID)
	assert.Empty(t, patch.Key)
	assert.Equal(t, map[string]string{"ticketPrice": "5", "status": "open"}, patch.Fields)

	_, err = (&NotifyCreateCmd{ID: ""}).patch()
	assert.Error(t, err)
}

func TestLoggerDestination(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "lotwatch.log")
	cli, _ := parse(t, "--log-file", logPath, "dump")
	require.NotNil(t, cli.closer)
	t.Cleanup(func() { _ = cli.closer.Close() })

	cli.logger(true).Info("hello")
	assert.FileExists(t, logPath)

	bare, _ := parse(t, "dump")
	assert.Nil(t, bare.closer)
	assert.NotNil(t, bare.logger(true))
}

func TestOptionsCarryGlobalFlags(t *testing.T) {
	cli, _ := parse(t, "--prefs", "/tmp/prefs.toml", "-c", "/tmp/c.toml", "dump")
	opts := cli.options(10*time.Second, false)
	assert.Equal(t, "/tmp/c.toml", opts.ConfigPath)
	assert.Equal(t, "/tmp/prefs.toml", opts.PrefsPath)
	assert.Equal(t, 10*time.Second, opts.PollEvery)
	assert.NotNil(t, opts.Logger)
}
