package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/lwelte/gozp/pkg/api"
	"github.com/lwelte/gozp/pkg/config"
	"github.com/lwelte/gozp/pkg/db"
	"github.com/lwelte/gozp/pkg/disk"
	"github.com/lwelte/gozp/pkg/jobs"
	"github.com/lwelte/gozp/pkg/zfs"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

// CLI is the root command structure
type CLI struct {
	// Global flags
	LogLevel string `short:"l" default:"info" enum:"debug,info,warn,error" help:"Log level (debug, info, warn, error)"`

	// Subcommands
	Serve    ServeCmd    `cmd:"" help:"Run the management daemon"`
	Pool     PoolCmd     `cmd:"" help:"Pool operations"`
	Mirror   MirrorCmd   `cmd:"" help:"Software mirror operations"`
	Snapshot SnapshotCmd `cmd:"" name:"snap" help:"Snapshot operations"`
}

// ServeCmd runs the daemon with the HTTP API
type ServeCmd struct {
	Address string `short:"a" default:":8148" help:"API server address"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	app := fx.New(
		fx.Provide(
			func() *config.Config {
				cfg := config.New()
				cfg.APIAddress = c.Address
				cfg.LogLevel = cli.LogLevel
				return cfg
			},
			provideLogger,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),
		db.Module,
		disk.Module,
		zfs.Module,
		jobs.Module,
		api.Module,
	)

	app.Run()
	return nil
}

// PoolCmd contains pool subcommands
type PoolCmd struct {
	Status PoolStatusCmd `cmd:"" help:"Show pool configuration and scan state"`
	Disks  PoolDisksCmd  `cmd:"" help:"List the physical disks backing a pool"`
}

// PoolStatusCmd shows pool status
type PoolStatusCmd struct {
	Name string `arg:"" help:"Pool name"`
}

func (c *PoolStatusCmd) Run(cli *CLI) error {
	logger := makeLogger(cli.LogLevel)
	mgr := zfs.NewManager(logger, nil, disk.NewScanner(logger))

	ctx := context.Background()
	pool, err := mgr.GetPool(ctx, c.Name)
	if err != nil {
		return fmt.Errorf("failed to load pool: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendRow(table.Row{"Pool", pool.Name})
	t.AppendRow(table.Row{"State", pool.State})
	if pool.Scan != nil {
		t.AppendRow(table.Row{"Scan", scanSummary(pool.Scan)})
	}
	if usage, err := mgr.GetUsage(ctx, c.Name); err == nil {
		t.AppendSeparator()
		t.AppendRow(table.Row{"Size", humanize.IBytes(usage.Size)})
		t.AppendRow(table.Row{"Allocated", fmt.Sprintf("%s (%d%%)", humanize.IBytes(usage.Allocated), usage.Capacity)})
		t.AppendRow(table.Row{"Free", humanize.IBytes(usage.Free)})
	}
	t.Render()

	fmt.Println()

	vt := table.NewWriter()
	vt.SetOutputMirror(os.Stdout)
	vt.SetStyle(table.StyleRounded)
	vt.AppendHeader(table.Row{"Vdev", "Type", "GUID", "State"})
	vt.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
	})
	for _, v := range pool.Root.Children {
		appendVdevRows(vt, v, 0)
	}
	vt.Render()
	return nil
}

func appendVdevRows(t table.Writer, v *zfs.Vdev, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	guid := ""
	if v.GUID != 0 {
		guid = strconv.FormatUint(v.GUID, 10)
	}
	t.AppendRow(table.Row{indent + v.Name, v.Type, guid, v.State})
	for _, c := range v.Children {
		appendVdevRows(t, c, depth+1)
	}
}

func scanSummary(s *zfs.ScanStatus) string {
	fn := "scrub"
	if s.Function == zfs.ScanFunctionResilver {
		fn = "resilver"
	}
	switch s.State {
	case zfs.ScanStateScanning:
		return fmt.Sprintf("%s in progress, %.1f%% done", fn, s.Percentage)
	case zfs.ScanStateFinished:
		return fn + " finished"
	case zfs.ScanStateCanceled:
		return fn + " canceled"
	}
	return "none"
}

// PoolDisksCmd lists the physical disks backing a pool
type PoolDisksCmd struct {
	Name string `arg:"" help:"Pool name"`
}

func (c *PoolDisksCmd) Run(cli *CLI) error {
	logger := makeLogger(cli.LogLevel)
	mgr := zfs.NewManager(logger, nil, disk.NewScanner(logger))

	disks, err := mgr.Disks(context.Background(), c.Name)
	if err != nil {
		return fmt.Errorf("failed to enumerate disks: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Disk"})
	for _, d := range disks {
		t.AppendRow(table.Row{d})
	}
	t.Render()
	return nil
}

// MirrorCmd contains mirror subcommands
type MirrorCmd struct {
	List MirrorListCmd `cmd:"" help:"List md mirror arrays"`
}

// MirrorListCmd lists md arrays with their member providers
type MirrorListCmd struct{}

func (c *MirrorListCmd) Run(cli *CLI) error {
	scanner := disk.NewScanner(makeLogger(cli.LogLevel))
	mirrors, err := scanner.ListMirrors()
	if err != nil {
		return fmt.Errorf("failed to list mirrors: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Name", "Path", "Encrypted", "Providers"})
	for _, m := range mirrors {
		providers := ""
		for i, p := range m.Providers {
			if i > 0 {
				providers += ", "
			}
			providers += p.Name + " (" + p.Disk + ")"
		}
		t.AppendRow(table.Row{m.Name, m.RealPath, m.EncryptedProvider, providers})
	}
	t.Render()
	return nil
}

// SnapshotCmd contains snapshot subcommands
type SnapshotCmd struct {
	List SnapListCmd `cmd:"" help:"List snapshots of a dataset"`
}

// SnapListCmd lists snapshots
type SnapListCmd struct {
	Dataset string `arg:"" help:"Dataset name"`
}

func (c *SnapListCmd) Run(cli *CLI) error {
	logger := makeLogger(cli.LogLevel)
	mgr := zfs.NewManager(logger, nil, disk.NewScanner(logger))

	names, err := mgr.ListSnapshots(context.Background(), c.Dataset)
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Snapshot"})
	for _, n := range names {
		t.AppendRow(table.Row{n})
	}
	t.Render()
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("gozp"),
		kong.Description("ZFS pool management tool"),
		kong.UsageOnError(),
	)
	err := ctx.Run(cli)
	ctx.FatalIfErrorf(err)
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return makeLogger(cfg.LogLevel)
}

func makeLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: lvl,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
