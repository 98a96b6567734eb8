// Package admin is an optional, --tui-gated live dashboard over the
// scheduler's counters. It is pure observability: nothing here feeds
// back into the runtime's decisions.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
)

// SnapshotFunc returns the scheduler's current counters. Matches
// internal/runtime.Scheduler.Snapshot's shape without importing the
// runtime package, so admin stays a leaf dependency.
type SnapshotFunc func() Snapshot

// Snapshot is the subset of scheduler state the dashboard renders.
type Snapshot struct {
	Workers       int
	Busy          int64
	Sleeping      int
	LiveServices  int64
	RunQueueDepth int
}

const refreshInterval = 500 * time.Millisecond

func busyPercent(snap Snapshot) int {
	if snap.Workers <= 0 {
		return 0
	}
	return int(snap.Busy * 100 / int64(snap.Workers))
}

func statsText(snap Snapshot) string {
	return fmt.Sprintf(
		"live services: %d\nworkers: %d\nbusy: %d\nsleeping: %d\nrun-queue depth: %d",
		snap.LiveServices, snap.Workers, snap.Busy, snap.Sleeping, snap.RunQueueDepth,
	)
}

// Dashboard renders Snapshot on a fixed interval until ctx is cancelled or
// the user quits ('q' or Ctrl-C).
type Dashboard struct {
	snapshot SnapshotFunc
	logger   *slog.Logger
}

// New builds a dashboard. snapshot is polled once per refreshInterval.
func New(snapshot SnapshotFunc, logger *slog.Logger) *Dashboard {
	return &Dashboard{snapshot: snapshot, logger: logger}
}

// Run initializes the terminal, paints the dashboard until ctx ends or the
// user quits, then restores the terminal.
func (d *Dashboard) Run(ctx context.Context) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("admin: init terminal: %w", err)
	}
	defer ui.Close()

	header := widgets.NewParagraph()
	header.Title = "actor-runtime"
	header.SetRect(0, 0, 60, 3)

	busyGauge := widgets.NewGauge()
	busyGauge.Title = "workers busy"
	busyGauge.SetRect(0, 3, 60, 6)

	stats := widgets.NewParagraph()
	stats.Title = "counters"
	stats.SetRect(0, 6, 60, 12)

	render := func() {
		snap := d.snapshot()
		header.Text = "press q to exit"
		busyGauge.Percent = busyPercent(snap)
		stats.Text = statsText(snap)
		ui.Render(header, busyGauge, stats)
	}

	render()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-uiEvents:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			}
		case <-ticker.C:
			render()
		}
	}
}
