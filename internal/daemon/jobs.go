package daemon

import (
	"context"
	"time"

	"github.com/user/netmap/internal/util"
)

// Housekeeping intervals.
const (
	PruneInterval  = time.Hour
	StatusInterval = 30 * time.Second
)

// registerJobs registers the housekeeping jobs with the scheduler. Refresh
// jobs are added per entry on setup.
func (d *Daemon) registerJobs() {
	d.scheduler.AddJob(&Job{
		Name:     "prune_snapshots",
		Interval: PruneInterval,
		Run:      d.runPrune,
	}, time.Minute)

	d.scheduler.AddJob(&Job{
		Name:     "status_file",
		Interval: StatusInterval,
		Run:      d.runStatusFile,
	}, 0)
}

func (d *Daemon) runPrune(ctx context.Context) error {
	if d.config.SnapshotRetention <= 0 {
		util.Debug("Snapshot pruning disabled (no retention configured)")
		return nil
	}

	removed, err := d.snapshots.Prune(time.Now().UTC().Add(-d.config.SnapshotRetention))
	if err != nil {
		return err
	}
	if removed > 0 {
		util.Info("Pruned %d snapshots older than %s", removed, d.config.SnapshotRetention)
	}
	return nil
}

func (d *Daemon) runStatusFile(ctx context.Context) error {
	return WriteStatusFile(d.config.DataDir, d.GetStatus())
}
