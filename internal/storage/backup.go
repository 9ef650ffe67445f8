package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jonboulle/clockwork"
	"github.com/leolhan1425/bc-tracker/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	snapshotPrefix   = "snapshots/tracker-"
	DefaultRetention = 7
)

// Backup writes daily store snapshots and prunes old ones.
type Backup struct {
	storage   StorageInterface
	retention int
	clock     clockwork.Clock
}

// NewBackup keeps at most retention snapshots; values below 1 use the default.
func NewBackup(storage StorageInterface, retention int, clock clockwork.Clock) *Backup {
	if retention < 1 {
		retention = DefaultRetention
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Backup{storage: storage, retention: retention, clock: clock}
}

// SnapshotName is the object name for the snapshot of the current UTC day.
// A second snapshot on the same day replaces the first.
func (b *Backup) SnapshotName() string {
	return snapshotPrefix + b.clock.Now().UTC().Format("2006-01-02") + ".json"
}

// Save stores snap and prunes older snapshots. It returns the object name.
func (b *Backup) Save(ctx context.Context, snap *models.Snapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	name := b.SnapshotName()
	if err := b.storage.Store(ctx, name, data); err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}

	if err := b.prune(ctx); err != nil {
		logrus.Warnf("Failed to prune old snapshots: %v", err)
	}

	logrus.Infof("Saved snapshot %s (%d bytes)", name, len(data))
	return name, nil
}

// Latest loads the newest stored snapshot.
func (b *Backup) Latest(ctx context.Context) (*models.Snapshot, error) {
	names, err := b.snapshots(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no snapshots stored")
	}

	data, err := b.storage.Retrieve(ctx, names[0])
	if err != nil {
		return nil, err
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", names[0], err)
	}
	return &snap, nil
}

// snapshots lists snapshot names newest first.
func (b *Backup) snapshots(ctx context.Context) ([]string, error) {
	names, err := b.storage.List(ctx, snapshotPrefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

func (b *Backup) prune(ctx context.Context) error {
	names, err := b.snapshots(ctx)
	if err != nil {
		return err
	}
	for _, old := range names[min(b.retention, len(names)):] {
		if err := b.storage.Delete(ctx, old); err != nil {
			return err
		}
		logrus.Debugf("Pruned snapshot %s", old)
	}
	return nil
}
