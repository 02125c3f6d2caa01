package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/void1100/Bank-management-system/pkg/logger"
)

// PurgeFunc deletes rows older than cutoff and reports how many went.
type PurgeFunc func(ctx context.Context, cutoff time.Time) (int64, error)

// PurgeJob applies a retention window to one table.
type PurgeJob struct {
	name      string
	purge     PurgeFunc
	retention time.Duration
	logg      *logger.Logger
	now       func() time.Time
}

func NewPurgeJob(name string, purge PurgeFunc, retention time.Duration, logg *logger.Logger) (*PurgeJob, error) {
	switch {
	case name == "":
		return nil, errors.New("job name required")
	case purge == nil:
		return nil, fmt.Errorf("%s: purge func required", name)
	case retention <= 0:
		return nil, fmt.Errorf("%s: retention must be positive", name)
	case logg == nil:
		return nil, fmt.Errorf("%s: logger required", name)
	}
	return &PurgeJob{name: name, purge: purge, retention: retention, logg: logg, now: time.Now}, nil
}

func (j *PurgeJob) Name() string { return j.name }

func (j *PurgeJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.purge(ctx, cutoff)
	if err != nil {
		return err
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff.Format(time.RFC3339),
		"retention":    j.retention.String(),
		"rows_deleted": deleted,
	}), "retention purge complete")
	return nil
}
