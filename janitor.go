package authcore

import (
	"context"
	"sync"
	"time"

	"github.com/modelfolio/authcore/session"
	"go.uber.org/zap"
)

// janitor periodically prunes stale session-index members. Codes and session
// records themselves expire through Redis key TTLs; only the per-account
// index sets can accumulate dangling ids between logins.
type janitor struct {
	store    *session.Store
	interval time.Duration
	logger   *zap.Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func newJanitor(store *session.Store, interval time.Duration, logger *zap.Logger) *janitor {
	return &janitor{
		store:    store,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

func (j *janitor) Start() {
	j.wg.Add(1)
	go j.run()
}

func (j *janitor) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.sweep()
		case <-j.done:
			return
		}
	}
}

func (j *janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pruned, err := j.store.PruneAllIndexes(ctx)
	if err != nil {
		j.logger.Warn("session index sweep failed", zap.Int("pruned", pruned), zap.Error(err))
		return
	}
	if pruned > 0 {
		j.logger.Info("session index sweep", zap.Int("pruned", pruned))
	}
}

func (j *janitor) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
	})
}
