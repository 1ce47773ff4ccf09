package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/platinummonkey/morp/pkg/monorepo"
	"github.com/platinummonkey/morp/pkg/observability"
	"github.com/sirupsen/logrus"
)

// Reload triggers
const (
	TriggerStartup = "startup"
	TriggerWatch   = "watch"
	TriggerCron    = "cron"
	TriggerAPI     = "api"
)

// ErrNoSnapshot is returned while no graph has been loaded successfully
var ErrNoSnapshot = errors.New("no snapshot loaded")

// Snapshot is one immutable, validated view of the repository. Queries hold
// on to the snapshot they started with, so a reload never changes an answer
// mid-request.
type Snapshot struct {
	Repo       *monorepo.Monorepo
	LoadedAt   time.Time
	Generation uint64
}

// LoadFunc loads a fresh repository view
type LoadFunc func(ctx context.Context) (*monorepo.Monorepo, error)

// Reloader owns the current snapshot and replaces it atomically
type Reloader struct {
	load    LoadFunc
	log     *logrus.Logger
	metrics *observability.Metrics

	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64

	// mu serializes reloads
	mu     sync.Mutex
	onSwap []func(ctx context.Context, old, new *Snapshot)
}

// NewReloader creates a reloader with no snapshot
func NewReloader(load LoadFunc, log *logrus.Logger, metrics *observability.Metrics) *Reloader {
	if log == nil {
		log = logrus.New()
	}
	return &Reloader{load: load, log: log, metrics: metrics}
}

// OnSwap registers a hook called after a new snapshot replaces the old one.
// old is nil for the first snapshot.
func (r *Reloader) OnSwap(fn func(ctx context.Context, old, new *Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSwap = append(r.onSwap, fn)
}

// Current returns the live snapshot, or nil before the first successful load
func (r *Reloader) Current() *Snapshot {
	return r.current.Load()
}

// Reload loads a new snapshot and swaps it in. On failure the previous
// snapshot stays live and the error is returned.
func (r *Reloader) Reload(ctx context.Context, trigger string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.log.WithField("trigger", trigger)

	repo, err := r.load(ctx)
	r.metrics.Reload(trigger, err)
	if err != nil {
		log.WithError(err).Error("Snapshot reload failed; keeping previous snapshot")
		return err
	}

	next := &Snapshot{
		Repo:       repo,
		LoadedAt:   time.Now(),
		Generation: r.generation.Add(1),
	}
	old := r.current.Swap(next)

	log.WithFields(logrus.Fields{
		"generation":  next.Generation,
		"fingerprint": repo.Fingerprint(),
	}).Info("Snapshot loaded")

	for _, fn := range r.onSwap {
		fn(ctx, old, next)
	}
	return nil
}
