// Package session keeps one workflow controller per browser session
package session

import (
	"context"
	"sync"
	"time"

	"github.com/UnendingLoop/PolypSegmentation/internal/mwlogger"
	"github.com/UnendingLoop/PolypSegmentation/internal/workflow"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

type entry struct {
	ctrl     *workflow.Controller
	lastSeen time.Time
}

type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	factory  func() *workflow.Controller
	now      func() time.Time
}

func NewRegistry(factory func() *workflow.Controller) *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		factory:  factory,
		now:      time.Now,
	}
}

// Get returns the controller of session id and marks it as used. Unknown or
// malformed ids get a fresh session, the id actually used is returned.
func (r *Registry) Get(id string) (string, *workflow.Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[id]; ok {
		e.lastSeen = r.now()
		return id, e.ctrl
	}

	// кука битая или от чужого процесса - выдаем новую сессию
	if uuid.Validate(id) != nil {
		id = uuid.New().String()
	}

	e := &entry{ctrl: r.factory(), lastSeen: r.now()}
	r.sessions[id] = e
	return id, e.ctrl
}

// lookup is Get without creating anything.
func (r *Registry) lookup(id string) (*workflow.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.ctrl, true
}

func (r *Registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions not seen for longer than idle and returns how many
// were dropped.
func (r *Registry) Sweep(ctx context.Context, idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var stale []*workflow.Controller
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e.ctrl)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	// закрываем вне лока - там поход в хранилище
	for _, ctrl := range stale {
		ctrl.Close(ctx)
	}

	if len(stale) > 0 {
		logger := mwlogger.LoggerFromContext(ctx)
		logger.Info().Int("dropped", len(stale)).Msg("Idle sessions swept")
	}
	return len(stale)
}

// CloseAll releases every session. Used on shutdown: running requests are
// waited for until ctx is done, previews are dropped either way.
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()

	logger := mwlogger.LoggerFromContext(ctx)
	for id, e := range all {
		if err := e.ctrl.Wait(ctx); err != nil {
			logger.Warn().Err(err).Str("session", id).Msg("Segmentation still running on shutdown")
		}
		e.ctrl.Close(ctx)
	}
}

// StartSweeper runs Sweep on the cron spec. The returned cron must be
// stopped by the caller.
func StartSweeper(ctx context.Context, r *Registry, spec string, idle time.Duration) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		r.Sweep(ctx, idle)
	}); err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
