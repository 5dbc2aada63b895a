package sessionworker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dyzdyz010/agentrt/internal/agent"
	"github.com/dyzdyz010/agentrt/internal/pubsub"
	"github.com/dyzdyz010/agentrt/internal/sessions"
	"github.com/dyzdyz010/agentrt/pkg/models"
)

// DefaultIdleTimeout is how long a session's worker sits with no
// SendMessage call before the idle sweeper reclaims it.
const DefaultIdleTimeout = 30 * time.Minute

// minSweepInterval bounds how often the sweeper wakes regardless of
// IdleTimeout, so a very short timeout doesn't spin a tight loop.
const minSweepInterval = 10 * time.Second

// Registry maps session_key to the single live Worker for that key. It is
// the process registry named in spec §4.5: start_session is idempotent,
// and the size of the live-worker set for any one key never exceeds one.
type Registry struct {
	runtime     *agent.Runtime
	store       sessions.Store
	bus         pubsub.Bus
	logger      *slog.Logger
	idleTimeout time.Duration

	mu      sync.Mutex
	workers map[string]*Worker

	sweeperStop chan struct{}
	sweeperDone chan struct{}
}

// NewRegistry creates a registry backed by a shared runtime, session
// store, and event bus. All workers started from this registry share the
// same *agent.Runtime instance (its tool registry and provider are
// process-wide); what each Worker serializes is the run itself.
//
// The registry is created with idle sweeping disabled; call StartSweeper
// to enable it with the desired timeout.
func NewRegistry(runtime *agent.Runtime, store sessions.Store, bus pubsub.Bus, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		runtime:     runtime,
		store:       store,
		bus:         bus,
		logger:      logger.With("component", "session_registry"),
		idleTimeout: DefaultIdleTimeout,
		workers:     make(map[string]*Worker),
	}
}

// StartSession returns the worker for sessionKey, creating it (and its
// backing session row, if one doesn't already exist) on first call.
// Idempotent: a second call for the same key returns the existing worker
// without starting anything new.
func (reg *Registry) StartSession(ctx context.Context, sessionKey string, agentID string, channel models.ChannelType, channelID string) (*Worker, error) {
	reg.mu.Lock()
	if w, ok := reg.workers[sessionKey]; ok {
		reg.mu.Unlock()
		return w, nil
	}
	reg.mu.Unlock()

	if _, err := reg.store.GetOrCreate(ctx, sessionKey, agentID, channel, channelID); err != nil {
		return nil, fmt.Errorf("persist session %s: %w", sessionKey, err)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if w, ok := reg.workers[sessionKey]; ok {
		return w, nil
	}
	w := newWorker(sessionKey, reg.runtime, reg.store, reg.bus, reg.logger)
	reg.workers[sessionKey] = w
	return w, nil
}

// Get returns the worker for sessionKey if one is currently live.
func (reg *Registry) Get(sessionKey string) (*Worker, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	w, ok := reg.workers[sessionKey]
	return w, ok
}

// Archive terminates the worker for sessionKey (if any is live) and
// archives its persisted session state. A subsequent StartSession for the
// same key starts a fresh worker against the archived row's history.
func (reg *Registry) Archive(ctx context.Context, sessionKey string) error {
	reg.mu.Lock()
	delete(reg.workers, sessionKey)
	reg.mu.Unlock()

	session, err := reg.store.GetByKey(ctx, sessionKey)
	if err != nil {
		return fmt.Errorf("lookup session %s: %w", sessionKey, err)
	}
	return reg.store.Archive(ctx, session.ID)
}

// Delete terminates the worker for sessionKey and deletes its persisted
// session row entirely.
func (reg *Registry) Delete(ctx context.Context, sessionKey string) error {
	reg.mu.Lock()
	delete(reg.workers, sessionKey)
	reg.mu.Unlock()

	session, err := reg.store.GetByKey(ctx, sessionKey)
	if err != nil {
		return fmt.Errorf("lookup session %s: %w", sessionKey, err)
	}
	return reg.store.Delete(ctx, session.ID)
}

// Count returns the number of currently live workers.
func (reg *Registry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.workers)
}

// StartSweeper launches the background goroutine that archives workers
// idle for longer than timeout (spec §3: "process terminated on idle
// timeout"). A non-positive timeout falls back to DefaultIdleTimeout.
// Calling StartSweeper while one is already running is a no-op.
func (reg *Registry) StartSweeper(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultIdleTimeout
	}

	reg.mu.Lock()
	if reg.sweeperStop != nil {
		reg.mu.Unlock()
		return
	}
	reg.idleTimeout = timeout
	stop := make(chan struct{})
	done := make(chan struct{})
	reg.sweeperStop = stop
	reg.sweeperDone = done
	reg.mu.Unlock()

	interval := timeout / 6
	if interval < minSweepInterval {
		interval = minSweepInterval
	}

	go reg.sweepLoop(interval, stop, done)
}

// StopSweeper stops the background sweeper goroutine, if running.
func (reg *Registry) StopSweeper() {
	reg.mu.Lock()
	if reg.sweeperStop == nil {
		reg.mu.Unlock()
		return
	}
	stop := reg.sweeperStop
	done := reg.sweeperDone
	reg.sweeperStop = nil
	reg.sweeperDone = nil
	reg.mu.Unlock()

	close(stop)
	<-done
}

func (reg *Registry) sweepLoop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			reg.sweepIdle()
		}
	}
}

// sweepIdle archives every worker whose last SendMessage predates the
// configured idle timeout. Archiving terminates the live worker; the
// persisted session row (and its history) is untouched, so a later
// message on the same key resumes against the same log.
func (reg *Registry) sweepIdle() {
	reg.mu.Lock()
	timeout := reg.idleTimeout
	cutoff := time.Now().Add(-timeout)
	var idle []string
	for key, w := range reg.workers {
		if w.LastActivity().Before(cutoff) {
			idle = append(idle, key)
		}
	}
	reg.mu.Unlock()

	for _, key := range idle {
		if err := reg.Archive(context.Background(), key); err != nil {
			reg.logger.Warn("failed to archive idle session", "session_key", key, "error", err)
			continue
		}
		reg.logger.Debug("archived idle session", "session_key", key)
	}
}
