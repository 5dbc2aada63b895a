// Package sessionworker implements the per-session supervised worker and
// registry: one long-lived goroutine per session_key, owning an
// *agent.Runtime, serializing runs on that session, and reporting crashes
// instead of taking the process down with it.
package sessionworker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dyzdyz010/agentrt/internal/agent"
	"github.com/dyzdyz010/agentrt/internal/pubsub"
	"github.com/dyzdyz010/agentrt/internal/sessions"
	"github.com/dyzdyz010/agentrt/pkg/models"
	"github.com/google/uuid"
)

// ErrWorkerDied is returned when a worker's run panics instead of
// completing normally. The session remains restartable: the next
// SendMessage on the same key starts a fresh run in Idle.
var ErrWorkerDied = errors.New("worker died")

// SendOptions configures a single send_message call.
type SendOptions struct {
	// Channel and ChannelID tag the inbound message when a session is
	// created lazily by this call.
	Channel   models.ChannelType
	ChannelID string

	// Timeout bounds the run; zero means no deadline beyond the
	// runtime's own configured wall time limit.
	Timeout time.Duration
}

// Worker owns the single live *agent.Runtime run loop for one session_key.
// Its mutex enforces spec's P5 invariant indirectly: Registry guarantees at
// most one Worker exists per key, and Worker.mu guarantees at most one run
// is in flight on that Worker at a time, so a subsequent send_message only
// starts once the prior run has returned to Idle.
type Worker struct {
	sessionKey string
	runtime    *agent.Runtime
	store      sessions.Store
	bus        pubsub.Bus
	logger     *slog.Logger

	mu           sync.Mutex
	lastActivity time.Time
}

func newWorker(sessionKey string, runtime *agent.Runtime, store sessions.Store, bus pubsub.Bus, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		sessionKey:   sessionKey,
		runtime:      runtime,
		store:        store,
		bus:          bus,
		logger:       logger.With("session_key", sessionKey),
		lastActivity: time.Now(),
	}
}

// SessionKey returns the key this worker owns.
func (w *Worker) SessionKey() string {
	return w.sessionKey
}

// LastActivity returns the time SendMessage was last entered on this
// worker. The registry's idle sweeper uses this to decide when the
// worker's process should be terminated (spec §3: "process terminated
// on idle timeout").
func (w *Worker) LastActivity() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActivity
}

// SendMessage resolves the session, appends the user turn, and drives the
// agent loop to completion, returning the final assistant message. It
// blocks until the run reaches Idle (or opts.Timeout elapses).
func (w *Worker) SendMessage(ctx context.Context, text string, opts SendOptions) (reply *models.Message, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastActivity = time.Now()

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("session worker panicked", "panic", r)
			reply = nil
			err = fmt.Errorf("%w: %v", ErrWorkerDied, r)
			w.publishCrash()
		}
	}()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	session, agentID, err := w.resolveSession(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	_ = agentID

	msg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Channel:   session.Channel,
		ChannelID: session.ChannelID,
		Direction: models.DirectionInbound,
		Role:      models.RoleUser,
		Content:   text,
		CreatedAt: time.Now(),
	}

	chunks, err := w.runtime.Process(ctx, session, msg)
	if err != nil {
		return nil, err
	}

	var runErr error
	for chunk := range chunks {
		if chunk != nil && chunk.Error != nil {
			runErr = chunk.Error
		}
	}
	if runErr != nil {
		return nil, runErr
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	tail, err := w.store.GetHistory(ctx, session.ID, 1)
	if err != nil {
		return nil, fmt.Errorf("load reply: %w", err)
	}
	if len(tail) == 0 || tail[len(tail)-1].Role != models.RoleAssistant {
		return nil, fmt.Errorf("no assistant reply persisted for session %s", w.sessionKey)
	}
	return tail[len(tail)-1], nil
}

// SendMessageAsync starts a run without waiting for it. The eventual
// result (success or failure) is published on the agent:<session_key>
// pub/sub topic by the runtime itself; SendMessageAsync additionally
// publishes a worker_died error if the run panics before the runtime's
// own event plumbing ever gets a chance to.
func (w *Worker) SendMessageAsync(ctx context.Context, text string, opts SendOptions) {
	go func() {
		runCtx := context.Background()
		if deadline, ok := ctx.Deadline(); ok {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithDeadline(runCtx, deadline)
			defer cancel()
		}
		if _, err := w.SendMessage(runCtx, text, opts); err != nil && w.logger != nil {
			w.logger.Debug("async send_message finished with error", "error", err)
		}
	}()
}

func (w *Worker) resolveSession(ctx context.Context, opts SendOptions) (*models.Session, string, error) {
	session, err := w.store.GetOrCreate(ctx, w.sessionKey, "", opts.Channel, opts.ChannelID)
	if err != nil {
		return nil, "", err
	}
	return session, session.AgentID, nil
}

func (w *Worker) publishCrash() {
	if w.bus == nil {
		return
	}
	topic := pubsub.AgentTopic(w.sessionKey)
	event := pubsub.Event{Kind: pubsub.EventError, Reason: "worker_died"}
	if err := w.bus.Publish(context.Background(), topic, event); err != nil {
		w.logger.Debug("failed to publish worker crash event", "error", err)
	}
}
