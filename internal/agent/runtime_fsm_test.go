package agent

import (
	"context"
	"testing"
	"time"

	"github.com/dyzdyz010/agentrt/internal/pubsub"
	"github.com/dyzdyz010/agentrt/pkg/models"
)

// TestRunPersistsNoResponseSentinel covers the case where the provider's
// completion stream closes without delivering a single chunk.
func TestRunPersistsNoResponseSentinel(t *testing.T) {
	store := newMemoryStore()
	runtime := NewRuntime(stubProvider{}, store)

	session := &models.Session{ID: "sess-no-response", Channel: models.ChannelTelegram}
	msg := &models.Message{Role: models.RoleUser, Content: "hi"}

	ch, err := runtime.Process(context.Background(), session, msg)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	for range ch {
	}

	assistant := lastAssistantMessage(t, store, session.ID)
	if assistant.Content != sentinelNoResponse {
		t.Fatalf("content = %q, want %q", assistant.Content, sentinelNoResponse)
	}
}

// TestRunPersistsEmptyResponseSentinel covers a completed stream with a
// terminal Done chunk but no text and no tool calls.
func TestRunPersistsEmptyResponseSentinel(t *testing.T) {
	store := newMemoryStore()
	provider := &multiTurnProvider{responses: []multiTurnResponse{{text: ""}}}
	runtime := NewRuntime(provider, store)

	session := &models.Session{ID: "sess-empty-response", Channel: models.ChannelTelegram}
	msg := &models.Message{Role: models.RoleUser, Content: "hi"}

	ch, err := runtime.Process(context.Background(), session, msg)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	for range ch {
	}

	assistant := lastAssistantMessage(t, store, session.ID)
	if assistant.Content != sentinelEmptyResponse {
		t.Fatalf("content = %q, want %q", assistant.Content, sentinelEmptyResponse)
	}
}

// TestRunPersistsTooManyToolsSentinel drives the loop past MaxIterations
// using a provider that always requests another tool call, and checks the
// stop sentinel lands as a real assistant message rather than only an
// error value.
func TestRunPersistsTooManyToolsSentinel(t *testing.T) {
	store := newMemoryStore()
	provider := &toolLoopProvider{toolName: "noop"}
	runtime := NewRuntimeWithOptions(provider, store, RuntimeOptions{MaxIterations: 3})
	runtime.RegisterTool(&countingTool{name: "noop"})

	session := &models.Session{ID: "sess-too-many-tools", Channel: models.ChannelTelegram}
	msg := &models.Message{Role: models.RoleUser, Content: "loop forever"}

	ch, err := runtime.Process(context.Background(), session, msg)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	for range ch {
	}

	assistant := lastAssistantMessage(t, store, session.ID)
	if assistant.Content != sentinelTooManyTools {
		t.Fatalf("content = %q, want %q", assistant.Content, sentinelTooManyTools)
	}
}

// TestRunCancelReturnsWithoutPersistingAssistantMessage verifies that a
// cancellation observed mid-stream unwinds quickly and leaves no partial
// assistant message behind.
func TestRunCancelReturnsWithoutPersistingAssistantMessage(t *testing.T) {
	store := newMemoryStore()
	provider := &cancelProvider{started: make(chan struct{})}
	runtime := NewRuntime(provider, store)

	session := &models.Session{ID: "sess-cancel", Channel: models.ChannelTelegram}
	msg := &models.Message{Role: models.RoleUser, Content: "hi"}

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := runtime.Process(ctx, session, msg)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	<-provider.started
	start := time.Now()
	cancel()
	for range ch {
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("cancellation took too long to unwind: %s", elapsed)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	for _, m := range store.messages[session.ID] {
		if m.Role == models.RoleAssistant {
			t.Fatalf("expected no persisted assistant message after cancel, got %q", m.Content)
		}
	}
}

// TestPublishEventsOnLocalBus checks that the runtime publishes lifecycle
// events on the agent:<session_key> topic when a bus is configured.
func TestPublishEventsOnLocalBus(t *testing.T) {
	store := newMemoryStore()
	provider := &recordingProvider{}
	runtime := NewRuntime(provider, store)

	bus := pubsub.NewLocalBus()
	runtime.SetEventBus(bus)

	session := &models.Session{ID: "sess-bus", Key: "telegram:123", Channel: models.ChannelTelegram}
	events, cancelSub, err := bus.Subscribe(context.Background(), pubsub.AgentTopic(session.Key))
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer cancelSub()

	msg := &models.Message{Role: models.RoleUser, Content: "hi"}
	ch, err := runtime.Process(context.Background(), session, msg)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	for range ch {
	}

	var sawStarted, sawDone bool
	for {
		select {
		case ev := <-events:
			if ev.Kind == pubsub.EventStatus && ev.Phase == pubsub.PhaseStarted {
				sawStarted = true
			}
			if ev.Kind == pubsub.EventDone {
				sawDone = true
			}
		case <-time.After(100 * time.Millisecond):
			if !sawStarted || !sawDone {
				t.Fatalf("sawStarted=%v sawDone=%v", sawStarted, sawDone)
			}
			return
		}
	}
}

// toolLoopProvider always returns a single tool call, forcing the agentic
// loop to keep iterating until the iteration cap is hit.
type toolLoopProvider struct {
	toolName string
}

func (p *toolLoopProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	ch := make(chan *CompletionChunk, 2)
	ch <- &CompletionChunk{ToolCall: &models.ToolCall{ID: "call-1", Name: p.toolName, Input: []byte(`{}`)}}
	ch <- &CompletionChunk{Done: true}
	close(ch)
	return ch, nil
}

func (p *toolLoopProvider) Name() string        { return "tool-loop" }
func (p *toolLoopProvider) Models() []Model     { return nil }
func (p *toolLoopProvider) SupportsTools() bool { return true }

func lastAssistantMessage(t *testing.T, store *memoryStore, sessionID string) *models.Message {
	t.Helper()
	store.mu.Lock()
	defer store.mu.Unlock()
	msgs := store.messages[sessionID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleAssistant {
			return msgs[i]
		}
	}
	t.Fatal("no assistant message persisted")
	return nil
}
