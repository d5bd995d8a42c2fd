package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"wfsync/entity"
	"wfsync/internal/billing"
	"wfsync/internal/channels"
	"wfsync/internal/identitystore"
	"wfsync/internal/memory"
	"wfsync/internal/tenantstore"
)

func channelMessageFor(senderID string) channels.ChannelMessage {
	return channels.ChannelMessage{AgentID: "agent-1", ChatID: senderID, SenderID: senderID, Text: "hi", MessageID: "m1"}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nil, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

type stubRuntime struct {
	reply string
	usage Usage
	err   error
}

func (s *stubRuntime) Complete(ctx context.Context, agent *entity.Agent, history []Turn, userMessage string) (string, Usage, error) {
	return s.reply, s.usage, s.err
}

func newTestOrchestrator(t *testing.T, runtime Runtime) (*Orchestrator, *identitystore.Store, *billing.TokenMeter) {
	t.Helper()
	store, err := identitystore.Open(filepath.Join(t.TempDir(), "central.db"))
	if err != nil {
		t.Fatalf("open identity store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	meter := billing.New(store, billing.WithTrialDays(3), billing.WithTrialTokenLimit(1_000_000))
	tenants := tenantstore.NewManager(t.TempDir())
	embedder := memory.NewHashEmbedder(32)

	return New(store, tenants, meter, runtime, embedder, discardLogger()), store, meter
}

func mustUser(t *testing.T, store *identitystore.Store, id string) *entity.User {
	t.Helper()
	u := &entity.User{ID: id, Email: id + "@example.com", PasswordHash: "x", CreatedAt: time.Now().UTC()}
	if err := store.CreateUser(u, 3, 1_000_000); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func mustAgent(t *testing.T, store *identitystore.Store, userID, agentID string) *entity.Agent {
	t.Helper()
	cfg, _ := json.Marshal(map[string]any{"llm": map[string]string{"provider": "groq", "model": "llama"}})
	a := &entity.Agent{ID: agentID, UserID: userID, Name: "bot", Config: cfg, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if err := store.CreateAgent(a); err != nil {
		t.Fatalf("create agent: %v", err)
	}
	return a
}

func TestHandleChatReturnsReplyAndRecordsUsage(t *testing.T) {
	runtime := &stubRuntime{reply: "hello there", usage: Usage{InputTokens: 100, OutputTokens: 50}}
	o, store, meter := newTestOrchestrator(t, runtime)
	user := mustUser(t, store, "u1")
	mustAgent(t, store, user.ID, "agent-1")

	reply, err := o.HandleChat(context.Background(), user.ID, "agent-1", "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "hello there" {
		t.Errorf("reply = %q, want %q", reply, "hello there")
	}

	remaining, err := meter.GetTrialRemaining(user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if remaining != 1_000_000-150 {
		t.Errorf("trial remaining = %d, want %d", remaining, 1_000_000-150)
	}
}

func TestHandleChatUnknownAgentReturnsErrAgentNotFound(t *testing.T) {
	o, store, _ := newTestOrchestrator(t, &stubRuntime{})
	user := mustUser(t, store, "u1")

	_, err := o.HandleChat(context.Background(), user.ID, "ghost", "hi")
	if !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("err = %v, want ErrAgentNotFound", err)
	}
}

func TestHandleChatForbidsNonOwner(t *testing.T) {
	o, store, _ := newTestOrchestrator(t, &stubRuntime{})
	owner := mustUser(t, store, "owner")
	intruder := mustUser(t, store, "intruder")
	mustAgent(t, store, owner.ID, "agent-1")

	_, err := o.HandleChat(context.Background(), intruder.ID, "agent-1", "hi")
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestHandleChatDeniesAccessWhenTrialExhausted(t *testing.T) {
	o, store, _ := newTestOrchestrator(t, &stubRuntime{reply: "hi", usage: Usage{InputTokens: 1, OutputTokens: 1}})
	user := &entity.User{ID: "u1", Email: "u1@example.com", PasswordHash: "x", CreatedAt: time.Now().UTC()}
	if err := store.CreateUser(user, 3, 10); err != nil {
		t.Fatal(err)
	}
	mustAgent(t, store, user.ID, "agent-1")

	meter := billing.New(store, billing.WithTrialDays(3), billing.WithTrialTokenLimit(10))
	if _, err := meter.RecordUsage(user.ID, "groq", "llama", 1000, 1000, "burn trial"); err != nil {
		t.Fatal(err)
	}

	var denied *AccessDeniedError
	_, err := o.HandleChat(context.Background(), user.ID, "agent-1", "hi")
	if !errors.As(err, &denied) {
		t.Fatalf("err = %v, want *AccessDeniedError", err)
	}
	if denied.Reason != billing.AccessTrialExhausted {
		t.Errorf("reason = %v, want AccessTrialExhausted", denied.Reason)
	}
}

func TestHandleChatWrapsRuntimeFailureAsUpstreamError(t *testing.T) {
	o, store, _ := newTestOrchestrator(t, &stubRuntime{err: errors.New("provider down")})
	user := mustUser(t, store, "u1")
	mustAgent(t, store, user.ID, "agent-1")

	_, err := o.HandleChat(context.Background(), user.ID, "agent-1", "hi")
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
}

func TestHandleChatPersistsHistoryAcrossTurns(t *testing.T) {
	runtime := &stubRuntime{reply: "second reply", usage: Usage{InputTokens: 1, OutputTokens: 1}}
	o, store, _ := newTestOrchestrator(t, runtime)
	user := mustUser(t, store, "u1")
	mustAgent(t, store, user.ID, "agent-1")

	if _, err := o.HandleChat(context.Background(), user.ID, "agent-1", "first message"); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if _, err := o.HandleChat(context.Background(), user.ID, "agent-1", "second message"); err != nil {
		t.Fatalf("second turn: %v", err)
	}

	memStore := memory.New("agent-1", store, memory.NewHashEmbedder(32))
	entries, err := memStore.List(entity.HistoryCategory)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Fatalf("got %d history entries, want 4 (2 turns x user+assistant)", len(entries))
	}
}

func TestChannelHandlerPromptsLinkingWhenSenderUnknown(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, &stubRuntime{})
	handler := o.ChannelHandler("agent-1")

	reply, err := handler(context.Background(), channelMessageFor("unlinked-sender"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply == "" {
		t.Fatal("expected a prompt to link the telegram account")
	}
}

func TestChannelHandlerRendersAgentNotFoundAsPlainText(t *testing.T) {
	o, store, _ := newTestOrchestrator(t, &stubRuntime{})
	user := mustUser(t, store, "u1")
	if err := store.LinkTelegram(user.ID, "12345", nil); err != nil {
		t.Fatal(err)
	}

	handler := o.ChannelHandler("ghost-agent")
	reply, err := handler(context.Background(), channelMessageFor("12345"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "That agent no longer exists." {
		t.Errorf("reply = %q", reply)
	}
}
