// Package orchestrator implements the per-message chat pipeline: resolve
// the requested agent, gate on token access, load history, invoke the
// agent runtime, meter usage, and persist the new turn. Grounded on
// original_source's gateway handlers and tools, which call the equivalent
// sequence inline per request.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"wfsync/entity"
	"wfsync/internal/billing"
	"wfsync/internal/identitystore"
	"wfsync/internal/memory"
	"wfsync/internal/tenantstore"
	"wfsync/lib/sl"
)

// historyWindow bounds how many past turns are fed back to the runtime as
// context. The spec names no limit, but an unbounded history cannot fit a
// real provider's context window; this is our own ambient choice.
const historyWindow = 40

// Orchestrator wires the token meter, agent-scoped memory, and the agent
// runtime together behind one HandleChat entry point, shared by the HTTP
// surface and every channel transport.
type Orchestrator struct {
	identity *identitystore.Store
	tenants  *tenantstore.Manager
	meter    *billing.TokenMeter
	runtime  Runtime
	embedder memory.EmbeddingProvider
	log      *slog.Logger
}

func New(identity *identitystore.Store, tenants *tenantstore.Manager, meter *billing.TokenMeter, runtime Runtime, embedder memory.EmbeddingProvider, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		identity: identity,
		tenants:  tenants,
		meter:    meter,
		runtime:  runtime,
		embedder: embedder,
		log:      log.With(sl.Module("orchestrator")),
	}
}

// HandleChat runs steps 2-9 of the chat pipeline for an already-
// authenticated requester (step 1 is the caller's job: verify the bearer
// JWT for HTTP, or the allowlist for a channel).
func (o *Orchestrator) HandleChat(ctx context.Context, requesterUserID, agentID, message string) (string, error) {
	agent, err := o.identity.GetAgent(agentID)
	if errors.Is(err, identitystore.ErrNotFound) {
		return "", ErrAgentNotFound
	}
	if err != nil {
		return "", err
	}
	if agent.UserID != requesterUserID {
		return "", ErrForbidden
	}

	access, err := o.meter.CheckAccess(requesterUserID)
	if err != nil {
		return "", err
	}
	if !access.Allowed() {
		return "", &AccessDeniedError{Reason: access}
	}

	memStore := memory.New(agent.ID, o.identity, o.embedder)

	history, err := o.loadHistory(memStore)
	if err != nil {
		return "", err
	}

	reply, usage, err := o.runtime.Complete(ctx, agent, history, message)
	if err != nil {
		return "", &UpstreamError{Err: err}
	}

	provider, model := "unknown", "unknown"
	if cfg, cfgErr := agent.LLMConfig(); cfgErr == nil && cfg != nil {
		provider, model = cfg.Provider, cfg.Model
	}
	description := "chat with agent " + agent.Name
	if _, err := o.meter.RecordUsage(requesterUserID, provider, model, usage.InputTokens, usage.OutputTokens, description); err != nil {
		// A successful LM call was already charged to the provider; a
		// failure to record it is logged, not surfaced, per §7.
		o.log.Error("failed to record usage after successful completion", sl.Err(err), "user_id", requesterUserID, "agent_id", agent.ID)
	}

	o.persistTurn(ctx, memStore, requesterUserID, message, reply)

	return reply, nil
}

// loadHistory reads category custom("history") newest-first, reverses to
// chronological, and decodes the hist_<micros>_<role> key pattern into
// alternating Turns, capped to the most recent historyWindow entries.
func (o *Orchestrator) loadHistory(memStore *memory.Store) ([]Turn, error) {
	entries, err := memStore.List(entity.HistoryCategory)
	if err != nil {
		return nil, err
	}
	// List returns newest-first; take the most recent window, then reverse
	// to chronological order.
	if len(entries) > historyWindow {
		entries = entries[:historyWindow]
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })

	turns := make([]Turn, 0, len(entries))
	for _, e := range entries {
		role, ok := parseHistoryRole(e.Key)
		if !ok {
			continue
		}
		turns = append(turns, Turn{Role: role, Content: e.Content})
	}
	return turns, nil
}

// parseHistoryRole decodes the role suffix out of a hist_<micros>_<role> key.
func parseHistoryRole(key string) (entity.HistoryRole, bool) {
	const prefix = "hist_"
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(key, prefix)
	underscore := strings.IndexByte(rest, '_')
	if underscore < 0 {
		return "", false
	}
	if _, err := strconv.ParseInt(rest[:underscore], 10, 64); err != nil {
		return "", false
	}
	role := entity.HistoryRole(rest[underscore+1:])
	if role != entity.RoleUser && role != entity.RoleAssistant {
		return "", false
	}
	return role, true
}

// persistTurn writes the user/assistant pair into agent-scoped memory
// (t_asst = t_user+1, per spec) and mirrors them into the tenant's
// conversation log for audit. Both are best-effort: storage failures after
// a successful LM call are logged and swallowed, not surfaced to the
// caller (§7 propagation policy).
func (o *Orchestrator) persistTurn(ctx context.Context, memStore *memory.Store, userID, userMessage, reply string) {
	tUser := time.Now().UTC().UnixMicro()
	tAsst := tUser + 1

	if err := memStore.StoreEntry(ctx, entity.HistoryKey(tUser, entity.RoleUser), userMessage, entity.HistoryCategory); err != nil {
		o.log.Error("failed to persist user memory entry", sl.Err(err), "user_id", userID)
	}
	if err := memStore.StoreEntry(ctx, entity.HistoryKey(tAsst, entity.RoleAssistant), reply, entity.HistoryCategory); err != nil {
		o.log.Error("failed to persist assistant memory entry", sl.Err(err), "user_id", userID)
	}

	tenant, err := o.tenants.Get(userID)
	if err != nil {
		o.log.Error("failed to open tenant store for conversation log", sl.Err(err), "user_id", userID)
		return
	}
	userAt := time.UnixMicro(tUser).UTC()
	asstAt := time.UnixMicro(tAsst).UTC()
	if _, err := tenant.AppendMessage(&entity.ConversationMessage{Role: string(entity.RoleUser), Content: userMessage, CreatedAt: userAt}); err != nil {
		o.log.Error("failed to append user conversation message", sl.Err(err), "user_id", userID)
	}
	if _, err := tenant.AppendMessage(&entity.ConversationMessage{Role: string(entity.RoleAssistant), Content: reply, CreatedAt: asstAt}); err != nil {
		o.log.Error("failed to append assistant conversation message", sl.Err(err), "user_id", userID)
	}
}
