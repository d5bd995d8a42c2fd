package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"wfsync/entity"
)

// Turn is one alternating user/assistant message fed to the agent runtime
// as conversation context.
type Turn struct {
	Role    entity.HistoryRole
	Content string
}

// Usage reports the token counts a runtime call consumed, for metering.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Runtime is the external collaborator that turns conversation context plus
// a new user message into a reply. The language-model provider client,
// tool-invocation loop, and streaming are all out of scope here — Runtime
// is the seam a concrete provider implementation plugs into.
type Runtime interface {
	Complete(ctx context.Context, agent *entity.Agent, history []Turn, userMessage string) (reply string, usage Usage, err error)
}

// defaultBaseURLs covers the providers whose API is OpenAI chat-completions
// compatible, matching the billing cost table's provider names.
var defaultBaseURLs = map[string]string{
	"groq":       "https://api.groq.com/openai/v1",
	"deepseek":   "https://api.deepseek.com",
	"openrouter": "https://openrouter.ai/api/v1",
	"openai":     "https://api.openai.com/v1",
}

// ErrUnsupportedProvider is returned by HTTPRuntime for a provider whose
// wire format isn't OpenAI chat-completions compatible (anthropic, google —
// wiring those needs their native request/response shapes, left for a
// dedicated provider client per DESIGN.md).
var ErrUnsupportedProvider = fmt.Errorf("orchestrator: provider not wired for direct completion")

// HTTPRuntime is the default Runtime: a single OpenAI chat-completions
// compatible HTTP client, since groq/deepseek/openrouter/openai all expose
// that wire format. The per-agent LLMConfig selects provider/model/key.
type HTTPRuntime struct {
	client *http.Client
	log    *slog.Logger
}

func NewHTTPRuntime(log *slog.Logger) *HTTPRuntime {
	return &HTTPRuntime{client: &http.Client{Timeout: 60 * time.Second}, log: log}
}

type chatCompletionRequest struct {
	Model    string          `json:"model"`
	Messages []chatMessage   `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

func (r *HTTPRuntime) Complete(ctx context.Context, agent *entity.Agent, history []Turn, userMessage string) (string, Usage, error) {
	cfg, err := agent.LLMConfig()
	if err != nil {
		return "", Usage{}, fmt.Errorf("orchestrator: decode llm config: %w", err)
	}
	if cfg == nil {
		return "", Usage{}, fmt.Errorf("orchestrator: agent %s has no llm config", agent.ID)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		var ok bool
		baseURL, ok = defaultBaseURLs[cfg.Provider]
		if !ok {
			return "", Usage{}, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
		}
	}

	messages := make([]chatMessage, 0, len(history)+1)
	for _, t := range history {
		messages = append(messages, chatMessage{Role: string(t.Role), Content: t.Content})
	}
	messages = append(messages, chatMessage{Role: string(entity.RoleUser), Content: userMessage})

	reqBody, err := json.Marshal(chatCompletionRequest{Model: cfg.Model, Messages: messages})
	if err != nil {
		return "", Usage{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", Usage{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("orchestrator: %s request: %w", cfg.Provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Usage{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", Usage{}, fmt.Errorf("orchestrator: %s returned status %d", cfg.Provider, resp.StatusCode)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", Usage{}, fmt.Errorf("orchestrator: decode %s response: %w", cfg.Provider, err)
	}
	if len(parsed.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("orchestrator: %s returned no choices", cfg.Provider)
	}

	usage := Usage{InputTokens: parsed.Usage.PromptTokens, OutputTokens: parsed.Usage.CompletionTokens}
	if usage.InputTokens == 0 && usage.OutputTokens == 0 {
		usage = r.estimateUsage(messages, parsed.Choices[0].Message.Content)
	}
	return parsed.Choices[0].Message.Content, usage, nil
}

var (
	tokenizerOnce sync.Once
	tokenizer     *tiktoken.Tiktoken
)

// tokenCounter returns the shared cl100k_base encoder, or nil if it could
// not be loaded (tiktoken-go fetches its merge-rank table from a remote
// cache on first use; an offline sandbox falls back to estimateUsage's
// char-count heuristic instead of failing the whole request).
func tokenCounter() *tiktoken.Tiktoken {
	tokenizerOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			tokenizer = enc
		}
	})
	return tokenizer
}

// estimateUsage is the 4-chars-per-token fallback applied when a provider's
// response omits its usage block, so billing.RecordUsage still has a token
// count to charge against. When the cl100k_base encoder is available, its
// count is logged alongside the char-count estimate for drift monitoring,
// but never substituted into the billed Usage — the char-count estimate is
// what every provider in defaultBaseURLs is assumed to bill against absent
// a usage block, and silently swapping in a different (more accurate, and
// differently billed) BPE count would make billing non-deterministic.
func (r *HTTPRuntime) estimateUsage(messages []chatMessage, reply string) Usage {
	usage := estimateUsageByCharCount(messages, reply)
	r.logBPEDrift(messages, reply, usage)
	return usage
}

// logBPEDrift compares the char-count estimate against the cl100k_base BPE
// count, for operators watching how far the billed estimate drifts from
// actual tokenization on providers that use that encoding.
func (r *HTTPRuntime) logBPEDrift(messages []chatMessage, reply string, billed Usage) {
	enc := tokenCounter()
	if enc == nil || r.log == nil {
		return
	}
	var bpeInput int64
	for _, m := range messages {
		bpeInput += int64(len(enc.Encode(m.Content, nil, nil)))
	}
	bpeOutput := int64(len(enc.Encode(reply, nil, nil)))
	r.log.Debug("token estimate drift",
		slog.Int64("billed_input", billed.InputTokens), slog.Int64("bpe_input", bpeInput),
		slog.Int64("billed_output", billed.OutputTokens), slog.Int64("bpe_output", bpeOutput))
}

// estimateUsageByCharCount is the 4-chars-per-token estimate used whenever a
// provider's response omits its usage block.
func estimateUsageByCharCount(messages []chatMessage, reply string) Usage {
	var inputChars int
	for _, m := range messages {
		inputChars += len(m.Content)
	}
	return Usage{
		InputTokens:  int64(inputChars)/4 + 1,
		OutputTokens: int64(len(reply))/4 + 1,
	}
}
