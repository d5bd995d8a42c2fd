package entity

import (
	"encoding/json"
	"net/http"
	"time"

	"wfsync/lib/validate"
)

// Agent is a user-owned named configuration; the unit of memory scoping.
// Config is an opaque JSON blob that may carry channels.telegram.bot_token
// and channels.telegram.allowed_users, among other provider-specific keys.
type Agent struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Name      string          `json:"name" db:"name" validate:"required"`
	Config    json.RawMessage `json:"config" db:"config"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

func (a *Agent) Bind(_ *http.Request) error {
	if len(a.Config) == 0 {
		a.Config = json.RawMessage("{}")
	}
	return validate.Struct(a)
}

// TelegramChannelConfig is the recognized shape of config.channels.telegram.
type TelegramChannelConfig struct {
	BotToken     string   `json:"bot_token"`
	AllowedUsers []string `json:"allowed_users"`
}

// agentChannelsConfig mirrors the subset of Agent.Config the platform reads.
type agentChannelsConfig struct {
	Channels struct {
		Telegram *TelegramChannelConfig `json:"telegram"`
	} `json:"channels"`
}

// TelegramConfig extracts the telegram channel config from an agent's
// opaque config blob, if present. Unknown keys elsewhere in Config are
// preserved untouched by the caller since this only reads, never rewrites.
func (a *Agent) TelegramConfig() (*TelegramChannelConfig, error) {
	if len(a.Config) == 0 {
		return nil, nil
	}
	var parsed agentChannelsConfig
	if err := json.Unmarshal(a.Config, &parsed); err != nil {
		return nil, err
	}
	return parsed.Channels.Telegram, nil
}

// SetTelegramConfig rewrites config.channels.telegram within the agent's
// opaque config blob, leaving every other top-level key (e.g. llm) and any
// sibling entry under channels untouched.
func (a *Agent) SetTelegramConfig(cfg *TelegramChannelConfig) error {
	root := map[string]json.RawMessage{}
	if len(a.Config) > 0 {
		if err := json.Unmarshal(a.Config, &root); err != nil {
			return err
		}
	}

	channelsRaw := map[string]json.RawMessage{}
	if existing, ok := root["channels"]; ok {
		if err := json.Unmarshal(existing, &channelsRaw); err != nil {
			return err
		}
	}

	encodedTelegram, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	channelsRaw["telegram"] = encodedTelegram

	encodedChannels, err := json.Marshal(channelsRaw)
	if err != nil {
		return err
	}
	root["channels"] = encodedChannels

	encodedRoot, err := json.Marshal(root)
	if err != nil {
		return err
	}
	a.Config = encodedRoot
	return nil
}

// LLMConfig is the recognized shape of config.llm: which provider/model the
// agent runtime invokes, and where. The language-model provider client
// itself is an external collaborator; this just names which one to call.
type LLMConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url,omitempty"`
}

type agentLLMConfig struct {
	LLM *LLMConfig `json:"llm"`
}

// LLMConfig extracts the agent's language-model provider config, falling
// back to nil (caller applies a platform default) if unset.
func (a *Agent) LLMConfig() (*LLMConfig, error) {
	if len(a.Config) == 0 {
		return nil, nil
	}
	var parsed agentLLMConfig
	if err := json.Unmarshal(a.Config, &parsed); err != nil {
		return nil, err
	}
	return parsed.LLM, nil
}

// ChatRequest is the body of POST /agents/:id/chat.
type ChatRequest struct {
	Message string `json:"message" validate:"required"`
}

func (c *ChatRequest) Bind(_ *http.Request) error {
	return validate.Struct(c)
}

// ChatResponse is returned from POST /agents/:id/chat.
type ChatResponse struct {
	Response string `json:"response"`
}
