package entity

import (
	"fmt"
	"time"
)

// MemoryCategory classifies a memory entry. Custom categories carry an
// arbitrary label, e.g. Custom("history") for conversation history.
type MemoryCategory struct {
	kind  string
	label string
}

var (
	MemoryCore         = MemoryCategory{kind: "core"}
	MemoryDaily         = MemoryCategory{kind: "daily"}
	MemoryConversation = MemoryCategory{kind: "conversation"}
)

// MemoryCustom constructs a custom category with the given label.
func MemoryCustom(label string) MemoryCategory {
	return MemoryCategory{kind: "custom", label: label}
}

// String renders the category for storage: built-ins as their bare name,
// custom categories as their label (so "custom(history)" is stored as
// "history" and round-trips via ParseMemoryCategory).
func (c MemoryCategory) String() string {
	if c.kind == "custom" {
		return c.label
	}
	return c.kind
}

// ParseMemoryCategory decodes a stored category string back into a
// MemoryCategory, recognizing the built-in kinds and treating anything
// else as a custom label.
func ParseMemoryCategory(s string) MemoryCategory {
	switch s {
	case "core":
		return MemoryCore
	case "daily":
		return MemoryDaily
	case "conversation":
		return MemoryConversation
	default:
		return MemoryCustom(s)
	}
}

// HistoryCategory is the category used for conversation history entries.
var HistoryCategory = MemoryCustom("history")

// HistoryRole distinguishes the two roles stored in conversation history.
type HistoryRole string

const (
	RoleUser      HistoryRole = "user"
	RoleAssistant HistoryRole = "assistant"
)

// HistoryKey builds the key pattern hist_<micros>_<role> used for
// agent-scoped history entries. The caller is responsible for choosing
// micros such that the assistant entry sorts strictly after its paired
// user entry (spec: t_asst = t_user + 1).
func HistoryKey(micros int64, role HistoryRole) string {
	return fmt.Sprintf("hist_%d_%s", micros, role)
}

// MemoryEntry is a per-agent, vector-indexed key/content record.
type MemoryEntry struct {
	ID        string
	AgentID   string
	Key       string
	Content   string
	Category  MemoryCategory
	Embedding []float64
	CreatedAt time.Time
	SessionID *string
	Score     *float64
}
