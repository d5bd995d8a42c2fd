package entity

import (
	"encoding/json"
	"time"
)

// TenantProfile is a key→value map covering name, birthdate, MBTI, the
// esoteric toggle, selected features, and onboarding completion. It is
// persisted as individual rows (key, value, updated_at) in the per-tenant
// store and assembled into this struct for convenience on read.
type TenantProfile struct {
	Name               string `json:"name,omitempty"`
	Birthdate          string `json:"birthdate,omitempty"`
	MBTI               string `json:"mbti,omitempty"`
	EsotericEnabled    bool   `json:"esoteric_enabled,omitempty"`
	SelectedFeatures   []string `json:"selected_features,omitempty"`
	OnboardingComplete bool   `json:"onboarding_complete,omitempty"`
}

// GoalStatus is the lifecycle state of a Goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
)

// Goal carries the original user-authored text and its transformed
// first-person present-tense form (see internal/goals).
type Goal struct {
	ID              string     `json:"id" db:"id"`
	OriginalText    string     `json:"original_text" db:"original_text"`
	TransformedText string     `json:"transformed_text" db:"transformed_text"`
	Category        string     `json:"category" db:"category"`
	Status          GoalStatus `json:"status" db:"status"`
	Progress        int        `json:"progress" db:"progress"`
	Milestones      []string   `json:"milestones" db:"-"`
	NotionPageID     *string    `json:"notion_page_id,omitempty" db:"notion_page_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// MilestonesJSON marshals Milestones for storage in a TEXT column.
func (g *Goal) MilestonesJSON() (string, error) {
	b, err := json.Marshal(g.Milestones)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ConversationMessage is one turn of per-tenant chat history.
type ConversationMessage struct {
	ID         int64     `json:"id" db:"id"`
	Role       string    `json:"role" db:"role"`
	Content    string    `json:"content" db:"content"`
	Tokens     *int64    `json:"tokens,omitempty" db:"tokens"`
	Provider   *string   `json:"provider,omitempty" db:"provider"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// FeatureSetting toggles an opt-in feature for a tenant, with optional
// feature-specific JSON configuration.
type FeatureSetting struct {
	FeatureKey string          `json:"feature_key" db:"feature_key"`
	Enabled    bool            `json:"enabled" db:"enabled"`
	Config     json.RawMessage `json:"config,omitempty" db:"config"`
}
