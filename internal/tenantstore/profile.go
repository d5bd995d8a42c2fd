package tenantstore

import (
	"encoding/json"
	"time"

	"wfsync/entity"
)

// GetProfile assembles a TenantProfile from the profile key/value table.
// Missing keys simply leave the corresponding field at its zero value.
func (t *TenantStore) GetProfile() (*entity.TenantProfile, error) {
	rows, err := t.db.Query(`SELECT key, value FROM profile`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var p entity.TenantProfile
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		switch key {
		case "name":
			p.Name = value
		case "birthdate":
			p.Birthdate = value
		case "mbti":
			p.MBTI = value
		case "esoteric_enabled":
			p.EsotericEnabled = value == "true"
		case "onboarding_complete":
			p.OnboardingComplete = value == "true"
		case "selected_features":
			_ = json.Unmarshal([]byte(value), &p.SelectedFeatures)
		}
	}
	return &p, rows.Err()
}

// SetProfileField upserts a single profile key, the unit of change the
// onboarding flow uses as the user answers each question in turn.
func (t *TenantStore) SetProfileField(key, value string, at time.Time) error {
	return t.withLock(func() error {
		_, err := t.db.Exec(`
			INSERT INTO profile (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, at)
		return err
	})
}

// SetSelectedFeatures replaces the selected_features list atomically.
func (t *TenantStore) SetSelectedFeatures(features []string, at time.Time) error {
	b, err := json.Marshal(features)
	if err != nil {
		return err
	}
	return t.SetProfileField("selected_features", string(b), at)
}
