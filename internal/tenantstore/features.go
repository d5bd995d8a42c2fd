package tenantstore

import (
	"database/sql"
	"errors"

	"wfsync/entity"
)

func (t *TenantStore) GetFeature(key string) (*entity.FeatureSetting, error) {
	var f entity.FeatureSetting
	var cfg []byte
	row := t.db.QueryRow(`SELECT feature_key, enabled, config FROM feature_settings WHERE feature_key = ?`, key)
	err := row.Scan(&f.FeatureKey, &f.Enabled, &cfg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	f.Config = cfg
	return &f, nil
}

func (t *TenantStore) ListFeatures() ([]entity.FeatureSetting, error) {
	rows, err := t.db.Query(`SELECT feature_key, enabled, config FROM feature_settings ORDER BY feature_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.FeatureSetting
	for rows.Next() {
		var f entity.FeatureSetting
		var cfg []byte
		if err := rows.Scan(&f.FeatureKey, &f.Enabled, &cfg); err != nil {
			return nil, err
		}
		f.Config = cfg
		out = append(out, f)
	}
	return out, rows.Err()
}

func (t *TenantStore) SetFeature(f *entity.FeatureSetting) error {
	cfg := f.Config
	if len(cfg) == 0 {
		cfg = []byte("{}")
	}
	return t.withLock(func() error {
		_, err := t.db.Exec(`
			INSERT INTO feature_settings (feature_key, enabled, config) VALUES (?, ?, ?)
			ON CONFLICT(feature_key) DO UPDATE SET enabled = excluded.enabled, config = excluded.config`,
			f.FeatureKey, f.Enabled, string(cfg))
		return err
	})
}
