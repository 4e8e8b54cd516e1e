package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gridworm/gridworm/internal/models"
)

// SaveSetting stores value as JSON under key, replacing any previous value.
func (s *Store) SaveSetting(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("save setting %q: encode value: %w", key, err)
	}
	setting := &models.Setting{Key: key, Value: raw, UpdatedAt: s.timestamp()}
	if err := s.repos.Settings(s.db).Set(ctx, setting); err != nil {
		return s.fail(ctx, "save setting", err)
	}
	return nil
}

// GetSetting decodes the value of key into dest. It reports false when the
// key is absent, leaving dest untouched.
func (s *Store) GetSetting(ctx context.Context, key string, dest any) (bool, error) {
	setting, err := s.repos.Settings(s.db).Get(ctx, key)
	if err != nil {
		return false, s.fail(ctx, "get setting", err)
	}
	if setting == nil {
		return false, nil
	}
	if err := json.Unmarshal(setting.Value, dest); err != nil {
		return true, fmt.Errorf("get setting %q: decode value: %w", key, err)
	}
	return true, nil
}

func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	if err := s.repos.Settings(s.db).Delete(ctx, key); err != nil {
		return s.fail(ctx, "delete setting", err)
	}
	return nil
}

func (s *Store) GetAllSettings(ctx context.Context) ([]models.Setting, error) {
	all, err := s.repos.Settings(s.db).List(ctx)
	if err != nil {
		return nil, s.fail(ctx, "get all settings", err)
	}
	return all, nil
}
