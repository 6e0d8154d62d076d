package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVStoreGORM implements the orchestrator's key-value persistence using GORM.
// Values are JSON documents; callers go through the typed GetValue/SetValue
// helpers rather than touching raw bytes.
type KVStoreGORM struct {
	db *gorm.DB
}

// NewKVStore creates a new GORM-based key-value store.
func NewKVStore(db *gorm.DB) *KVStoreGORM {
	return &KVStoreGORM{db: db}
}

// GetRaw retrieves the JSON document stored under key. The second return is
// false when the key has never been written.
func (s *KVStoreGORM) GetRaw(ctx context.Context, key string) ([]byte, bool, error) {
	var model KeyValueModel
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return []byte(model.Value), true, nil
}

// SetRaw stores a JSON document under key, replacing any prior value.
func (s *KVStoreGORM) SetRaw(ctx context.Context, key string, value []byte) error {
	model := &KeyValueModel{Key: key, Value: string(value)}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(model).Error; err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

// GetValue decodes the value stored under key into T.
func GetValue[T any](ctx context.Context, s *KVStoreGORM, key string) (T, bool, error) {
	var value T
	raw, ok, err := s.GetRaw(ctx, key)
	if err != nil || !ok {
		return value, ok, err
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, false, fmt.Errorf("failed to decode key %s: %w", key, err)
	}
	return value, true, nil
}

// SetValue JSON-encodes value and stores it under key.
func SetValue[T any](ctx context.Context, s *KVStoreGORM, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode key %s: %w", key, err)
	}
	return s.SetRaw(ctx, key, raw)
}
