package persistence

import "time"

// KeyValueModel represents the key_values table. All orchestrator state that
// survives a restart (era, ship assignments, reservations, schedules, task
// sets, agent tokens) is stored here as JSON under well-known keys.
type KeyValueModel struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Value     string    `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (KeyValueModel) TableName() string {
	return "key_values"
}

// SurveyModel represents the surveys table: the persistent survey pool.
type SurveyModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Asteroid  string    `gorm:"column:asteroid;not null"`
	Payload   string    `gorm:"column:payload;type:text;not null"`
	Expires   time.Time `gorm:"column:expires;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (SurveyModel) TableName() string {
	return "surveys"
}
