package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/whyando/spacetraders/internal/domain/fleet"
)

// StoredSurvey pairs a survey with its pool key.
type StoredSurvey struct {
	Key    string
	Survey fleet.Survey
}

// SurveyRepositoryGORM persists the survey pool.
type SurveyRepositoryGORM struct {
	db *gorm.DB
}

func NewSurveyRepository(db *gorm.DB) *SurveyRepositoryGORM {
	return &SurveyRepositoryGORM{db: db}
}

// Save upserts one survey under its pool key.
func (r *SurveyRepositoryGORM) Save(ctx context.Context, key string, survey *fleet.Survey) error {
	payload, err := json.Marshal(survey)
	if err != nil {
		return fmt.Errorf("failed to encode survey: %w", err)
	}
	model := &SurveyModel{
		ID:        key,
		Asteroid:  string(survey.Symbol),
		Payload:   string(payload),
		Expires:   survey.Expiration,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "expires"}),
	}).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save survey %s: %w", key, err)
	}
	return nil
}

// List returns every stored survey, expired ones included; the manager
// filters by expiration.
func (r *SurveyRepositoryGORM) List(ctx context.Context) ([]StoredSurvey, error) {
	var models []SurveyModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list surveys: %w", err)
	}
	out := make([]StoredSurvey, 0, len(models))
	for _, m := range models {
		var survey fleet.Survey
		if err := json.Unmarshal([]byte(m.Payload), &survey); err != nil {
			return nil, fmt.Errorf("failed to decode survey %s: %w", m.ID, err)
		}
		out = append(out, StoredSurvey{Key: m.ID, Survey: survey})
	}
	return out, nil
}

// Delete removes a survey from the pool.
func (r *SurveyRepositoryGORM) Delete(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).Delete(&SurveyModel{}, "id = ?", key).Error; err != nil {
		return fmt.Errorf("failed to delete survey %s: %w", key, err)
	}
	return nil
}
