package survey

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/whyando/spacetraders/internal/adapters/persistence"
	"github.com/whyando/spacetraders/internal/domain/fleet"
	"github.com/whyando/spacetraders/internal/domain/shared"
)

// Manager is the persistent pool of mining surveys. Surveyors insert,
// extractors pick the best unexpired survey for their target good and purge
// surveys the server reports exhausted or invalid.
type Manager struct {
	repo  *persistence.SurveyRepositoryGORM
	clock shared.Clock

	mu      sync.Mutex
	surveys map[string]fleet.Survey
}

// NewManager creates a survey manager. A nil clock means RealClock.
func NewManager(repo *persistence.SurveyRepositoryGORM, clock shared.Clock) *Manager {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Manager{
		repo:    repo,
		clock:   clock,
		surveys: map[string]fleet.Survey{},
	}
}

// Load restores the pool from persistence, discarding expired surveys.
func (m *Manager) Load(ctx context.Context) error {
	stored, err := m.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load survey pool: %w", err)
	}
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range stored {
		if s.Survey.IsExpired(now) {
			continue
		}
		m.surveys[s.Key] = s.Survey
	}
	log.Printf("[surveys] loaded %d active surveys", len(m.surveys))
	return nil
}

// InsertSurveys merges freshly created surveys into the pool under new keys.
func (m *Manager) InsertSurveys(ctx context.Context, surveys []fleet.Survey) error {
	for i := range surveys {
		key := uuid.NewString()
		if err := m.repo.Save(ctx, key, &surveys[i]); err != nil {
			return err
		}
		m.mu.Lock()
		m.surveys[key] = surveys[i]
		m.mu.Unlock()
	}
	return nil
}

// BestSurveyFor picks the unexpired survey of the asteroid with the highest
// expected yield for the good. The bool is false when none qualifies.
func (m *Manager) BestSurveyFor(asteroid shared.WaypointSymbol, good string) (string, *fleet.Survey, bool) {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	bestKey := ""
	var best *fleet.Survey
	var bestYield float64
	for key, survey := range m.surveys {
		if survey.Symbol != string(asteroid) || survey.IsExpired(now) {
			continue
		}
		yield := survey.YieldFraction(good)
		if yield <= 0 {
			continue
		}
		if best == nil || yield > bestYield {
			s := survey
			bestKey, best, bestYield = key, &s, yield
		}
	}
	if best == nil {
		return "", nil, false
	}
	return bestKey, best, true
}

// RemoveSurvey purges a survey after exhaustion or invalidation.
func (m *Manager) RemoveSurvey(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.surveys, key)
	m.mu.Unlock()
	return m.repo.Delete(ctx, key)
}

// ActiveCount is the number of unexpired surveys in the pool.
func (m *Manager) ActiveCount() int {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for _, s := range m.surveys {
		if !s.IsExpired(now) {
			n++
		}
	}
	return n
}
