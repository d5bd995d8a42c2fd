package goals

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wfsync/entity"
	"wfsync/internal/tenantstore"
)

// ErrProgressOutOfRange is returned by UpdateProgress for a value outside [0,100].
var ErrProgressOutOfRange = errors.New("goals: progress out of range [0,100]")

// Service creates and tracks goals in a user's tenant store, applying the
// present-tense transform and starter milestones on creation.
type Service struct {
	tenants *tenantstore.Manager
}

func NewService(tenants *tenantstore.Manager) *Service {
	return &Service{tenants: tenants}
}

// Create transforms goalText, classifies categoryHint (empty defaults to
// "other"), generates starter milestones, and persists the new goal.
func (s *Service) Create(userID, goalText, categoryHint string) (*entity.Goal, error) {
	tenant, err := s.tenants.Get(userID)
	if err != nil {
		return nil, err
	}

	category := ParseCategory(categoryHint)
	now := time.Now().UTC()
	goal := &entity.Goal{
		ID:              uuid.NewString(),
		OriginalText:    goalText,
		TransformedText: TransformToPresentTense(goalText),
		Category:        string(category),
		Status:          entity.GoalActive,
		Progress:        0,
		Milestones:      GenerateMilestones(category),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := tenant.CreateGoal(goal); err != nil {
		return nil, fmt.Errorf("goals: create: %w", err)
	}
	return goal, nil
}

func (s *Service) Get(userID, goalID string) (*entity.Goal, error) {
	tenant, err := s.tenants.Get(userID)
	if err != nil {
		return nil, err
	}
	return tenant.GetGoal(goalID)
}

// List returns goals in status (entity.GoalActive, entity.GoalCompleted, or
// "" for all), oldest first.
func (s *Service) List(userID string, status entity.GoalStatus) ([]entity.Goal, error) {
	tenant, err := s.tenants.Get(userID)
	if err != nil {
		return nil, err
	}
	return tenant.ListGoals(status)
}

// UpdateProgress sets progress (0-100), auto-completing the goal at 100.
func (s *Service) UpdateProgress(userID, goalID string, progress int) error {
	if progress < 0 || progress > 100 {
		return ErrProgressOutOfRange
	}
	tenant, err := s.tenants.Get(userID)
	if err != nil {
		return err
	}
	status := entity.GoalActive
	if progress >= 100 {
		status = entity.GoalCompleted
	}
	return tenant.UpdateGoalProgress(goalID, progress, status)
}

// Complete marks a goal done regardless of its current progress value.
func (s *Service) Complete(userID, goalID string) error {
	tenant, err := s.tenants.Get(userID)
	if err != nil {
		return err
	}
	return tenant.UpdateGoalProgress(goalID, 100, entity.GoalCompleted)
}
