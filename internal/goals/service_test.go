package goals

import (
	"errors"
	"testing"

	"wfsync/entity"
	"wfsync/internal/tenantstore"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(tenantstore.NewManager(t.TempDir()))
}

func TestCreateAppliesTransformAndMilestones(t *testing.T) {
	svc := newTestService(t)

	goal, err := svc.Create("user-1", "I want to become a Senior Developer", "career")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if goal.TransformedText != "I am a senior developer" {
		t.Errorf("transformed = %q, want %q", goal.TransformedText, "I am a senior developer")
	}
	if goal.Category != string(CategoryCareer) {
		t.Errorf("category = %q, want career", goal.Category)
	}
	if len(goal.Milestones) != 5 {
		t.Errorf("milestones = %d, want 5", len(goal.Milestones))
	}
	if goal.Status != entity.GoalActive {
		t.Errorf("status = %q, want active", goal.Status)
	}
}

func TestCreateDefaultsUnknownCategoryToOther(t *testing.T) {
	svc := newTestService(t)
	goal, err := svc.Create("user-1", "something vague", "")
	if err != nil {
		t.Fatal(err)
	}
	if goal.Category != string(CategoryOther) {
		t.Errorf("category = %q, want other", goal.Category)
	}
}

func TestUpdateProgressRejectsOutOfRange(t *testing.T) {
	svc := newTestService(t)
	goal, err := svc.Create("user-1", "learn go", "education")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.UpdateProgress("user-1", goal.ID, 150); !errors.Is(err, ErrProgressOutOfRange) {
		t.Errorf("err = %v, want ErrProgressOutOfRange", err)
	}
	if err := svc.UpdateProgress("user-1", goal.ID, -1); !errors.Is(err, ErrProgressOutOfRange) {
		t.Errorf("err = %v, want ErrProgressOutOfRange", err)
	}
}

func TestUpdateProgressAutoCompletesAt100(t *testing.T) {
	svc := newTestService(t)
	goal, err := svc.Create("user-1", "run a marathon", "health")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.UpdateProgress("user-1", goal.ID, 100); err != nil {
		t.Fatalf("update progress: %v", err)
	}

	got, err := svc.Get("user-1", goal.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != entity.GoalCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
}

func TestGetUnknownGoalIsNotFound(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Get("user-1", "ghost"); !errors.Is(err, tenantstore.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	svc := newTestService(t)
	g1, err := svc.Create("user-1", "goal one", "career")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create("user-1", "goal two", "health"); err != nil {
		t.Fatal(err)
	}
	if err := svc.Complete("user-1", g1.ID); err != nil {
		t.Fatal(err)
	}

	active, err := svc.List("user-1", entity.GoalActive)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Errorf("active goals = %d, want 1", len(active))
	}

	all, err := svc.List("user-1", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("all goals = %d, want 2", len(all))
	}
}

func TestTransformToPresentTenseRussian(t *testing.T) {
	got := TransformToPresentTense("хочу выучить английский")
	if got != "Я знаю английский" {
		t.Errorf("got %q", got)
	}
}

func TestParseCategoryRecognizesAliases(t *testing.T) {
	cases := map[string]Category{
		"career":    CategoryCareer,
		"money":     CategoryFinance,
		"fitness":   CategoryHealth,
		"family":    CategoryRelationships,
		"education": CategoryEducation,
		"gibberish": CategoryOther,
	}
	for in, want := range cases {
		if got := ParseCategory(in); got != want {
			t.Errorf("ParseCategory(%q) = %q, want %q", in, got, want)
		}
	}
}
