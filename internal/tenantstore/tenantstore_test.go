package tenantstore

import (
	"testing"
	"time"

	"wfsync/entity"
)

func newTestStore(t *testing.T) *TenantStore {
	t.Helper()
	mgr := NewManager(t.TempDir())
	store, err := mgr.Get("tenant-1")
	if err != nil {
		t.Fatalf("get tenant store: %v", err)
	}
	t.Cleanup(mgr.CloseAll)
	return store
}

func TestAppendMessageAndRecentMessagesOrdersChronologically(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().UTC()

	for i, text := range []string{"first", "second", "third"} {
		if _, err := store.AppendMessage(&entity.ConversationMessage{
			Role: "user", Content: text, CreatedAt: base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("append %q: %v", text, err)
		}
	}

	recent, err := store.RecentMessages(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d messages, want 2", len(recent))
	}
	if recent[0].Content != "second" || recent[1].Content != "third" {
		t.Errorf("got %q then %q, want chronological second, third", recent[0].Content, recent[1].Content)
	}
}

func TestFeatureSettingRoundTripAndUpsert(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.GetFeature("goals"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound for unset feature", err)
	}

	if err := store.SetFeature(&entity.FeatureSetting{FeatureKey: "goals", Enabled: true}); err != nil {
		t.Fatal(err)
	}
	f, err := store.GetFeature("goals")
	if err != nil {
		t.Fatal(err)
	}
	if !f.Enabled {
		t.Error("expected feature to be enabled")
	}

	if err := store.SetFeature(&entity.FeatureSetting{FeatureKey: "goals", Enabled: false}); err != nil {
		t.Fatal(err)
	}
	f, err = store.GetFeature("goals")
	if err != nil {
		t.Fatal(err)
	}
	if f.Enabled {
		t.Error("expected upsert to flip feature to disabled")
	}
}

func TestListFeaturesReturnsAllInKeyOrder(t *testing.T) {
	store := newTestStore(t)
	if err := store.SetFeature(&entity.FeatureSetting{FeatureKey: "zeta", Enabled: true}); err != nil {
		t.Fatal(err)
	}
	if err := store.SetFeature(&entity.FeatureSetting{FeatureKey: "alpha", Enabled: false}); err != nil {
		t.Fatal(err)
	}

	all, err := store.ListFeatures()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].FeatureKey != "alpha" || all[1].FeatureKey != "zeta" {
		t.Errorf("got %+v, want alpha then zeta", all)
	}
}

func TestProfileFieldsAssembleIntoTenantProfile(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	if err := store.SetProfileField("name", "Ada", now); err != nil {
		t.Fatal(err)
	}
	if err := store.SetProfileField("esoteric_enabled", "true", now); err != nil {
		t.Fatal(err)
	}
	if err := store.SetSelectedFeatures([]string{"goals", "memory"}, now); err != nil {
		t.Fatal(err)
	}

	p, err := store.GetProfile()
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Ada" {
		t.Errorf("name = %q, want Ada", p.Name)
	}
	if !p.EsotericEnabled {
		t.Error("expected esoteric_enabled to parse as true")
	}
	if len(p.SelectedFeatures) != 2 || p.SelectedFeatures[0] != "goals" {
		t.Errorf("selected features = %v", p.SelectedFeatures)
	}
	if p.OnboardingComplete {
		t.Error("expected onboarding_complete to default false when unset")
	}
}

func TestManagerGetCachesConnectionPerUser(t *testing.T) {
	mgr := NewManager(t.TempDir())
	t.Cleanup(mgr.CloseAll)

	a, err := mgr.Get("u1")
	if err != nil {
		t.Fatal(err)
	}
	b, err := mgr.Get("u1")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("expected repeated Get for the same user to return the cached store")
	}
}

func TestManagerExistsReflectsOpenedStores(t *testing.T) {
	mgr := NewManager(t.TempDir())
	t.Cleanup(mgr.CloseAll)

	if mgr.Exists("ghost") {
		t.Error("expected Exists to be false before Get is ever called")
	}
	if _, err := mgr.Get("u1"); err != nil {
		t.Fatal(err)
	}
	if !mgr.Exists("u1") {
		t.Error("expected Exists to be true after Get opens the store")
	}
}
