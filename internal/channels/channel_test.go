package channels

import (
	"context"
	"testing"
)

type stubChannel struct{ name string }

func (s stubChannel) Name() string                                      { return s.name }
func (s stubChannel) Send(ctx context.Context, msg SendMessage) error    { return nil }
func (s stubChannel) Listen(ctx context.Context, h Handler) error        { return nil }
func (s stubChannel) HealthCheck(ctx context.Context) bool               { return true }

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(stubChannel{name: "telegram"})

	got, ok := r.Get("telegram")
	if !ok {
		t.Fatal("expected channel to be registered")
	}
	if got.Name() != "telegram" {
		t.Errorf("name = %q, want telegram", got.Name())
	}

	if _, ok := r.Get("discord"); ok {
		t.Error("expected unregistered channel to be absent")
	}
}

func TestRegistryAllListsEveryChannel(t *testing.T) {
	r := NewRegistry()
	r.Register(stubChannel{name: "telegram"})
	r.Register(stubChannel{name: "slack"})

	all := r.All()
	if len(all) != 2 {
		t.Fatalf("got %d channels, want 2", len(all))
	}
}
