package http

import (
	"context"
	"testing"
	"time"

	"banklink/internal/linking"
	"banklink/internal/relay"
	"banklink/internal/storage"
)

func newPending(t *testing.T, ch *relay.Memory) *linking.Pending {
	t.Helper()
	init := linking.NewInitiator(linking.InitiatorConfig{
		Backend:  &fakeAuth{},
		Sessions: storage.NewSessionStore(storage.NewMemoryStore()),
		Relay:    ch,
		Origin:   appOrigin,
	})
	attempt, err := init.BeginLink(context.Background(), linking.ModePopup)
	if err != nil {
		t.Fatalf("BeginLink() error = %v", err)
	}
	return attempt.Pending
}

func TestPendingRegistry_ExpiresUnclaimed(t *testing.T) {
	ch := relay.NewMemory()
	r := newPendingRegistry(20 * time.Millisecond)
	r.Register("a", newPending(t, ch))

	deadline := time.Now().Add(2 * time.Second)
	for r.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if r.Len() != 0 {
		t.Fatal("unclaimed attempt was not expired")
	}
	if ch.Subscribers() != 0 {
		t.Error("expired attempt kept its subscription")
	}
}

func TestPendingRegistry_ClaimOnce(t *testing.T) {
	ch := relay.NewMemory()
	r := newPendingRegistry(time.Minute)
	defer r.Close()
	r.Register("a", newPending(t, ch))

	if _, ok := r.Claim("a"); !ok {
		t.Fatal("first claim should succeed")
	}
	if _, ok := r.Claim("a"); ok {
		t.Fatal("second claim should fail")
	}
	r.Release("a")
	if r.Len() != 0 {
		t.Errorf("Len() = %d after release", r.Len())
	}
	if r.Cancel("a") {
		t.Error("cancel of a released attempt should report false")
	}
}

func TestPendingRegistry_CloseDisposesAll(t *testing.T) {
	ch := relay.NewMemory()
	r := newPendingRegistry(time.Minute)
	r.Register("a", newPending(t, ch))
	r.Register("b", newPending(t, ch))

	r.Close()
	if ch.Subscribers() != 0 {
		t.Errorf("subscriptions left: %d", ch.Subscribers())
	}
}
