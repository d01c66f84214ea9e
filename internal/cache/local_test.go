package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/models"
)

func TestLocalGetSet(t *testing.T) {
	ctx := context.Background()
	c := NewLocal(time.Minute)
	community, subject := uuid.New(), uuid.New()

	_, ticket, ok, _ := c.Get(ctx, community, subject)
	if ok {
		t.Fatal("empty cache reported a hit")
	}

	m := &models.Membership{ID: uuid.New(), Status: models.StatusPending}
	if err := c.Set(ctx, community, subject, ticket, View{Membership: m, IsOwner: true}); err != nil {
		t.Fatal(err)
	}
	m.Status = models.StatusApproved

	view, _, ok, err := c.Get(ctx, community, subject)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v; want hit", ok, err)
	}
	if !view.IsOwner {
		t.Error("IsOwner lost")
	}
	if view.Membership.Status != models.StatusPending {
		t.Errorf("cached view aliased the caller's membership: status %q", view.Membership.Status)
	}
}

func TestLocalInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewLocal(time.Minute)
	community, other := uuid.New(), uuid.New()
	alice, bob := uuid.New(), uuid.New()

	set := func(cid, sid uuid.UUID) {
		_, ticket, _, _ := c.Get(ctx, cid, sid)
		_ = c.Set(ctx, cid, sid, ticket, View{})
	}
	set(community, alice)
	set(community, bob)
	set(other, alice)

	_ = c.Invalidate(ctx, community, alice)
	if _, _, ok, _ := c.Get(ctx, community, alice); ok {
		t.Error("alice's view survived Invalidate")
	}
	if _, _, ok, _ := c.Get(ctx, community, bob); !ok {
		t.Error("bob's view dropped by alice's Invalidate")
	}

	_ = c.InvalidateCommunity(ctx, community)
	if _, _, ok, _ := c.Get(ctx, community, bob); ok {
		t.Error("bob's view survived InvalidateCommunity")
	}
	if _, _, ok, _ := c.Get(ctx, other, alice); !ok {
		t.Error("InvalidateCommunity dropped another community's view")
	}
}

// A view loaded before an invalidation must not be stored after it.
func TestLocalSetAfterInvalidateIsDropped(t *testing.T) {
	ctx := context.Background()
	c := NewLocal(time.Minute)
	community, subject := uuid.New(), uuid.New()

	tests := []struct {
		name       string
		invalidate func()
	}{
		{"subject", func() { _ = c.Invalidate(ctx, community, subject) }},
		{"community", func() { _ = c.InvalidateCommunity(ctx, community) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stale, _, _ := c.Get(ctx, community, subject)
			tt.invalidate()

			if err := c.Set(ctx, community, subject, stale, View{}); err != nil {
				t.Fatal(err)
			}
			if _, _, ok, _ := c.Get(ctx, community, subject); ok {
				t.Fatal("stale view stored after invalidation")
			}

			_, fresh, _, _ := c.Get(ctx, community, subject)
			_ = c.Set(ctx, community, subject, fresh, View{IsOwner: true})
			if view, _, ok, _ := c.Get(ctx, community, subject); !ok || !view.IsOwner {
				t.Error("fresh view not stored")
			}
			_ = c.Invalidate(ctx, community, subject)
		})
	}
}
