package community

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/identity"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/models"
)

func TestApproximateCount(t *testing.T) {
	owner := uuid.New()
	tests := []struct {
		name    string
		visible int
		owner   uuid.UUID
		want    int
	}{
		{"zero with owner shows owner", 0, owner, 1},
		{"zero without owner stays zero", 0, uuid.Nil, 0},
		{"one is exact", 1, owner, 1},
		{"many is exact", 7, owner, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ApproximateCount(tt.visible, tt.owner); got != tt.want {
				t.Errorf("ApproximateCount(%d, %v) = %d, want %d", tt.visible, tt.owner, got, tt.want)
			}
		})
	}
}

func TestMemberCountPublicIsExactForEveryone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	owner := user()
	c := f.create(t, owner, "Public Count", true)
	for range 3 {
		if _, err := f.svc.JoinPublic(ctx, user(), c.ID, ""); err != nil {
			t.Fatal(err)
		}
	}

	for _, who := range []identity.Identity{owner, user(), identity.Anonymous()} {
		if n := f.count(t, who, c.ID); n != 4 {
			t.Errorf("count as %v = %d, want 4", who, n)
		}
	}
}

func TestMemberCountPrivateIsScopedToCaller(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	owner, member, pending, stranger := user(), user(), user(), user()
	c := f.create(t, owner, "Private Count", false)

	for _, who := range []identity.Identity{member, pending} {
		if _, err := f.svc.RequestMembership(ctx, who, c.ID); err != nil {
			t.Fatal(err)
		}
	}
	req, _ := f.svc.GetMembership(ctx, owner, c.ID, &member.ID)
	if _, err := f.svc.SetMembershipStatus(ctx, owner, req.ID, models.StatusApproved); err != nil {
		t.Fatal(err)
	}
	// A second approved member the caller cannot see.
	other := user()
	if _, err := f.svc.RequestMembership(ctx, other, c.ID); err != nil {
		t.Fatal(err)
	}
	req, _ = f.svc.GetMembership(ctx, owner, c.ID, &other.ID)
	if _, err := f.svc.SetMembershipStatus(ctx, owner, req.ID, models.StatusApproved); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		who  identity.Identity
		want int
	}{
		{"owner gets exact count", owner, 3},
		{"approved member sees only self", member, 1},
		{"pending requester gets fallback", pending, 1},
		{"stranger gets fallback", stranger, 1},
		{"anonymous gets fallback", identity.Anonymous(), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if n := f.count(t, tt.who, c.ID); n != tt.want {
				t.Errorf("count = %d, want %d", n, tt.want)
			}
		})
	}
}

func TestMemberCountOwnerWithoutRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	owner := user()
	c := f.create(t, owner, "Ownerless Row", true)

	if _, err := f.store.Memberships.Delete(ctx, c.ID, owner.ID); err != nil {
		t.Fatal(err)
	}
	if n := f.count(t, user(), c.ID); n != 1 {
		t.Errorf("count = %d, want fallback 1", n)
	}
}
