package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// Local is an in-process MembershipCache for single-instance deployments
// and tests.
type Local struct {
	mu    sync.Mutex
	views *gocache.Cache
	// gens holds each community's generation. Entries outlive views so a
	// generation never resets while a view loaded under it can still land.
	gens    *gocache.Cache
	lastGen uint64
}

// NewLocal expires entries after ttl and sweeps expired ones every 2*ttl.
func NewLocal(ttl time.Duration) *Local {
	return &Local{
		views: gocache.New(ttl, 2*ttl),
		gens:  gocache.New(2*ttl, 2*ttl),
	}
}

func localKey(communityID, subjectID uuid.UUID) string {
	return communityID.String() + "/" + subjectID.String()
}

// generation is 0 for a community that was never invalidated (or whose
// generation expired); bump never hands out 0.
func (l *Local) generation(communityID uuid.UUID) Ticket {
	if g, ok := l.gens.Get(communityID.String()); ok {
		return g.(Ticket)
	}
	return 0
}

func (l *Local) bump(communityID uuid.UUID) {
	l.lastGen++
	l.gens.SetDefault(communityID.String(), Ticket(l.lastGen))
}

func (l *Local) Get(ctx context.Context, communityID, subjectID uuid.UUID) (View, Ticket, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ticket := l.generation(communityID)
	v, ok := l.views.Get(localKey(communityID, subjectID))
	if !ok {
		return View{}, ticket, false, nil
	}
	return detach(v.(View)), ticket, true, nil
}

func (l *Local) Set(ctx context.Context, communityID, subjectID uuid.UUID, ticket Ticket, view View) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.generation(communityID) != ticket {
		return nil
	}
	l.views.SetDefault(localKey(communityID, subjectID), detach(view))
	return nil
}

// detach copies the membership so cached values never alias a caller's.
func detach(view View) View {
	if view.Membership != nil {
		m := *view.Membership
		view.Membership = &m
	}
	return view
}

func (l *Local) Invalidate(ctx context.Context, communityID, subjectID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.views.Delete(localKey(communityID, subjectID))
	l.bump(communityID)
	return nil
}

func (l *Local) InvalidateCommunity(ctx context.Context, communityID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prefix := communityID.String() + "/"
	for key := range l.views.Items() {
		if strings.HasPrefix(key, prefix) {
			l.views.Delete(key)
		}
	}
	l.bump(communityID)
	return nil
}
