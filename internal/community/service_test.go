package community

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock/testclock"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/auth"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/cache"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/identity"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/models"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/repository"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/repository/memory"
	"go.uber.org/zap"
)

var epoch = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *Service
	store *repository.Store
	clock *testclock.Clock
}

// ticking stamps each inserted row one second after the previous one so
// newest-first ordering is deterministic.
func ticking() func() time.Time {
	t := epoch
	var mu sync.Mutex
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newFixture(t *testing.T, opts Options, wrap ...func(*repository.Store)) *fixture {
	t.Helper()
	store := memory.New(ticking()).Store()
	provider := auth.NewEphemeralProvider(store.Users)
	for _, w := range wrap {
		w(store)
	}
	clk := testclock.NewClock(epoch)
	svc := NewService(store, provider, cache.NewLocal(time.Minute), clk, zap.NewNop(), opts)
	return &fixture{svc: svc, store: store, clock: clk}
}

func user() identity.Identity {
	return identity.Identity{ID: uuid.New()}
}

func (f *fixture) create(t *testing.T, owner identity.Identity, name string, public bool) *models.Community {
	t.Helper()
	c, err := f.svc.CreateCommunity(context.Background(), owner, CreateInput{Name: name, IsPublic: public})
	if err != nil {
		t.Fatalf("CreateCommunity(%q): %v", name, err)
	}
	return c
}

func (f *fixture) count(t *testing.T, actor identity.Identity, communityID uuid.UUID) int {
	t.Helper()
	n, err := f.svc.GetMemberCount(context.Background(), actor, communityID)
	if err != nil {
		t.Fatalf("GetMemberCount: %v", err)
	}
	return n
}

func TestPrivateCommunityApprovalFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	u1, u2 := user(), user()

	c := f.create(t, u1, "Akita Local", false)
	if c.Slug != "akita-local" {
		t.Errorf("Slug = %q, want %q", c.Slug, "akita-local")
	}
	owned, err := f.svc.IsOwner(ctx, u1, c.ID)
	if err != nil || !owned {
		t.Fatalf("IsOwner(U1) = %v, %v; want true", owned, err)
	}
	own, err := f.svc.GetMembership(ctx, u1, c.ID, nil)
	if err != nil || own == nil {
		t.Fatalf("owner membership missing: %v", err)
	}
	if own.Status != models.StatusApproved || own.Role != models.RoleOwner {
		t.Errorf("owner membership = %s/%s, want approved/owner", own.Status, own.Role)
	}

	req, err := f.svc.RequestMembership(ctx, u2, c.ID)
	if err != nil {
		t.Fatalf("RequestMembership: %v", err)
	}
	if req.Status != models.StatusPending {
		t.Errorf("request status = %q, want pending", req.Status)
	}

	pending, err := f.svc.ListPendingRequests(ctx, u1, c.ID)
	if err != nil {
		t.Fatalf("ListPendingRequests: %v", err)
	}
	if len(pending) != 2 || pending[0].UserID != u2.ID {
		t.Fatalf("pending list = %+v, want U2's row first of 2", pending)
	}

	approved, err := f.svc.SetMembershipStatus(ctx, u1, req.ID, models.StatusApproved)
	if err != nil {
		t.Fatalf("SetMembershipStatus: %v", err)
	}
	if approved.Status != models.StatusApproved {
		t.Errorf("status = %q, want approved", approved.Status)
	}

	got, err := f.svc.GetMembership(ctx, u2, c.ID, nil)
	if err != nil || got == nil || got.Status != models.StatusApproved {
		t.Fatalf("U2 sees membership %+v, %v; want approved", got, err)
	}
	if n := f.count(t, u1, c.ID); n != 2 {
		t.Errorf("member count as owner = %d, want 2", n)
	}
}

func TestAnonymousJoinsPublicCommunity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	u1 := user()
	c := f.create(t, u1, "Open Club", true)

	res, err := f.svc.JoinPublic(ctx, identity.Anonymous(), c.ID, " Guest ")
	if err != nil {
		t.Fatalf("JoinPublic: %v", err)
	}
	if !res.Minted || !res.Identity.Ephemeral || res.Identity.IsAnonymous() {
		t.Fatalf("JoinResult identity = %+v, minted=%v; want minted ephemeral", res.Identity, res.Minted)
	}
	if res.Membership.Status != models.StatusApproved || res.Membership.Role != models.RoleMember {
		t.Errorf("membership = %s/%s, want approved/member", res.Membership.Status, res.Membership.Role)
	}
	if res.Membership.Nickname == nil || *res.Membership.Nickname != "Guest" {
		t.Errorf("nickname = %v, want Guest", res.Membership.Nickname)
	}

	for _, who := range []identity.Identity{u1, res.Identity, user(), identity.Anonymous()} {
		if n := f.count(t, who, c.ID); n != 2 {
			t.Errorf("member count as %v = %d, want 2", who, n)
		}
	}
}

func TestDoubleJoinConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	owner, u := user(), user()
	private := f.create(t, owner, "Private", false)
	public := f.create(t, owner, "Public", true)

	if _, err := f.svc.RequestMembership(ctx, u, private.ID); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.RequestMembership(ctx, u, private.ID)
	if !errors.Is(err, ErrAlreadyRequested) || !errors.Is(err, ErrConflict) {
		t.Errorf("second request err = %v, want ErrAlreadyRequested", err)
	}

	if _, err := f.svc.JoinPublic(ctx, u, public.ID, ""); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.JoinPublic(ctx, u, public.ID, "")
	if !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("second join err = %v, want ErrAlreadyMember", err)
	}

	_, err = f.svc.JoinPublic(ctx, owner, public.ID, "")
	if !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("owner join err = %v, want ErrAlreadyMember", err)
	}

	rows, _ := f.store.Memberships.ListByCommunity(ctx, owner.ID, public.ID)
	if len(rows) != 2 {
		t.Errorf("public community has %d rows, want 2", len(rows))
	}
}

func TestConcurrentJoinsCreateOneRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	owner, u := user(), user()
	c := f.create(t, owner, "Race", true)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.JoinPublic(ctx, u, c.ID, "")
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, ErrConflict):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("%d joins succeeded, want exactly 1", ok)
	}
	if n := f.count(t, owner, c.ID); n != 2 {
		t.Errorf("member count = %d, want 2", n)
	}
}

func TestCrossPathGuard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	owner, u := user(), user()
	private := f.create(t, owner, "Private", false)
	public := f.create(t, owner, "Public", true)

	if _, err := f.svc.JoinPublic(ctx, u, private.ID, ""); !errors.Is(err, ErrCommunityIsPrivate) {
		t.Errorf("JoinPublic(private) err = %v, want ErrCommunityIsPrivate", err)
	}
	if _, err := f.svc.JoinPublic(ctx, identity.Anonymous(), private.ID, ""); !errors.Is(err, ErrCommunityIsPrivate) {
		t.Errorf("anonymous JoinPublic(private) err = %v, want ErrCommunityIsPrivate", err)
	}
	if _, err := f.svc.RequestMembership(ctx, u, public.ID); !errors.Is(err, ErrCommunityIsPublic) {
		t.Errorf("RequestMembership(public) err = %v, want ErrCommunityIsPublic", err)
	}
	if _, err := f.svc.RequestMembership(ctx, identity.Anonymous(), private.ID); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("anonymous RequestMembership err = %v, want ErrAuthRequired", err)
	}
}

func TestOwnerOnlyOperations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	owner, u, stranger := user(), user(), user()
	c := f.create(t, owner, "Guarded", false)
	req, err := f.svc.RequestMembership(ctx, u, c.ID)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.SetMembershipStatus(ctx, stranger, req.ID, models.StatusApproved); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger approve err = %v, want Forbidden", err)
	}
	if _, err := f.svc.SetMembershipStatus(ctx, u, req.ID, models.StatusApproved); !errors.Is(err, ErrNotOwner) {
		t.Errorf("self approve err = %v, want ErrNotOwner", err)
	}
	if _, err := f.svc.ListPendingRequests(ctx, u, c.ID); !errors.Is(err, ErrNotOwner) {
		t.Errorf("non-owner ListPendingRequests err = %v, want ErrNotOwner", err)
	}
	if err := f.svc.Dissolve(ctx, stranger, c.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger dissolve err = %v, want Forbidden", err)
	}
	if owned, _ := f.svc.IsOwner(ctx, stranger, c.ID); owned {
		t.Error("IsOwner(stranger) = true")
	}

	m, _ := f.svc.GetMembership(ctx, owner, c.ID, &u.ID)
	if m == nil || m.Status != models.StatusPending {
		t.Errorf("request changed by non-owners: %+v", m)
	}
}

func TestSetMembershipStatusRejectsUnknownStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	owner, u := user(), user()
	c := f.create(t, owner, "Status Input", false)
	req, err := f.svc.RequestMembership(ctx, u, c.ID)
	if err != nil {
		t.Fatal(err)
	}

	for _, status := range []models.MembershipStatus{"", "bogus", "APPROVED", models.StatusPending} {
		if _, err := f.svc.SetMembershipStatus(ctx, owner, req.ID, status); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("status %q err = %v, want ErrInvalidInput", status, err)
		}
	}
	if m, _ := f.svc.GetMembership(ctx, u, c.ID, nil); m == nil || m.Status != models.StatusPending {
		t.Errorf("request after bad input = %+v, want pending", m)
	}
}

func TestSetMembershipStatusTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	owner, u, v := user(), user(), user()
	c := f.create(t, owner, "Transitions", false)
	reqU, _ := f.svc.RequestMembership(ctx, u, c.ID)
	reqV, _ := f.svc.RequestMembership(ctx, v, c.ID)

	first, err := f.svc.SetMembershipStatus(ctx, owner, reqU.ID, models.StatusApproved)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.SetMembershipStatus(ctx, owner, reqU.ID, models.StatusApproved)
	if err != nil {
		t.Fatalf("re-approve err = %v, want nil", err)
	}
	if second.Status != first.Status {
		t.Errorf("re-approve changed status to %q", second.Status)
	}

	if _, err := f.svc.SetMembershipStatus(ctx, owner, reqU.ID, models.StatusRejected); !errors.Is(err, ErrAlreadyDecided) {
		t.Errorf("reject approved err = %v, want ErrAlreadyDecided", err)
	}

	rejected, err := f.svc.SetMembershipStatus(ctx, owner, reqV.ID, models.StatusRejected)
	if err != nil || rejected.Status != models.StatusRejected {
		t.Fatalf("reject = %+v, %v", rejected, err)
	}
	if _, err := f.svc.RequestMembership(ctx, v, c.ID); !errors.Is(err, ErrMembershipRejected) {
		t.Errorf("request after rejection err = %v, want ErrMembershipRejected", err)
	}

	if _, err := f.svc.SetMembershipStatus(ctx, owner, reqV.ID, models.StatusPending); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("set pending err = %v, want ErrInvalidInput", err)
	}
	if _, err := f.svc.SetMembershipStatus(ctx, owner, uuid.New(), models.StatusApproved); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown membership err = %v, want NotFound", err)
	}

	ownRow, _ := f.svc.GetMembership(ctx, owner, c.ID, nil)
	if _, err := f.svc.SetMembershipStatus(ctx, owner, ownRow.ID, models.StatusRejected); !errors.Is(err, ErrOwnerMembership) {
		t.Errorf("reject owner row err = %v, want ErrOwnerMembership", err)
	}
}

func TestLeave(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	owner, u := user(), user()
	c := f.create(t, owner, "Leavers", false)
	if _, err := f.svc.RequestMembership(ctx, u, c.ID); err != nil {
		t.Fatal(err)
	}

	// Prime the cache so a stale view would show up.
	if m, _ := f.svc.GetMembership(ctx, u, c.ID, nil); m == nil {
		t.Fatal("pending membership not visible to its owner")
	}
	if err := f.svc.Leave(ctx, u, c.ID); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if m, _ := f.svc.GetMembership(ctx, u, c.ID, nil); m != nil {
		t.Errorf("membership still visible after leave: %+v", m)
	}
	if err := f.svc.Leave(ctx, u, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second leave err = %v, want NotFound", err)
	}

	// Leaving returns the pair to NONE, so a fresh request is allowed.
	if _, err := f.svc.RequestMembership(ctx, u, c.ID); err != nil {
		t.Errorf("request after leave: %v", err)
	}
}

func TestOwnerLeavePolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("allow", func(t *testing.T) {
		f := newFixture(t, Options{OwnerLeave: OwnerLeaveAllow})
		owner := user()
		c := f.create(t, owner, "Allow", false)

		if err := f.svc.Leave(ctx, owner, c.ID); err != nil {
			t.Fatalf("owner leave: %v", err)
		}
		stored, _ := f.store.Communities.GetByID(ctx, c.ID)
		if stored.OwnerID != owner.ID {
			t.Errorf("owner_id changed to %v", stored.OwnerID)
		}
		if owned, _ := f.svc.IsOwner(ctx, owner, c.ID); !owned {
			t.Error("owner lost ownership by leaving")
		}
		if n := f.count(t, owner, c.ID); n != 1 {
			t.Errorf("count after owner leave = %d, want fallback 1", n)
		}
	})

	t.Run("deny", func(t *testing.T) {
		f := newFixture(t, Options{OwnerLeave: OwnerLeaveDeny})
		owner := user()
		c := f.create(t, owner, "Deny", false)

		if err := f.svc.Leave(ctx, owner, c.ID); !errors.Is(err, ErrOwnerCannotLeave) {
			t.Fatalf("owner leave err = %v, want ErrOwnerCannotLeave", err)
		}
		if m, _ := f.svc.GetMembership(ctx, owner, c.ID, nil); m == nil {
			t.Error("owner row removed despite deny policy")
		}
	})
}

func TestDissolve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	owner, u := user(), user()
	c := f.create(t, owner, "Doomed", true)
	if _, err := f.svc.JoinPublic(ctx, u, c.ID, ""); err != nil {
		t.Fatal(err)
	}
	if owned, _ := f.svc.IsOwner(ctx, owner, c.ID); !owned {
		t.Fatal("IsOwner before dissolve = false")
	}

	if err := f.svc.Dissolve(ctx, owner, c.ID); err != nil {
		t.Fatalf("Dissolve: %v", err)
	}

	for _, listed := range f.svc.ListCommunities(ctx) {
		if listed.ID == c.ID {
			t.Error("dissolved community still listed")
		}
	}
	if _, err := f.svc.GetMembership(ctx, u, c.ID, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMembership after dissolve err = %v, want NotFound", err)
	}
	if n, err := f.svc.GetMemberCount(ctx, u, c.ID); n != 0 || !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMemberCount after dissolve = %d, %v; want 0, NotFound", n, err)
	}
	if owned, err := f.svc.IsOwner(ctx, owner, c.ID); owned || !errors.Is(err, ErrNotFound) {
		t.Errorf("IsOwner after dissolve = %v, %v; want false, NotFound", owned, err)
	}
	if err := f.svc.Dissolve(ctx, owner, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second dissolve err = %v, want NotFound", err)
	}
	if maps, _ := f.store.Maps.ListByCommunity(ctx, c.ID); len(maps) != 0 {
		t.Errorf("%d maps survived dissolve", len(maps))
	}
}

// pausingMemberships holds the first own-row read of subject after the
// row has been loaded, until release is closed.
type pausingMemberships struct {
	repository.MembershipRepository
	subject uuid.UUID
	loaded  chan struct{}
	release chan struct{}
	fired   atomic.Bool
}

func (p *pausingMemberships) Get(ctx context.Context, viewer, communityID, userID uuid.UUID) (*models.Membership, error) {
	m, err := p.MembershipRepository.Get(ctx, viewer, communityID, userID)
	if viewer == p.subject && userID == p.subject && p.fired.CompareAndSwap(false, true) {
		close(p.loaded)
		<-p.release
	}
	return m, err
}

func TestViewLoadedBeforeChangeIsNotCached(t *testing.T) {
	ctx := context.Background()
	u := user()
	paused := &pausingMemberships{subject: u.ID, loaded: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, Options{}, func(s *repository.Store) {
		paused.MembershipRepository = s.Memberships
		s.Memberships = paused
	})
	owner := user()
	c := f.create(t, owner, "Racy Views", false)

	first := make(chan *models.Membership, 1)
	go func() {
		m, _ := f.svc.GetMembership(ctx, u, c.ID, nil)
		first <- m
	}()
	<-paused.loaded

	// While the first read holds a view with no row, u requests and the
	// owner approves.
	req, err := f.svc.RequestMembership(ctx, u, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.SetMembershipStatus(ctx, owner, req.ID, models.StatusApproved); err != nil {
		t.Fatal(err)
	}
	close(paused.release)
	if m := <-first; m != nil {
		t.Logf("in-flight read returned %+v", m)
	}

	m, err := f.svc.GetMembership(ctx, u, c.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.Status != models.StatusApproved {
		t.Fatalf("membership after approval = %+v, want approved", m)
	}
	if _, err := f.svc.ListMaps(ctx, u, c.ID); err != nil {
		t.Errorf("approved member ListMaps: %v", err)
	}
}
