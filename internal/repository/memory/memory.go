// Package memory is an in-process row store with the same constraints and
// visibility policy as the postgres schema: unique slugs, unique
// (community_id, user_id) memberships, unique (community_id, name) maps,
// and cascading community deletes.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/models"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/repository"
)

// DB holds every table behind one lock.
type DB struct {
	mu          sync.RWMutex
	now         func() time.Time
	communities map[uuid.UUID]models.Community
	memberships map[uuid.UUID]models.Membership
	maps        map[uuid.UUID]models.Map
	users       map[uuid.UUID]models.User
}

// New returns an empty database. now stamps created_at/updated_at; nil
// means time.Now.
func New(now func() time.Time) *DB {
	if now == nil {
		now = time.Now
	}
	return &DB{
		now:         now,
		communities: make(map[uuid.UUID]models.Community),
		memberships: make(map[uuid.UUID]models.Membership),
		maps:        make(map[uuid.UUID]models.Map),
		users:       make(map[uuid.UUID]models.User),
	}
}

// Store returns the repositories backed by db.
func (db *DB) Store() *repository.Store {
	return &repository.Store{
		Communities: &CommunityStore{db: db},
		Memberships: &MembershipStore{db: db},
		Maps:        &MapStore{db: db},
		Users:       &UserStore{db: db},
	}
}

// visible mirrors the postgres visibleTo predicate. Callers hold db.mu.
func (db *DB) visible(viewer uuid.UUID, m models.Membership) bool {
	c, ok := db.communities[m.CommunityID]
	if !ok {
		return false
	}
	if viewer != uuid.Nil && (m.UserID == viewer || c.OwnerID == viewer) {
		return true
	}
	return c.IsPublic
}

type CommunityStore struct {
	db *DB
}

func (s *CommunityStore) Create(ctx context.Context, c *models.Community) (*models.Community, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, existing := range s.db.communities {
		if existing.Slug == c.Slug {
			return nil, repository.ErrDuplicate
		}
	}
	row := *c
	row.ID = uuid.New()
	row.CreatedAt = s.db.now()
	s.db.communities[row.ID] = row
	return &row, nil
}

func (s *CommunityStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Community, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	c, ok := s.db.communities[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *CommunityStore) GetBySlug(ctx context.Context, slug string) (*models.Community, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, c := range s.db.communities {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, nil
}

func (s *CommunityStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	c, err := s.GetBySlug(ctx, slug)
	return c != nil, err
}

func (s *CommunityStore) List(ctx context.Context, limit int) ([]models.Community, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	list := make([]models.Community, 0, len(s.db.communities))
	for _, c := range s.db.communities {
		list = append(list, c)
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].IsPublic != list[j].IsPublic {
			return list[i].IsPublic
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if limit >= 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *CommunityStore) ListAll(ctx context.Context) ([]models.Community, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	list := make([]models.Community, 0, len(s.db.communities))
	for _, c := range s.db.communities {
		list = append(list, c)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}

func (s *CommunityStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.communities[id]; !ok {
		return false, nil
	}
	delete(s.db.communities, id)
	for mid, m := range s.db.memberships {
		if m.CommunityID == id {
			delete(s.db.memberships, mid)
		}
	}
	for mid, m := range s.db.maps {
		if m.CommunityID == id {
			delete(s.db.maps, mid)
		}
	}
	return true, nil
}

type MembershipStore struct {
	db *DB
}

func (s *MembershipStore) Create(ctx context.Context, m *models.Membership) (*models.Membership, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.communities[m.CommunityID]; !ok {
		return nil, repository.ErrNoParent
	}
	for _, existing := range s.db.memberships {
		if existing.CommunityID == m.CommunityID && existing.UserID == m.UserID {
			return nil, repository.ErrDuplicate
		}
	}
	row := *m
	row.ID = uuid.New()
	row.CreatedAt = s.db.now()
	row.UpdatedAt = row.CreatedAt
	s.db.memberships[row.ID] = row
	return &row, nil
}

func (s *MembershipStore) Get(ctx context.Context, viewer, communityID, userID uuid.UUID) (*models.Membership, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, m := range s.db.memberships {
		if m.CommunityID == communityID && m.UserID == userID {
			if !s.db.visible(viewer, m) {
				return nil, nil
			}
			return &m, nil
		}
	}
	return nil, nil
}

func (s *MembershipStore) GetWithOwner(ctx context.Context, membershipID uuid.UUID) (*models.Membership, uuid.UUID, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	m, ok := s.db.memberships[membershipID]
	if !ok {
		return nil, uuid.Nil, nil
	}
	c, ok := s.db.communities[m.CommunityID]
	if !ok {
		return nil, uuid.Nil, nil
	}
	return &m, c.OwnerID, nil
}

func (s *MembershipStore) UpdateStatus(ctx context.Context, membershipID uuid.UUID, status models.MembershipStatus) (*models.Membership, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	m, ok := s.db.memberships[membershipID]
	if !ok {
		return nil, nil
	}
	m.Status = status
	m.UpdatedAt = s.db.now()
	s.db.memberships[membershipID] = m
	return &m, nil
}

func (s *MembershipStore) Delete(ctx context.Context, communityID, userID uuid.UUID) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for id, m := range s.db.memberships {
		if m.CommunityID == communityID && m.UserID == userID {
			delete(s.db.memberships, id)
			return true, nil
		}
	}
	return false, nil
}

func (s *MembershipStore) ListByCommunity(ctx context.Context, viewer, communityID uuid.UUID) ([]models.Membership, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	list := make([]models.Membership, 0)
	for _, m := range s.db.memberships {
		if m.CommunityID == communityID && s.db.visible(viewer, m) {
			list = append(list, m)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (s *MembershipStore) CountApproved(ctx context.Context, viewer, communityID uuid.UUID) (int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	n := 0
	for _, m := range s.db.memberships {
		if m.CommunityID == communityID && m.Status == models.StatusApproved && s.db.visible(viewer, m) {
			n++
		}
	}
	return n, nil
}

type MapStore struct {
	db *DB
}

func (s *MapStore) Create(ctx context.Context, m *models.Map) (*models.Map, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.communities[m.CommunityID]; !ok {
		return nil, repository.ErrNoParent
	}
	for _, existing := range s.db.maps {
		if existing.CommunityID == m.CommunityID && existing.Name == m.Name {
			return nil, repository.ErrDuplicate
		}
	}
	row := *m
	row.ID = uuid.New()
	row.CreatedAt = s.db.now()
	s.db.maps[row.ID] = row
	return &row, nil
}

func (s *MapStore) GetByName(ctx context.Context, communityID uuid.UUID, name string) (*models.Map, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, m := range s.db.maps {
		if m.CommunityID == communityID && m.Name == name {
			return &m, nil
		}
	}
	return nil, nil
}

func (s *MapStore) ListByCommunity(ctx context.Context, communityID uuid.UUID) ([]models.Map, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	list := make([]models.Map, 0)
	for _, m := range s.db.maps {
		if m.CommunityID == communityID {
			list = append(list, m)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}

type UserStore struct {
	db *DB
}

func (s *UserStore) Create(ctx context.Context, email, displayName, passwordHash string) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, u := range s.db.users {
		if u.Email != nil && *u.Email == email {
			return nil, repository.ErrDuplicate
		}
	}
	u := models.User{
		ID:           uuid.New(),
		Email:        &email,
		DisplayName:  displayName,
		PasswordHash: &passwordHash,
		CreatedAt:    s.db.now(),
	}
	s.db.users[u.ID] = u
	return &u, nil
}

func (s *UserStore) CreateEphemeral(ctx context.Context) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	u := models.User{
		ID:          uuid.New(),
		DisplayName: "guest",
		IsEphemeral: true,
		CreatedAt:   s.db.now(),
	}
	s.db.users[u.ID] = u
	return &u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	u, ok := s.db.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, u := range s.db.users {
		if u.Email != nil && *u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}
