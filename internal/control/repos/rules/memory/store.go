// Package memory is the in-memory reference implementation of rules.Store.
// A single RWMutex serializes mutations against snapshot reads; rule order
// is an explicit slice, not a map iteration accident, because matching
// precedence depends on it.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/rnProCoder/ControlledBrowsing/internal/control/common/clock"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/domain"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/repos/rules"
)

type Store struct {
	mu sync.RWMutex

	users      map[int64]domain.User
	rules      []domain.WebsiteRule
	activities []domain.BrowsingActivity
	settings   domain.AppSettings

	userIDCounter     int64
	ruleIDCounter     int64
	activityIDCounter int64

	clk      clock.Clock
	validate *validator.Validate
}

// New creates an empty Store with default settings. clk may be nil, in which
// case the real clock is used.
func New(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Store{
		users:    make(map[int64]domain.User),
		settings: domain.DefaultAppSettings(),
		clk:      clk,
		validate: rules.NewValidate(),
	}
}

// Users

func (s *Store) GetUser(_ context.Context, id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
}

func (s *Store) CreateUser(_ context.Context, in rules.NewUser) (domain.User, error) {
	if err := s.validate.Struct(&in); err != nil {
		return domain.User{}, err
	}
	hash, err := rules.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.usernameTakenLocked(in.Username, 0) {
		return domain.User{}, fmt.Errorf("%q: %w", in.Username, domain.ErrUsernameTaken)
	}

	s.userIDCounter++
	u, err := domain.NewUser(s.userIDCounter, in.Username, hash, in.IsAdmin, in.FullName)
	if err != nil {
		s.userIDCounter--
		return domain.User{}, err
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, id int64, patch rules.UserPatch) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}

	if patch.Username != nil {
		if *patch.Username == "" {
			return domain.User{}, fmt.Errorf("username must not be empty")
		}
		if s.usernameTakenLocked(*patch.Username, id) {
			return domain.User{}, fmt.Errorf("%q: %w", *patch.Username, domain.ErrUsernameTaken)
		}
		u.Username = *patch.Username
	}
	if patch.Password != nil {
		hash, err := rules.HashPassword(*patch.Password)
		if err != nil {
			return domain.User{}, err
		}
		u.PasswordHash = hash
	}
	if patch.IsAdmin != nil {
		u.IsAdmin = *patch.IsAdmin
	}
	if patch.FullName != nil {
		u.FullName = *patch.FullName
	}

	s.users[id] = u
	return u, nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	delete(s.users, id)
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.User, 0, len(s.users))
	// map order is fine for users; only rule order carries meaning
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

// usernameTakenLocked reports whether username belongs to a user other than
// exceptID. Callers hold the lock.
func (s *Store) usernameTakenLocked(username string, exceptID int64) bool {
	for _, u := range s.users {
		if u.Username == username && u.ID != exceptID {
			return true
		}
	}
	return false
}

// Website rules

func (s *Store) GetWebsiteRule(_ context.Context, id int64) (domain.WebsiteRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.WebsiteRule{}, fmt.Errorf("rule %d: %w", id, domain.ErrNotFound)
}

func (s *Store) CreateWebsiteRule(_ context.Context, in rules.NewWebsiteRule) (domain.WebsiteRule, error) {
	if err := s.validate.Struct(&in); err != nil {
		return domain.WebsiteRule{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ruleIDCounter++
	r, err := domain.NewWebsiteRule(s.ruleIDCounter, rules.CanonicalRuleDomain(in.Domain), in.IsAllowed, in.IsTimeLimited, in.AppliedTo, in.CreatedBy)
	if err != nil {
		s.ruleIDCounter--
		return domain.WebsiteRule{}, err
	}
	s.rules = append(s.rules, r)
	return r, nil
}

// UpdateWebsiteRule edits the rule in place, keeping its position in the
// sequence so precedence between overlapping rules does not shift.
func (s *Store) UpdateWebsiteRule(_ context.Context, id int64, patch rules.WebsiteRulePatch) (domain.WebsiteRule, error) {
	if err := s.validate.Struct(&patch); err != nil {
		return domain.WebsiteRule{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rules {
		if r.ID != id {
			continue
		}
		if patch.Domain != nil {
			r.Domain = rules.CanonicalRuleDomain(*patch.Domain)
		}
		if patch.IsAllowed != nil {
			r.IsAllowed = *patch.IsAllowed
		}
		if patch.IsTimeLimited != nil {
			r.IsTimeLimited = *patch.IsTimeLimited
		}
		if patch.AppliedTo != nil {
			r.AppliedTo = *patch.AppliedTo
		}
		if err := r.Validate(); err != nil {
			return domain.WebsiteRule{}, err
		}
		s.rules[i] = r
		return r, nil
	}
	return domain.WebsiteRule{}, fmt.Errorf("rule %d: %w", id, domain.ErrNotFound)
}

func (s *Store) DeleteWebsiteRule(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rules {
		if r.ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("rule %d: %w", id, domain.ErrNotFound)
}

func (s *Store) ListWebsiteRules(_ context.Context) ([]domain.WebsiteRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.WebsiteRule, len(s.rules))
	copy(out, s.rules)
	return out, nil
}

// Browsing activities

func (s *Store) RecordActivity(_ context.Context, userID int64, host string, status domain.ActivityStatus) (domain.BrowsingActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activityIDCounter++
	a, err := domain.NewBrowsingActivity(s.activityIDCounter, userID, host, s.clk.Now(), status)
	if err != nil {
		s.activityIDCounter--
		return domain.BrowsingActivity{}, err
	}
	s.activities = append(s.activities, a)
	return a, nil
}

func (s *Store) ListActivities(_ context.Context) ([]domain.BrowsingActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.activities, -1), nil
}

func (s *Store) ListUserActivities(_ context.Context, userID int64) ([]domain.BrowsingActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var mine []domain.BrowsingActivity
	for _, a := range s.activities {
		if a.UserID == userID {
			mine = append(mine, a)
		}
	}
	return newestFirst(mine, -1), nil
}

func (s *Store) ListRecentActivities(_ context.Context, limit int) ([]domain.BrowsingActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.activities, limit), nil
}

// newestFirst returns a reversed copy of an append-ordered slice, capped at
// limit when limit >= 0.
func newestFirst(in []domain.BrowsingActivity, limit int) []domain.BrowsingActivity {
	n := len(in)
	if limit >= 0 && limit < n {
		n = limit
	}
	out := make([]domain.BrowsingActivity, 0, n)
	for i := len(in) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, in[i])
	}
	return out
}

// Settings

func (s *Store) GetAppSettings(_ context.Context) (domain.AppSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

func (s *Store) UpdateAppSettings(_ context.Context, patch domain.AppSettingsPatch) (domain.AppSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = s.settings.Merge(patch)
	return s.settings, nil
}

var _ rules.Store = (*Store)(nil)
