// Package bolt persists the rule store in a bbolt database. Keys are
// big-endian record ids, so cursor order over the rules bucket is insertion
// order — the property the matching contract needs — and updates reuse the
// key, keeping a rule's position stable.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	bbolt "go.etcd.io/bbolt"

	"github.com/rnProCoder/ControlledBrowsing/internal/control/common/clock"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/domain"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/repos/rules"
)

var (
	bucketUsers      = []byte("users")
	bucketRules      = []byte("rules")
	bucketActivities = []byte("activities")
	bucketMeta       = []byte("meta")

	keySettings = []byte("settings")
)

type Store struct {
	db       *bbolt.DB
	clk      clock.Clock
	validate *validator.Validate
}

// New opens (or creates) a Bolt database at path, ensures buckets exist and
// seeds default settings on first open. clk may be nil.
func New(path string, clk clock.Clock) (*Store, error) {
	if clk == nil {
		clk = clock.RealClock{}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketUsers, bucketRules, bucketActivities, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		if meta.Get(keySettings) == nil {
			buf, err := json.Marshal(domain.DefaultAppSettings())
			if err != nil {
				return err
			}
			return meta.Put(keySettings, buf)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return &Store{db: db, clk: clk, validate: rules.NewValidate()}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func itob(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

// Users

func (s *Store) GetUser(_ context.Context, id int64) (domain.User, error) {
	var u domain.User
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketUsers).Get(itob(uint64(id)))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &u)
	})
	if err != nil {
		return domain.User{}, wrapErr(err)
	}
	if !found {
		return domain.User{}, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (domain.User, error) {
	var u domain.User
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(_, v []byte) error {
			if found {
				return nil
			}
			var cand domain.User
			if err := json.Unmarshal(v, &cand); err != nil {
				return err
			}
			if cand.Username == username {
				u = cand
				found = true
			}
			return nil
		})
	})
	if err != nil {
		return domain.User{}, wrapErr(err)
	}
	if !found {
		return domain.User{}, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
	}
	return u, nil
}

func (s *Store) CreateUser(_ context.Context, in rules.NewUser) (domain.User, error) {
	if err := s.validate.Struct(&in); err != nil {
		return domain.User{}, err
	}
	hash, err := rules.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}

	var u domain.User
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		taken, err := usernameTaken(b, in.Username, 0)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%q: %w", in.Username, domain.ErrUsernameTaken)
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		u, err = domain.NewUser(int64(seq), in.Username, hash, in.IsAdmin, in.FullName)
		if err != nil {
			return err
		}
		return putJSON(b, itob(seq), u)
	})
	if err != nil {
		return domain.User{}, passthrough(err)
	}
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, id int64, patch rules.UserPatch) (domain.User, error) {
	var u domain.User
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		v := b.Get(itob(uint64(id)))
		if v == nil {
			return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
		}
		if err := json.Unmarshal(v, &u); err != nil {
			return err
		}
		if patch.Username != nil {
			taken, err := usernameTaken(b, *patch.Username, id)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("%q: %w", *patch.Username, domain.ErrUsernameTaken)
			}
			u.Username = *patch.Username
		}
		if patch.Password != nil {
			hash, err := rules.HashPassword(*patch.Password)
			if err != nil {
				return err
			}
			u.PasswordHash = hash
		}
		if patch.IsAdmin != nil {
			u.IsAdmin = *patch.IsAdmin
		}
		if patch.FullName != nil {
			u.FullName = *patch.FullName
		}
		if err := u.Validate(); err != nil {
			return err
		}
		return putJSON(b, itob(uint64(id)), u)
	})
	if err != nil {
		return domain.User{}, passthrough(err)
	}
	return u, nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		if b.Get(itob(uint64(id))) == nil {
			return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
		}
		return b.Delete(itob(uint64(id)))
	})
	return passthrough(err)
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	var out []domain.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(_, v []byte) error {
			var u domain.User
			if err := json.Unmarshal(v, &u); err != nil {
				return err
			}
			out = append(out, u)
			return nil
		})
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return out, nil
}

func usernameTaken(b *bbolt.Bucket, username string, exceptID int64) (bool, error) {
	taken := false
	err := b.ForEach(func(_, v []byte) error {
		if taken {
			return nil
		}
		var u domain.User
		if err := json.Unmarshal(v, &u); err != nil {
			return err
		}
		if u.Username == username && u.ID != exceptID {
			taken = true
		}
		return nil
	})
	return taken, err
}

// Website rules

func (s *Store) GetWebsiteRule(_ context.Context, id int64) (domain.WebsiteRule, error) {
	var r domain.WebsiteRule
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketRules).Get(itob(uint64(id)))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &r)
	})
	if err != nil {
		return domain.WebsiteRule{}, wrapErr(err)
	}
	if !found {
		return domain.WebsiteRule{}, fmt.Errorf("rule %d: %w", id, domain.ErrNotFound)
	}
	return r, nil
}

func (s *Store) CreateWebsiteRule(_ context.Context, in rules.NewWebsiteRule) (domain.WebsiteRule, error) {
	if err := s.validate.Struct(&in); err != nil {
		return domain.WebsiteRule{}, err
	}

	var r domain.WebsiteRule
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRules)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		r, err = domain.NewWebsiteRule(int64(seq), rules.CanonicalRuleDomain(in.Domain), in.IsAllowed, in.IsTimeLimited, in.AppliedTo, in.CreatedBy)
		if err != nil {
			return err
		}
		return putJSON(b, itob(seq), r)
	})
	if err != nil {
		return domain.WebsiteRule{}, passthrough(err)
	}
	return r, nil
}

func (s *Store) UpdateWebsiteRule(_ context.Context, id int64, patch rules.WebsiteRulePatch) (domain.WebsiteRule, error) {
	if err := s.validate.Struct(&patch); err != nil {
		return domain.WebsiteRule{}, err
	}

	var r domain.WebsiteRule
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRules)
		v := b.Get(itob(uint64(id)))
		if v == nil {
			return fmt.Errorf("rule %d: %w", id, domain.ErrNotFound)
		}
		if err := json.Unmarshal(v, &r); err != nil {
			return err
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
			return err
		}
		return putJSON(b, itob(uint64(id)), r)
	})
	if err != nil {
		return domain.WebsiteRule{}, passthrough(err)
	}
	return r, nil
}

func (s *Store) DeleteWebsiteRule(_ context.Context, id int64) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRules)
		if b.Get(itob(uint64(id))) == nil {
			return fmt.Errorf("rule %d: %w", id, domain.ErrNotFound)
		}
		return b.Delete(itob(uint64(id)))
	})
	return passthrough(err)
}

func (s *Store) ListWebsiteRules(_ context.Context) ([]domain.WebsiteRule, error) {
	var out []domain.WebsiteRule
	err := s.db.View(func(tx *bbolt.Tx) error {
		// key order is id order is insertion order
		return tx.Bucket(bucketRules).ForEach(func(_, v []byte) error {
			var r domain.WebsiteRule
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return out, nil
}

// Browsing activities

func (s *Store) RecordActivity(_ context.Context, userID int64, host string, status domain.ActivityStatus) (domain.BrowsingActivity, error) {
	var a domain.BrowsingActivity
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketActivities)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		a, err = domain.NewBrowsingActivity(int64(seq), userID, host, s.clk.Now(), status)
		if err != nil {
			return err
		}
		return putJSON(b, itob(seq), a)
	})
	if err != nil {
		return domain.BrowsingActivity{}, passthrough(err)
	}
	return a, nil
}

func (s *Store) ListActivities(_ context.Context) ([]domain.BrowsingActivity, error) {
	return s.listActivities(func(domain.BrowsingActivity) bool { return true }, -1)
}

func (s *Store) ListUserActivities(_ context.Context, userID int64) ([]domain.BrowsingActivity, error) {
	return s.listActivities(func(a domain.BrowsingActivity) bool { return a.UserID == userID }, -1)
}

func (s *Store) ListRecentActivities(_ context.Context, limit int) ([]domain.BrowsingActivity, error) {
	return s.listActivities(func(domain.BrowsingActivity) bool { return true }, limit)
}

// listActivities walks the activity bucket newest-first (reverse cursor;
// ids are chronological) applying keep and an optional limit.
func (s *Store) listActivities(keep func(domain.BrowsingActivity) bool, limit int) ([]domain.BrowsingActivity, error) {
	var out []domain.BrowsingActivity
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketActivities).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit >= 0 && len(out) >= limit {
				break
			}
			var a domain.BrowsingActivity
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			if keep(a) {
				out = append(out, a)
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return out, nil
}

// Settings

func (s *Store) GetAppSettings(_ context.Context) (domain.AppSettings, error) {
	var st domain.AppSettings
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(keySettings)
		if v == nil {
			st = domain.DefaultAppSettings()
			return nil
		}
		return json.Unmarshal(v, &st)
	})
	if err != nil {
		return domain.AppSettings{}, wrapErr(err)
	}
	return st, nil
}

func (s *Store) UpdateAppSettings(_ context.Context, patch domain.AppSettingsPatch) (domain.AppSettings, error) {
	var st domain.AppSettings
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		st = domain.DefaultAppSettings()
		if v := b.Get(keySettings); v != nil {
			if err := json.Unmarshal(v, &st); err != nil {
				return err
			}
		}
		st = st.Merge(patch)
		return putJSON(b, keySettings, st)
	})
	if err != nil {
		return domain.AppSettings{}, wrapErr(err)
	}
	return st, nil
}

func putJSON(b *bbolt.Bucket, key []byte, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, buf)
}

// passthrough keeps domain sentinel errors intact and wraps everything else
// as a store failure.
func passthrough(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUsernameTaken) {
		return err
	}
	return wrapErr(err)
}

var _ rules.Store = (*Store)(nil)
