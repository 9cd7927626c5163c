package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rnProCoder/ControlledBrowsing/internal/control/domain"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/repos/rules"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/repos/rules/memory"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/services/engine"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/services/recorder"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	server   *Server
	store    *memory.Store
	recorder *recorder.Recorder
	admin    domain.User
	kid      domain.User
}

// newFixture builds a server over a fresh in-memory store with one admin,
// one regular user and two rules.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New(nil)
	ctx := context.Background()

	admin, err := store.CreateUser(ctx, rules.NewUser{Username: "admin", Password: "secret123", IsAdmin: true})
	require.NoError(t, err)
	kid, err := store.CreateUser(ctx, rules.NewUser{Username: "kid", Password: "hunter2"})
	require.NoError(t, err)

	for _, r := range []rules.NewWebsiteRule{
		{Domain: "*.google.com", IsAllowed: true, CreatedBy: admin.ID},
		{Domain: "facebook.com", IsAllowed: false, CreatedBy: admin.ID},
	} {
		_, err := store.CreateWebsiteRule(ctx, r)
		require.NoError(t, err)
	}

	rec := recorder.New(recorder.Options{Store: store})
	rec.Start(ctx)
	t.Cleanup(rec.Stop)

	srv := New(Options{
		Engine:   engine.New(engine.Options{Source: store}),
		Store:    store,
		Recorder: rec,
	})
	return &fixture{server: srv, store: store, recorder: rec, admin: admin, kid: kid}
}

func (f *fixture) request(t *testing.T, method, path string, asUser int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if asUser > 0 {
		req.Header.Set(userHeader, strconv.FormatInt(asUser, 10))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.server.Router().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestIdentity(t *testing.T) {
	f := newFixture(t)

	t.Run("missing header", func(t *testing.T) {
		w := f.request(t, http.MethodGet, "/api/website-rules", 0, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/website-rules", nil)
		req.Header.Set(userHeader, "not-a-number")
		w := httptest.NewRecorder()
		f.server.Router().ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		w := f.request(t, http.MethodGet, "/api/website-rules", 999, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("known user passes", func(t *testing.T) {
		w := f.request(t, http.MethodGet, "/api/website-rules", f.kid.ID, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAdminGates(t *testing.T) {
	f := newFixture(t)

	adminOnly := []struct{ method, path string }{
		{http.MethodPost, "/api/website-rules"},
		{http.MethodPut, "/api/website-rules/1"},
		{http.MethodDelete, "/api/website-rules/1"},
		{http.MethodGet, "/api/users"},
		{http.MethodPost, "/api/users"},
		{http.MethodGet, "/api/recent-activities"},
		{http.MethodGet, "/api/settings"},
		{http.MethodPut, "/api/settings"},
	}
	for _, route := range adminOnly {
		w := f.request(t, route.method, route.path, f.kid.ID, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s must require admin", route.method, route.path)
	}
}

func TestRuleCRUD(t *testing.T) {
	f := newFixture(t)

	t.Run("list", func(t *testing.T) {
		w := f.request(t, http.MethodGet, "/api/website-rules", f.kid.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		list := decode[[]domain.WebsiteRule](t, w)
		require.Len(t, list, 2)
		assert.Equal(t, "*.google.com", list[0].Domain)
	})

	t.Run("create attributes to caller", func(t *testing.T) {
		w := f.request(t, http.MethodPost, "/api/website-rules", f.admin.ID, gin.H{
			"domain": "twitter.com", "isAllowed": false, "createdBy": 12345,
		})
		require.Equal(t, http.StatusCreated, w.Code)
		rule := decode[domain.WebsiteRule](t, w)
		assert.Equal(t, "twitter.com", rule.Domain)
		assert.Equal(t, f.admin.ID, rule.CreatedBy, "client-sent createdBy must be ignored")
	})

	t.Run("create rejects bad domain", func(t *testing.T) {
		w := f.request(t, http.MethodPost, "/api/website-rules", f.admin.ID, gin.H{"domain": "*."})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("update", func(t *testing.T) {
		w := f.request(t, http.MethodPut, "/api/website-rules/2", f.admin.ID, gin.H{"isAllowed": true})
		require.Equal(t, http.StatusOK, w.Code)
		rule := decode[domain.WebsiteRule](t, w)
		assert.True(t, rule.IsAllowed)
		assert.Equal(t, "facebook.com", rule.Domain)
	})

	t.Run("update missing rule", func(t *testing.T) {
		w := f.request(t, http.MethodPut, "/api/website-rules/99", f.admin.ID, gin.H{"isAllowed": true})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		w := f.request(t, http.MethodPut, "/api/website-rules/abc", f.admin.ID, gin.H{"isAllowed": true})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		w := f.request(t, http.MethodDelete, "/api/website-rules/1", f.admin.ID, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
		w = f.request(t, http.MethodDelete, "/api/website-rules/1", f.admin.ID, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUsers(t *testing.T) {
	f := newFixture(t)

	t.Run("list never leaks hashes", func(t *testing.T) {
		w := f.request(t, http.MethodGet, "/api/users", f.admin.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "$2", "bcrypt hashes must not appear in responses")
		list := decode[[]domain.User](t, w)
		assert.Len(t, list, 2)
	})

	t.Run("create", func(t *testing.T) {
		w := f.request(t, http.MethodPost, "/api/users", f.admin.ID, gin.H{
			"username": "teen", "password": "pw12345", "fullName": "Teen User",
		})
		require.Equal(t, http.StatusCreated, w.Code)
		u := decode[domain.User](t, w)
		assert.Equal(t, "teen", u.Username)
		assert.Empty(t, u.PasswordHash)
	})

	t.Run("duplicate username", func(t *testing.T) {
		w := f.request(t, http.MethodPost, "/api/users", f.admin.ID, gin.H{
			"username": "kid", "password": "pw",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("missing password", func(t *testing.T) {
		w := f.request(t, http.MethodPost, "/api/users", f.admin.ID, gin.H{"username": "ghost"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCheckAccess(t *testing.T) {
	f := newFixture(t)

	t.Run("allowed by wildcard", func(t *testing.T) {
		w := f.request(t, http.MethodPost, "/api/check-access", f.kid.ID, gin.H{"domain": "mail.google.com"})
		require.Equal(t, http.StatusOK, w.Code)
		v := decode[domain.Verdict](t, w)
		assert.True(t, v.IsAllowed)
		require.NotNil(t, v.MatchedRule)
		assert.Equal(t, "*.google.com", v.MatchedRule.Domain)
	})

	t.Run("blocked by exact rule", func(t *testing.T) {
		w := f.request(t, http.MethodPost, "/api/check-access", f.kid.ID, gin.H{"domain": "facebook.com"})
		require.Equal(t, http.StatusOK, w.Code)
		v := decode[domain.Verdict](t, w)
		assert.False(t, v.IsAllowed)
	})

	t.Run("full URL is normalized", func(t *testing.T) {
		w := f.request(t, http.MethodPost, "/api/check-access", f.kid.ID, gin.H{"domain": "https://Mail.Google.COM/inbox"})
		require.Equal(t, http.StatusOK, w.Code)
		v := decode[domain.Verdict](t, w)
		assert.True(t, v.IsAllowed)
	})

	t.Run("unmatched domain denied", func(t *testing.T) {
		w := f.request(t, http.MethodPost, "/api/check-access", f.kid.ID, gin.H{"domain": "twitter.com"})
		require.Equal(t, http.StatusOK, w.Code)
		v := decode[domain.Verdict](t, w)
		assert.False(t, v.IsAllowed)
		assert.Nil(t, v.MatchedRule)
	})

	t.Run("admin always allowed", func(t *testing.T) {
		w := f.request(t, http.MethodPost, "/api/check-access", f.admin.ID, gin.H{"domain": "facebook.com"})
		require.Equal(t, http.StatusOK, w.Code)
		v := decode[domain.Verdict](t, w)
		assert.True(t, v.IsAllowed)
	})

	t.Run("empty domain", func(t *testing.T) {
		w := f.request(t, http.MethodPost, "/api/check-access", f.kid.ID, gin.H{"domain": ""})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCheckAccessRecordsActivity(t *testing.T) {
	f := newFixture(t)

	w := f.request(t, http.MethodPost, "/api/check-access", f.kid.ID, gin.H{"domain": "facebook.com"})
	require.Equal(t, http.StatusOK, w.Code)
	f.recorder.Stop()

	activities, err := f.store.ListUserActivities(context.Background(), f.kid.ID)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, "facebook.com", activities[0].Domain)
	assert.Equal(t, domain.StatusBlocked, activities[0].Status)
}

func TestActivities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.RecordActivity(ctx, f.kid.ID, "facebook.com", domain.StatusBlocked)
	require.NoError(t, err)
	_, err = f.store.RecordActivity(ctx, f.admin.ID, "example.com", domain.StatusAllowed)
	require.NoError(t, err)

	t.Run("regular user sees only their own", func(t *testing.T) {
		w := f.request(t, http.MethodGet, "/api/browsing-activities", f.kid.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		list := decode[[]domain.BrowsingActivity](t, w)
		require.Len(t, list, 1)
		assert.Equal(t, f.kid.ID, list[0].UserID)
	})

	t.Run("admin sees everything", func(t *testing.T) {
		w := f.request(t, http.MethodGet, "/api/browsing-activities", f.admin.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		list := decode[[]domain.BrowsingActivity](t, w)
		assert.Len(t, list, 2)
	})

	t.Run("recent with limit", func(t *testing.T) {
		w := f.request(t, http.MethodGet, "/api/recent-activities?limit=1", f.admin.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		list := decode[[]domain.BrowsingActivity](t, w)
		require.Len(t, list, 1)
		assert.Equal(t, "example.com", list[0].Domain, "newest first")
	})
}

func TestSettings(t *testing.T) {
	f := newFixture(t)

	w := f.request(t, http.MethodGet, "/api/settings", f.admin.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	settings := decode[domain.AppSettings](t, w)
	assert.True(t, settings.FilteringEnabled)

	w = f.request(t, http.MethodPut, "/api/settings", f.admin.ID, gin.H{"filteringEnabled": false})
	require.Equal(t, http.StatusOK, w.Code)
	settings = decode[domain.AppSettings](t, w)
	assert.False(t, settings.FilteringEnabled)
	assert.True(t, settings.LoggingEnabled, "unset fields keep prior values")

	// with filtering off every check passes
	v := decode[domain.Verdict](t, f.request(t, http.MethodPost, "/api/check-access", f.kid.ID, gin.H{"domain": "facebook.com"}))
	assert.True(t, v.IsAllowed)
}
