// Package rules defines the rule store contract shared by the in-memory and
// bolt backends, plus the input shapes and validation applied at the store
// boundary.
package rules

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/rnProCoder/ControlledBrowsing/internal/control/common/urlnorm"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/domain"
)

// Store is the full persistence surface: users, website rules, browsing
// activities and the settings singleton. Implementations serialize mutations
// against reads, so callers always observe a consistent snapshot.
//
// Lookups return domain.ErrNotFound for missing records. Backend failures
// are wrapped in domain.ErrStoreUnavailable so decision paths can fail
// closed.
type Store interface {
	// Users
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
	CreateUser(ctx context.Context, in NewUser) (domain.User, error)
	UpdateUser(ctx context.Context, id int64, patch UserPatch) (domain.User, error)
	DeleteUser(ctx context.Context, id int64) error
	ListUsers(ctx context.Context) ([]domain.User, error)

	// Website rules. ListWebsiteRules returns insertion order; updating a
	// rule keeps its position, so precedence between overlapping wildcards
	// stays stable.
	GetWebsiteRule(ctx context.Context, id int64) (domain.WebsiteRule, error)
	CreateWebsiteRule(ctx context.Context, in NewWebsiteRule) (domain.WebsiteRule, error)
	UpdateWebsiteRule(ctx context.Context, id int64, patch WebsiteRulePatch) (domain.WebsiteRule, error)
	DeleteWebsiteRule(ctx context.Context, id int64) error
	ListWebsiteRules(ctx context.Context) ([]domain.WebsiteRule, error)

	// Browsing activities, append-only. List order is newest first.
	RecordActivity(ctx context.Context, userID int64, host string, status domain.ActivityStatus) (domain.BrowsingActivity, error)
	ListActivities(ctx context.Context) ([]domain.BrowsingActivity, error)
	ListUserActivities(ctx context.Context, userID int64) ([]domain.BrowsingActivity, error)
	ListRecentActivities(ctx context.Context, limit int) ([]domain.BrowsingActivity, error)

	// Settings singleton.
	GetAppSettings(ctx context.Context) (domain.AppSettings, error)
	UpdateAppSettings(ctx context.Context, patch domain.AppSettingsPatch) (domain.AppSettings, error)
}

// NewUser is the input for creating a user. Password is plaintext here and
// hashed by the store; it is never persisted as entered.
type NewUser struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	IsAdmin  bool   `json:"isAdmin"`
	FullName string `json:"fullName"`
}

// UserPatch is a partial user update; nil fields are left untouched.
type UserPatch struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	IsAdmin  *bool   `json:"isAdmin"`
	FullName *string `json:"fullName"`
}

// NewWebsiteRule is the input for creating a website rule.
type NewWebsiteRule struct {
	Domain        string `json:"domain" validate:"required,rule_domain"`
	IsAllowed     bool   `json:"isAllowed"`
	IsTimeLimited bool   `json:"isTimeLimited"`
	AppliedTo     string `json:"appliedTo"`
	CreatedBy     int64  `json:"createdBy" validate:"required,gt=0"`
}

// WebsiteRulePatch is a partial rule update; nil fields are left untouched.
type WebsiteRulePatch struct {
	Domain        *string `json:"domain" validate:"omitempty,rule_domain"`
	IsAllowed     *bool   `json:"isAllowed"`
	IsTimeLimited *bool   `json:"isTimeLimited"`
	AppliedTo     *string `json:"appliedTo"`
}

// validRuleDomain backs the "rule_domain" validation tag: a literal hostname
// or a "*.suffix" wildcard with a non-empty suffix.
func validRuleDomain(fl validator.FieldLevel) bool {
	return domain.ValidateRuleDomain(fl.Field().String()) == nil
}

// NewValidate returns a validator with the store's custom rules registered.
func NewValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("rule_domain", validRuleDomain)
	return v
}

// CanonicalRuleDomain canonicalizes a rule domain the same way requested
// domains are canonicalized, preserving the wildcard prefix. Applied on
// create and update so stored rules and incoming lookups compare verbatim.
func CanonicalRuleDomain(d string) string {
	d = strings.TrimSpace(d)
	if strings.HasPrefix(d, domain.WildcardPrefix) {
		return domain.WildcardPrefix + urlnorm.CanonicalHostname(strings.TrimPrefix(d, domain.WildcardPrefix))
	}
	return urlnorm.CanonicalHostname(d)
}

// bcryptCost balances hashing cost against login latency on small boxes.
const bcryptCost = 10

// HashPassword creates a bcrypt hash of a password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword verifies a password against a stored hash. The
// authentication layer in front of the API uses this; the engine never sees
// credentials.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
