package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rnProCoder/ControlledBrowsing/internal/control/repos/rules"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/repos/rules/memory"
)

func writeSeed(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

const yamlSeed = `users:
  - username: admin
    password: secret123
    isAdmin: true
    fullName: Administrator
  - username: kid
    password: hunter2
rules:
  - domain: "*.google.com"
    isAllowed: true
  - domain: facebook.com
    isAllowed: false
settings:
  filteringEnabled: true
  alertsEnabled: false
`

func TestLoadDirectory_YAML(t *testing.T) {
	dir := t.TempDir()
	writeSeed(t, dir, "seed.yaml", yamlSeed)

	data, err := LoadDirectory(dir)
	require.NoError(t, err)
	require.Len(t, data.Users, 2)
	assert.Equal(t, "admin", data.Users[0].Username)
	assert.True(t, data.Users[0].IsAdmin)
	require.Len(t, data.Rules, 2)
	assert.Equal(t, "*.google.com", data.Rules[0].Domain)
	assert.True(t, data.Rules[0].IsAllowed)
	require.NotNil(t, data.Settings)
	require.NotNil(t, data.Settings.AlertsEnabled)
	assert.False(t, *data.Settings.AlertsEnabled)
	assert.Nil(t, data.Settings.LoggingEnabled, "unset settings stay nil")
}

func TestLoadDirectory_JSON(t *testing.T) {
	dir := t.TempDir()
	writeSeed(t, dir, "seed.json", `{
  "users": [{"username": "admin", "password": "pw", "isAdmin": true}],
  "rules": [{"domain": "example.com", "isAllowed": true}]
}`)

	data, err := LoadDirectory(dir)
	require.NoError(t, err)
	require.Len(t, data.Users, 1)
	require.Len(t, data.Rules, 1)
	assert.Equal(t, "example.com", data.Rules[0].Domain)
}

func TestLoadDirectory_TOML(t *testing.T) {
	dir := t.TempDir()
	writeSeed(t, dir, "seed.toml", `[[users]]
username = "admin"
password = "pw"
isAdmin = true

[[rules]]
domain = "example.com"
isAllowed = true
`)

	data, err := LoadDirectory(dir)
	require.NoError(t, err)
	require.Len(t, data.Users, 1)
	require.Len(t, data.Rules, 1)
}

func TestLoadDirectory_MergesFilesInLexicalOrder(t *testing.T) {
	dir := t.TempDir()
	writeSeed(t, dir, "10-first.yaml", "rules:\n  - domain: a.com\n    isAllowed: true\nusers:\n  - username: admin\n    password: pw\n    isAdmin: true\n")
	writeSeed(t, dir, "20-second.yaml", "rules:\n  - domain: b.com\n    isAllowed: false\n")

	data, err := LoadDirectory(dir)
	require.NoError(t, err)
	require.Len(t, data.Rules, 2)
	assert.Equal(t, "a.com", data.Rules[0].Domain)
	assert.Equal(t, "b.com", data.Rules[1].Domain)
}

func TestLoadDirectory_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	writeSeed(t, dir, "seed.ini", "users=admin")

	_, err := LoadDirectory(dir)
	assert.Error(t, err)
}

func TestApply_SeedsEmptyStore(t *testing.T) {
	dir := t.TempDir()
	writeSeed(t, dir, "seed.yaml", yamlSeed)
	data, err := LoadDirectory(dir)
	require.NoError(t, err)

	store := memory.New(nil)
	ctx := context.Background()
	require.NoError(t, Apply(ctx, data, store, nil))

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	admin, err := store.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)
	assert.True(t, rules.CheckPassword("secret123", admin.PasswordHash))

	list, err := store.ListWebsiteRules(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "*.google.com", list[0].Domain)
	assert.Equal(t, admin.ID, list[0].CreatedBy, "seeded rules attributed to the first admin")

	settings, err := store.GetAppSettings(ctx)
	require.NoError(t, err)
	assert.True(t, settings.FilteringEnabled)
	assert.True(t, settings.LoggingEnabled)
	assert.False(t, settings.AlertsEnabled)
}

func TestApply_SkipsNonEmptyStore(t *testing.T) {
	store := memory.New(nil)
	ctx := context.Background()
	_, err := store.CreateUser(ctx, rules.NewUser{Username: "existing", Password: "pw"})
	require.NoError(t, err)

	data := Data{Users: []UserSeed{{Username: "admin", Password: "pw", IsAdmin: true}}}
	require.NoError(t, Apply(ctx, data, store, nil))

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1, "seeding must not touch a populated store")
	assert.Equal(t, "existing", users[0].Username)
}

func TestApply_RulesRequireAdmin(t *testing.T) {
	store := memory.New(nil)
	data := Data{
		Users: []UserSeed{{Username: "kid", Password: "pw"}},
		Rules: []RuleSeed{{Domain: "example.com", IsAllowed: true}},
	}
	err := Apply(context.Background(), data, store, nil)
	assert.Error(t, err)
}
