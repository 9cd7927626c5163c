// Package seed loads initial users, website rules and settings from a
// directory of YAML, JSON or TOML files and applies them to an empty store.
// Non-empty stores are left alone, so seeding is safe to run on every start.
package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"

	"github.com/rnProCoder/ControlledBrowsing/internal/control/common/log"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/domain"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/repos/rules"
)

// UserSeed describes one user to create. Password is plaintext in the seed
// file and hashed by the store on insert.
type UserSeed struct {
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	IsAdmin  bool   `koanf:"isAdmin"`
	FullName string `koanf:"fullName"`
}

// RuleSeed describes one website rule. Rules are attributed to the first
// admin user the seed creates.
type RuleSeed struct {
	Domain        string `koanf:"domain"`
	IsAllowed     bool   `koanf:"isAllowed"`
	IsTimeLimited bool   `koanf:"isTimeLimited"`
	AppliedTo     string `koanf:"appliedTo"`
}

// SettingsSeed optionally overrides default settings. Nil fields keep the
// defaults.
type SettingsSeed struct {
	FilteringEnabled *bool `koanf:"filteringEnabled"`
	LoggingEnabled   *bool `koanf:"loggingEnabled"`
	AlertsEnabled    *bool `koanf:"alertsEnabled"`
}

// Data is the merged content of a seed directory.
type Data struct {
	Users    []UserSeed    `koanf:"users"`
	Rules    []RuleSeed    `koanf:"rules"`
	Settings *SettingsSeed `koanf:"settings"`
}

// LoadDirectory walks dir and merges all supported seed files. Files keep
// their lexical walk order, which fixes the insertion order of seeded rules.
// Returns an error if any file fails to parse.
func LoadDirectory(dir string) (Data, error) {
	var data Data

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		fileData, err := loadFile(path)
		if err != nil {
			return fmt.Errorf("error parsing seed file %s: %w", path, err)
		}
		data.Users = append(data.Users, fileData.Users...)
		data.Rules = append(data.Rules, fileData.Rules...)
		if fileData.Settings != nil {
			data.Settings = fileData.Settings
		}
		return nil
	})
	if err != nil {
		return Data{}, err
	}
	return data, nil
}

// loadFile parses one seed file, choosing the parser from the extension.
func loadFile(path string) (Data, error) {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	case ".toml":
		parser = toml.Parser()
	default:
		return Data{}, fmt.Errorf("unsupported seed file extension: %s", path)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return Data{}, err
	}

	var data Data
	if err := k.Unmarshal("", &data); err != nil {
		return Data{}, err
	}
	return data, nil
}

// Apply creates the seeded users, rules and settings in store. It is a no-op
// when the store already holds any users or rules.
func Apply(ctx context.Context, data Data, store rules.Store, logger log.Logger) error {
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	existingUsers, err := store.ListUsers(ctx)
	if err != nil {
		return err
	}
	existingRules, err := store.ListWebsiteRules(ctx)
	if err != nil {
		return err
	}
	if len(existingUsers) > 0 || len(existingRules) > 0 {
		logger.Info(map[string]any{
			"users": len(existingUsers),
			"rules": len(existingRules),
		}, "store not empty, seed skipped")
		return nil
	}

	var adminID int64
	for _, u := range data.Users {
		created, err := store.CreateUser(ctx, rules.NewUser{
			Username: u.Username,
			Password: u.Password,
			IsAdmin:  u.IsAdmin,
			FullName: u.FullName,
		})
		if err != nil {
			return fmt.Errorf("seeding user %q: %w", u.Username, err)
		}
		if created.IsAdmin && adminID == 0 {
			adminID = created.ID
		}
	}

	if len(data.Rules) > 0 && adminID == 0 {
		return fmt.Errorf("seed rules require at least one admin user")
	}
	for _, r := range data.Rules {
		if _, err := store.CreateWebsiteRule(ctx, rules.NewWebsiteRule{
			Domain:        r.Domain,
			IsAllowed:     r.IsAllowed,
			IsTimeLimited: r.IsTimeLimited,
			AppliedTo:     r.AppliedTo,
			CreatedBy:     adminID,
		}); err != nil {
			return fmt.Errorf("seeding rule %q: %w", r.Domain, err)
		}
	}

	if data.Settings != nil {
		if _, err := store.UpdateAppSettings(ctx, domain.AppSettingsPatch{
			FilteringEnabled: data.Settings.FilteringEnabled,
			LoggingEnabled:   data.Settings.LoggingEnabled,
			AlertsEnabled:    data.Settings.AlertsEnabled,
		}); err != nil {
			return fmt.Errorf("seeding settings: %w", err)
		}
	}

	logger.Info(map[string]any{
		"users": len(data.Users),
		"rules": len(data.Rules),
	}, "store seeded")
	return nil
}
