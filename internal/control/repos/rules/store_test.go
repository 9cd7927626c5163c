package rules

import (
	"strings"
	"testing"
)

func TestCanonicalRuleDomain(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"literal unchanged", "facebook.com", "facebook.com"},
		{"literal lowercased", "FaceBook.COM", "facebook.com"},
		{"literal trailing dot", "facebook.com.", "facebook.com"},
		{"wildcard preserved", "*.google.com", "*.google.com"},
		{"wildcard suffix lowercased", "*.Google.COM", "*.google.com"},
		{"wildcard trailing dot", "*.google.com.", "*.google.com"},
		{"whitespace", "  example.com  ", "example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalRuleDomain(tt.in); got != tt.want {
				t.Errorf("CanonicalRuleDomain(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "hunter2" || !strings.HasPrefix(hash, "$2") {
		t.Errorf("hash %q does not look like bcrypt output", hash)
	}
	if !CheckPassword("hunter2", hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("wrong", hash) {
		t.Error("wrong password accepted")
	}
}

func TestNewValidate_RuleDomainTag(t *testing.T) {
	v := NewValidate()

	tests := []struct {
		name    string
		in      NewWebsiteRule
		wantErr bool
	}{
		{"valid literal", NewWebsiteRule{Domain: "facebook.com", CreatedBy: 1}, false},
		{"valid wildcard", NewWebsiteRule{Domain: "*.google.com", CreatedBy: 1}, false},
		{"empty domain", NewWebsiteRule{Domain: "", CreatedBy: 1}, true},
		{"bad wildcard", NewWebsiteRule{Domain: "*.", CreatedBy: 1}, true},
		{"missing creator", NewWebsiteRule{Domain: "facebook.com"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(&tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("Struct(%+v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestNewValidate_PatchAllowsNilDomain(t *testing.T) {
	v := NewValidate()
	if err := v.Struct(&WebsiteRulePatch{}); err != nil {
		t.Errorf("empty patch must validate, got %v", err)
	}
	bad := "*."
	if err := v.Struct(&WebsiteRulePatch{Domain: &bad}); err == nil {
		t.Error("set but invalid domain must fail validation")
	}
}
