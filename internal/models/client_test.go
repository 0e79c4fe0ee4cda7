package models

import "testing"

func TestHasPermission(t *testing.T) {
	client := &APIClient{
		IsActive:    true,
		Permissions: []string{"challenges:read", "templates:*"},
	}

	cases := []struct {
		required string
		want     bool
	}{
		{"challenges:read", true},
		{"challenges:write", false},
		{"templates:read", true},
		{"templates:write", true},
		{"users:read", false},
	}
	for _, c := range cases {
		if got := client.HasPermission(c.required); got != c.want {
			t.Errorf("HasPermission(%q) = %v, want %v", c.required, got, c.want)
		}
	}

	// Global wildcard
	admin := &APIClient{IsActive: true, Permissions: []string{"*"}}
	if !admin.HasPermission("anything:at_all") {
		t.Error("global wildcard should grant everything")
	}

	// Inactive clients hold nothing
	inactive := &APIClient{IsActive: false, Permissions: []string{"*"}}
	if inactive.HasPermission("challenges:read") {
		t.Error("inactive client should hold no permissions")
	}

	var nilClient *APIClient
	if nilClient.HasPermission("challenges:read") {
		t.Error("nil client should hold no permissions")
	}
}

func TestMaskedAPIKey(t *testing.T) {
	c := &APIClient{APIKey: "sk-1234567890abcdef"}
	if got := c.MaskedAPIKey(); got != "sk-12345..." {
		t.Errorf("unexpected masked key %q", got)
	}

	short := &APIClient{APIKey: "abc"}
	if got := short.MaskedAPIKey(); got != "***" {
		t.Errorf("short key should be fully masked, got %q", got)
	}
}
