package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if got := cfg.Layout.RegistryPath(); got != "iiif/objects.csv" {
		t.Errorf("RegistryPath = %q", got)
	}
	if got := cfg.Layout.ObjectsPath(); got != "iiif/objects" {
		t.Errorf("ObjectsPath = %q", got)
	}
	if got := cfg.Layout.BundleLayout().BundleFile; got != "bundle.json" {
		t.Errorf("BundleFile = %q", got)
	}
}

func TestContentConfig_BaseURL(t *testing.T) {
	cfg := ContentConfig{Root: ".", BaseURL: "not a url"}
	if err := cfg.Validate(); err == nil {
		t.Error("invalid base_url should fail")
	}
	cfg.BaseURL = "https://content.example.org"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid base_url should pass: %v", err)
	}
	cfg.Languages = []string{"en", ""}
	if err := cfg.Validate(); err == nil {
		t.Error("empty language code should fail")
	}
}

func TestIIIFConfig_TileSize(t *testing.T) {
	cfg := IIIFConfig{TileSize: 16, VipsPath: "vips"}
	if err := cfg.Validate(); err == nil {
		t.Error("tile size below 64 should fail")
	}
}

func TestLayoutConfig_GlossaryTableOptional(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Layout.GlossaryTable = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty glossary table should be allowed: %v", err)
	}
	cfg.Layout.BundleFile = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty bundle file should fail")
	}
}
