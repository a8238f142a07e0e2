package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSettingsMissingFile(t *testing.T) {
	settings, err := LoadSettings(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatalf("LoadSettings() error: %v", err)
	}

	defaults := DefaultSettings()
	if settings.SiteURL != defaults.SiteURL {
		t.Errorf("SiteURL = %q, want default %q", settings.SiteURL, defaults.SiteURL)
	}
	if settings.Concurrency != defaults.Concurrency {
		t.Errorf("Concurrency = %d, want default %d", settings.Concurrency, defaults.Concurrency)
	}
}

func TestLoadSettingsPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	partial := "site_url: https://example.org\nconcurrency: 2\n"
	if err := os.WriteFile(path, []byte(partial), 0644); err != nil {
		t.Fatal(err)
	}

	settings, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings() error: %v", err)
	}

	if settings.SiteURL != "https://example.org" {
		t.Errorf("SiteURL = %q, want value from file", settings.SiteURL)
	}
	if settings.Concurrency != 2 {
		t.Errorf("Concurrency = %d, want 2", settings.Concurrency)
	}
	if settings.ContentDir != "src/content/posts" {
		t.Errorf("ContentDir = %q, want default kept", settings.ContentDir)
	}
	if settings.LanguageAliases["js"] != "javascript" {
		t.Errorf("LanguageAliases = %v, want default alias table kept", settings.LanguageAliases)
	}
}

func TestLoadSettingsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte(":\n\t:bad"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadSettings(path); err == nil {
		t.Fatal("LoadSettings() must fail on invalid YAML")
	}
}

func TestLoadSettingsConcurrencyFloor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("concurrency: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	settings, err := LoadSettings(path)
	if err != nil {
		t.Fatal(err)
	}
	if settings.Concurrency != 1 {
		t.Errorf("Concurrency = %d, want floor of 1", settings.Concurrency)
	}
}
