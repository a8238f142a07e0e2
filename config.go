package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const defaultConfigDir = ".wpmdx"

// Settings represents the YAML configuration structure
type Settings struct {
	ExportFile      string `yaml:"export_file"`
	ContentDir      string `yaml:"content_dir"`
	MediaDir        string `yaml:"media_dir"`
	ImagePathPrefix string `yaml:"image_path_prefix"`
	DefaultCategory string `yaml:"default_category"`
	SiteURL         string `yaml:"site_url"`
	Author          string `yaml:"author"`
	PostPath        string `yaml:"post_path"`
	Concurrency     int    `yaml:"concurrency"`

	// Code fence language handling. The alias table is deliberately
	// configurable: legacy exports carry more highlighter tags than the
	// built-in defaults cover.
	DefaultCodeLanguage  string            `yaml:"default_code_language"`
	DefaultShellLanguage string            `yaml:"default_shell_language"`
	LanguageAliases      map[string]string `yaml:"language_aliases"`
}

const defaultSettingsYAML = `export_file: wordpress-export.xml
content_dir: src/content/posts
media_dir: public/images/posts
image_path_prefix: /images/posts
default_category: WordPress
site_url: https://hilucas.de
author: Lucas Kleipödszus
post_path: /writing
concurrency: 4
default_code_language: javascript
default_shell_language: bash
language_aliases:
  js: javascript
  jscript: javascript
  markup: html
  html: html
`

// DefaultSettings returns the built-in configuration.
func DefaultSettings() *Settings {
	var s Settings
	// The embedded default document is the single source of truth.
	if err := yaml.Unmarshal([]byte(defaultSettingsYAML), &s); err != nil {
		panic(fmt.Sprintf("invalid built-in settings: %v", err))
	}
	return &s
}

// LoadSettings loads settings from settingsPath, falling back to the
// built-in defaults when the file does not exist. Fields left empty in the
// file keep their defaults.
func LoadSettings(settingsPath string) (*Settings, error) {
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, fmt.Errorf("reading settings file %s: %w", settingsPath, err)
	}

	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing settings YAML: %w", err)
	}
	if settings.Concurrency < 1 {
		settings.Concurrency = 1
	}
	return settings, nil
}

// getConfigPath returns the path to a config file in the .wpmdx directory
func getConfigPath(filename string) string {
	return filepath.Join(defaultConfigDir, filename)
}

// ensureConfigExists creates the config directory and writes the default
// settings.yaml on first run so users have something to edit.
func ensureConfigExists() error {
	if err := os.MkdirAll(defaultConfigDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	settingsPath := getConfigPath("settings.yaml")
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		if err := os.WriteFile(settingsPath, []byte(defaultSettingsYAML), 0644); err != nil {
			return fmt.Errorf("writing settings.yaml: %w", err)
		}
	}

	return nil
}
