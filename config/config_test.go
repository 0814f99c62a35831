package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestReadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	content := `
[feed]
page_size = 20
debounce = "250ms"

[source]
kind = "local"
bias_window = 0.4

[[outlets]]
name = "bbc"
feed_url = "http://feeds.bbci.co.uk/news/rss.xml"
type = "rss"
bias = 0.0
filters = ["long"]

[[outlets]]
name = "channel"
feed_url = "https://t.me/somechannel"
type = "telegram_channel"
bias = -0.5
enabled = false

[filters.long]
min_words = 5
max_age = "48h"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Read(cfgPath)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if cfg.Feed.PageSize != 20 {
		t.Errorf("PageSize = %d, want 20", cfg.Feed.PageSize)
	}
	if cfg.Feed.Debounce.Duration != 250*time.Millisecond {
		t.Errorf("Debounce = %v, want 250ms", cfg.Feed.Debounce)
	}
	if cfg.Feed.ErrorMessage == "" {
		t.Error("ErrorMessage should keep its default")
	}
	if cfg.Source.Kind != LocalSource {
		t.Errorf("Kind = %q, want %q", cfg.Source.Kind, LocalSource)
	}
	if cfg.Source.BiasWindow != 0.4 {
		t.Errorf("BiasWindow = %v, want 0.4", cfg.Source.BiasWindow)
	}
	if cfg.Source.PerOutletLimit != 5 {
		t.Errorf("PerOutletLimit = %d, want default 5", cfg.Source.PerOutletLimit)
	}
	if len(cfg.Outlets) != 2 {
		t.Fatalf("got %d outlets, want 2", len(cfg.Outlets))
	}
	if got := cfg.Filters["long"].MaxAge.Duration; got != 48*time.Hour {
		t.Errorf("MaxAge = %v, want 48h", got)
	}

	enabled := cfg.EnabledOutlets()
	if len(enabled) != 1 || enabled[0].Name != "bbc" {
		t.Errorf("EnabledOutlets() = %+v, want only bbc", enabled)
	}
}

func TestWriteThenRead(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "nested", "config.toml")
	want := Default()
	want.Feed.RequestTimeout = Duration{3 * time.Second}

	if err := Write(cfgPath, want); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := Read(cfgPath)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Feed.RequestTimeout.Duration != 3*time.Second {
		t.Errorf("RequestTimeout = %v, want 3s", got.Feed.RequestTimeout)
	}
	if len(got.Outlets) != len(want.Outlets) {
		t.Errorf("got %d outlets, want %d", len(got.Outlets), len(want.Outlets))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "default is valid",
			mutate: func(*Config) {},
		},
		{
			name:    "zero page size",
			mutate:  func(c *Config) { c.Feed.PageSize = 0 },
			wantErr: "page_size",
		},
		{
			name:    "initial filter out of range",
			mutate:  func(c *Config) { c.Feed.InitialFilter = 1.5 },
			wantErr: "initial_filter",
		},
		{
			name:    "unknown source kind",
			mutate:  func(c *Config) { c.Source.Kind = "grpc" },
			wantErr: "source.kind",
		},
		{
			name:    "http without base url",
			mutate:  func(c *Config) { c.Source.BaseURL = "" },
			wantErr: "base_url",
		},
		{
			name: "local with unknown filter",
			mutate: func(c *Config) {
				c.Source.Kind = LocalSource
				c.Outlets[0].FilterNames = []string{"missing"}
			},
			wantErr: "unknown filter",
		},
		{
			name: "local with bad outlet type",
			mutate: func(c *Config) {
				c.Source.Kind = LocalSource
				c.Outlets[0].T = "atom"
			},
			wantErr: "unknown type",
		},
		{
			name: "local with bias out of range",
			mutate: func(c *Config) {
				c.Source.Kind = LocalSource
				c.Outlets[0].Bias = -2
			},
			wantErr: "bias",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1m30s")); err != nil {
		t.Fatal(err)
	}
	if d.Duration != 90*time.Second {
		t.Errorf("got %v, want 1m30s", d.Duration)
	}
	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Error("expected error for invalid duration")
	}
	out, _ := d.MarshalText()
	if string(out) != "1m30s" {
		t.Errorf("MarshalText() = %q, want 1m30s", out)
	}
}

func TestIsEnabled(t *testing.T) {
	on, off := true, false
	tests := []struct {
		name    string
		enabled *bool
		want    bool
	}{
		{"unset", nil, true},
		{"true", &on, true},
		{"false", &off, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (OutletConfig{Enabled: tt.enabled}).IsEnabled(); got != tt.want {
				t.Errorf("IsEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPromptTelegramCredentials(t *testing.T) {
	in := strings.NewReader("12345\nabcdef\n+1234567890\n")
	var out strings.Builder

	creds, err := PromptTelegramCredentials(in, &out)
	if err != nil {
		t.Fatalf("PromptTelegramCredentials() error = %v", err)
	}
	if creds.AppID != 12345 || creds.AppHash != "abcdef" || creds.PhoneNumber != "+1234567890" {
		t.Errorf("unexpected credentials: %+v", creds)
	}
	if !strings.Contains(out.String(), "my.telegram.org") {
		t.Error("prompt should explain where to get the API id")
	}

	_, err = PromptTelegramCredentials(strings.NewReader("not-a-number\n"), &out)
	if err == nil {
		t.Error("expected error for invalid API_ID")
	}
}

func TestCredentialsRoundTrip(t *testing.T) {
	t.Setenv(GeminiAPIKeyEnv, "")
	t.Setenv(GeminiModelEnv, "")
	credPath := filepath.Join(t.TempDir(), "creds.toml")
	if _, err := LoadGeminiCredentials(credPath); err == nil {
		t.Error("expected error for a missing credentials file")
	}

	creds := Credentials{Gemini: GeminiCredentials{APIKey: "key", Model: "gemini-2.0-flash"}}
	if err := WriteCredentials(credPath, creds); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(credPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("credentials mode = %v, want 0600", info.Mode().Perm())
	}

	gemini, err := LoadGeminiCredentials(credPath)
	if err != nil {
		t.Fatalf("LoadGeminiCredentials() error = %v", err)
	}
	if gemini.Model != "gemini-2.0-flash" {
		t.Errorf("Model = %q", gemini.Model)
	}
}

func TestLoadGeminiCredentials_EnvOverride(t *testing.T) {
	credPath := filepath.Join(t.TempDir(), "creds.toml")
	t.Setenv(GeminiAPIKeyEnv, "env-key")
	t.Setenv(GeminiModelEnv, "")

	if _, err := LoadGeminiCredentials(credPath); err == nil {
		t.Error("expected error without a model")
	}

	if err := WriteCredentials(credPath, Credentials{Gemini: GeminiCredentials{APIKey: "file-key", Model: "gemini-2.0-flash"}}); err != nil {
		t.Fatal(err)
	}
	gemini, err := LoadGeminiCredentials(credPath)
	if err != nil {
		t.Fatalf("LoadGeminiCredentials() error = %v", err)
	}
	if gemini.APIKey != "env-key" || gemini.Model != "gemini-2.0-flash" {
		t.Errorf("unexpected credentials: %+v", gemini)
	}
}
