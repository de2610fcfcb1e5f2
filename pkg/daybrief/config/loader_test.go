package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfig(t *testing.T) {
	t.Run("empty YAML yields defaults", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(""))
		if err != nil {
			t.Fatalf("ParseConfig: %v", err)
		}
		if cfg.Name != "Daybrief" {
			t.Errorf("Name = %q, want Daybrief", cfg.Name)
		}
		if cfg.Microsoft.TenantID != "common" {
			t.Errorf("TenantID = %q, want common", cfg.Microsoft.TenantID)
		}
		if cfg.Web.Address != ":8080" {
			t.Errorf("Web.Address = %q, want :8080", cfg.Web.Address)
		}
	})

	t.Run("YAML overrides defaults", func(t *testing.T) {
		data := []byte(`
name: Jarvis
ai:
  provider: azure
  base_url: https://myres.openai.azure.com
  model: gpt-4o
microsoft:
  client_id: abc123
`)
		cfg, err := ParseConfig(data)
		if err != nil {
			t.Fatalf("ParseConfig: %v", err)
		}
		if cfg.Name != "Jarvis" {
			t.Errorf("Name = %q", cfg.Name)
		}
		if cfg.AI.Provider != "azure" || cfg.AI.Model != "gpt-4o" {
			t.Errorf("AI = %+v", cfg.AI)
		}
		if cfg.Microsoft.ClientID != "abc123" {
			t.Errorf("ClientID = %q", cfg.Microsoft.ClientID)
		}
		// Untouched sections keep defaults.
		if cfg.Microsoft.TenantID != "common" {
			t.Errorf("TenantID = %q, want common", cfg.Microsoft.TenantID)
		}
	})

	t.Run("invalid YAML errors", func(t *testing.T) {
		if _, err := ParseConfig([]byte("name: [unclosed")); err == nil {
			t.Fatal("expected error for invalid YAML")
		}
	})
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("DAYBRIEF_TEST_VAR", "hello")

	t.Run("simple variable", func(t *testing.T) {
		if got := expandEnvVars("x: ${DAYBRIEF_TEST_VAR}"); got != "x: hello" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("unset keeps placeholder", func(t *testing.T) {
		in := "x: ${DAYBRIEF_UNSET_VAR}"
		if got := expandEnvVars(in); got != in {
			t.Errorf("got %q", got)
		}
	})

	t.Run("default used when unset", func(t *testing.T) {
		if got := expandEnvVars("x: ${DAYBRIEF_UNSET_VAR:-fallback}"); got != "x: fallback" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("default ignored when set", func(t *testing.T) {
		if got := expandEnvVars("x: ${DAYBRIEF_TEST_VAR:-fallback}"); got != "x: hello" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("required unset errors", func(t *testing.T) {
		_, err := expandEnvVarsWithValidation("x: ${DAYBRIEF_UNSET_VAR:?token is required}")
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "token is required") {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("required set expands", func(t *testing.T) {
		got, err := expandEnvVarsWithValidation("x: ${DAYBRIEF_TEST_VAR:?missing}")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "x: hello" {
			t.Errorf("got %q", got)
		}
	})
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Run("expands env and resolves paths", func(t *testing.T) {
		t.Setenv("DAYBRIEF_TEST_TOKEN", "tok-123")

		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		data := "data_dir: ./state\ntelegram:\n  token: ${DAYBRIEF_TEST_TOKEN}\n"
		if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadConfigFromFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFromFile: %v", err)
		}
		if cfg.Telegram.Token != "tok-123" {
			t.Errorf("Telegram.Token = %q", cfg.Telegram.Token)
		}
		if want := filepath.Join(dir, "state"); cfg.DataDir != want {
			t.Errorf("DataDir = %q, want %q", cfg.DataDir, want)
		}
	})

	t.Run("missing file errors", func(t *testing.T) {
		if _, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestResolveSecrets(t *testing.T) {
	t.Run("env fills empty values", func(t *testing.T) {
		t.Setenv("DAYBRIEF_AI_API_KEY", "sk-env")
		cfg := DefaultConfig()
		resolveSecrets(cfg)
		if cfg.AI.APIKey != "sk-env" {
			t.Errorf("APIKey = %q", cfg.AI.APIKey)
		}
	})

	t.Run("config value wins over env", func(t *testing.T) {
		t.Setenv("DAYBRIEF_AI_API_KEY", "sk-env")
		cfg := DefaultConfig()
		cfg.AI.APIKey = "sk-config"
		resolveSecrets(cfg)
		if cfg.AI.APIKey != "sk-config" {
			t.Errorf("APIKey = %q", cfg.AI.APIKey)
		}
	})

	t.Run("placeholder replaced by env", func(t *testing.T) {
		t.Setenv("DAYBRIEF_TELEGRAM_TOKEN", "tg-env")
		cfg := DefaultConfig()
		cfg.Telegram.Token = "${TELEGRAM_BOT_TOKEN}"
		resolveSecrets(cfg)
		if cfg.Telegram.Token != "tg-env" {
			t.Errorf("Token = %q", cfg.Telegram.Token)
		}
	})
}

func TestConfigPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/var/lib/daybrief"
	cfg.BaseURL = "https://assistant.example.com"

	if got := cfg.TokenPath(); got != "/var/lib/daybrief/tokens.json" {
		t.Errorf("TokenPath = %q", got)
	}
	if got := cfg.RedirectURL(); got != "https://assistant.example.com/auth/callback" {
		t.Errorf("RedirectURL = %q", got)
	}
	if got := cfg.WebhookURL(); got != "https://assistant.example.com/sms/webhook" {
		t.Errorf("WebhookURL = %q", got)
	}
}
