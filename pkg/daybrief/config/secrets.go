// Package config – secrets.go provides secure credential storage using the
// operating system's native keyring (Linux: Secret Service/GNOME Keyring,
// macOS: Keychain, Windows: Credential Manager).
//
// Priority for resolving secrets:
//  1. OS keyring (encrypted by the OS, requires user session)
//  2. Environment variable (DAYBRIEF_AI_API_KEY, OPENAI_API_KEY, etc.)
//  3. .env file (loaded by godotenv)
//  4. config.yaml value (least secure — plaintext on disk)
package config

import (
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const (
	// keyringService is the service name used in the OS keyring.
	keyringService = "daybrief"

	// Keyring key names for each stored secret.
	KeyAIAPIKey        = "ai_api_key"
	KeyMSClientSecret  = "ms_client_secret"
	KeyTwilioAuthToken = "twilio_auth_token"
	KeyTelegramToken   = "telegram_token"
	KeyDiscordToken    = "discord_token"
)

// StoreKeyring saves a secret to the OS keyring.
func StoreKeyring(key, value string) error {
	return keyring.Set(keyringService, key, value)
}

// GetKeyring retrieves a secret from the OS keyring.
// Returns empty string if not found.
func GetKeyring(key string) string {
	val, err := keyring.Get(keyringService, key)
	if err != nil {
		return ""
	}
	return val
}

// DeleteKeyring removes a secret from the OS keyring.
func DeleteKeyring(key string) error {
	return keyring.Delete(keyringService, key)
}

// KeyringAvailable checks if the OS keyring is accessible.
func KeyringAvailable() bool {
	testKey := "__daybrief_test__"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, testKey)
	return true
}

// ResolveKeyringSecrets overrides config secrets with values from the OS
// keyring when present. Env/config values resolved earlier are kept as
// fallbacks for headless deployments without a keyring.
func ResolveKeyringSecrets(cfg *Config, logger *slog.Logger) {
	resolve := func(key string, dst *string, what string) {
		if val := GetKeyring(key); val != "" {
			*dst = val
			logger.Debug(what+" loaded from OS keyring", "service", keyringService)
		}
	}

	resolve(KeyAIAPIKey, &cfg.AI.APIKey, "AI API key")
	resolve(KeyMSClientSecret, &cfg.Microsoft.ClientSecret, "Microsoft client secret")
	resolve(KeyTwilioAuthToken, &cfg.Twilio.AuthToken, "Twilio auth token")
	resolve(KeyTelegramToken, &cfg.Telegram.Token, "Telegram token")
	resolve(KeyDiscordToken, &cfg.Discord.Token, "Discord token")
}

// ReadPassword prompts for a secret without echoing it to the terminal.
func ReadPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	pass, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pass), nil
}

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
