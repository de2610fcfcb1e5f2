// Package config defines all configuration structures for the Daybrief
// assistant daemon.
package config

import "path/filepath"

// Config holds all daemon configuration.
type Config struct {
	// Name is the assistant name shown in replies.
	Name string `yaml:"name"`

	// DataDir holds the flat-file state records (tokens.json, memory.json,
	// schedule.json).
	DataDir string `yaml:"data_dir"`

	// BaseURL is the public URL of the web server, used to build the OAuth
	// redirect URI and to validate Twilio webhook signatures.
	BaseURL string `yaml:"base_url"`

	// Logging configures the slog handler.
	Logging LoggingConfig `yaml:"logging"`

	// Microsoft configures the Graph OAuth application.
	Microsoft MicrosoftConfig `yaml:"microsoft"`

	// AI configures the chat-completions endpoint.
	AI AIConfig `yaml:"ai"`

	// Twilio configures SMS send and the inbound webhook.
	Twilio TwilioConfig `yaml:"twilio"`

	// Telegram configures the Telegram bot channel.
	Telegram TelegramConfig `yaml:"telegram"`

	// Discord configures the Discord bot channel.
	Discord DiscordConfig `yaml:"discord"`

	// Web configures the HTTP server.
	Web WebConfig `yaml:"web"`
}

// LoggingConfig selects the slog handler and level.
type LoggingConfig struct {
	// Level is "debug" or "info".
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// MicrosoftConfig holds the Graph application registration.
type MicrosoftConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	// TenantID defaults to "common" (any Microsoft account).
	TenantID string `yaml:"tenant_id"`
}

// AIConfig holds the chat-completions endpoint settings.
type AIConfig struct {
	// Provider is "openai" (OpenAI-compatible, Bearer auth) or "azure"
	// (Azure OpenAI deployment URL, api-key header).
	Provider string `yaml:"provider"`

	// BaseURL is the endpoint root, e.g. "https://api.openai.com/v1" or
	// "https://myresource.openai.azure.com".
	BaseURL string `yaml:"base_url"`

	APIKey string `yaml:"api_key"`

	// Model is the model name, or the deployment name on Azure.
	Model string `yaml:"model"`

	// APIVersion is the Azure api-version query parameter.
	APIVersion string `yaml:"api_version"`
}

// TwilioConfig holds SMS credentials and the single authorized user number.
type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`

	// UserNumber is the single recipient/sender the assistant serves.
	// Empty disables the sender allow-list on the webhook.
	UserNumber string `yaml:"user_number"`

	// ValidateSignature enables X-Twilio-Signature checking on the webhook.
	ValidateSignature bool `yaml:"validate_signature"`
}

// TelegramConfig holds the bot token and the single authorized chat.
type TelegramConfig struct {
	Token string `yaml:"token"`

	// ChatID is the authorized chat. Empty triggers the bootstrap reply
	// that tells the user their chat ID.
	ChatID string `yaml:"chat_id"`
}

// DiscordConfig holds the bot token and the single authorized channel.
type DiscordConfig struct {
	Token string `yaml:"token"`

	// ChannelID is the authorized channel (typically the user's DM).
	ChannelID string `yaml:"channel_id"`
}

// WebConfig holds the HTTP server settings.
type WebConfig struct {
	// Address is the listen address (default ":8080").
	Address string `yaml:"address"`

	// AuthToken is the Bearer token protecting /api routes (empty = no auth).
	AuthToken string `yaml:"auth_token"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "Daybrief",
		DataDir: "./data",
		BaseURL: "http://localhost:8080",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Microsoft: MicrosoftConfig{
			TenantID: "common",
		},
		AI: AIConfig{
			Provider:   "openai",
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o-mini",
			APIVersion: "2024-02-15-preview",
		},
		Web: WebConfig{
			Address: ":8080",
		},
	}
}

// TokenPath returns the path of the persisted token record.
func (c *Config) TokenPath() string { return filepath.Join(c.DataDir, "tokens.json") }

// MemoryPath returns the path of the persisted user memory record.
func (c *Config) MemoryPath() string { return filepath.Join(c.DataDir, "memory.json") }

// SchedulePath returns the path of the persisted schedule configuration.
func (c *Config) SchedulePath() string { return filepath.Join(c.DataDir, "schedule.json") }

// RedirectURL returns the OAuth callback URL derived from BaseURL.
func (c *Config) RedirectURL() string { return c.BaseURL + "/auth/callback" }

// WebhookURL returns the Twilio webhook URL derived from BaseURL.
func (c *Config) WebhookURL() string { return c.BaseURL + "/sms/webhook" }
