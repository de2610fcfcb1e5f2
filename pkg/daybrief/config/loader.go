// Package config – loader.go handles loading configuration from YAML files
// with secure credential management via environment variables and .env files.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches environment variable patterns in config values:
//   - ${VAR_NAME}         - simple variable
//   - ${VAR_NAME:-default} - default value if not set
//   - ${VAR_NAME:?error}   - error message if not set
//   - $VAR_NAME           - bare variable (no default/error support)
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::(-|\?)([^}]*))?\}|\$([A-Z_][A-Z0-9_]*)`)

// LoadConfigFromFile reads and parses a YAML configuration file.
// Automatically loads .env files and expands environment variables.
// Returns an error if any ${VAR:?error} pattern has its variable unset.
func LoadConfigFromFile(path string) (*Config, error) {
	// Load .env files (silently ignore if not found).
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded, err := expandEnvVarsWithValidation(string(data))
	if err != nil {
		return nil, fmt.Errorf("expanding environment variables: %w", err)
	}

	cfg, err := ParseConfig([]byte(expanded))
	if err != nil {
		return nil, err
	}

	// Resolve secrets from environment (override empty/placeholder values).
	resolveSecrets(cfg)

	// Resolve relative paths based on config file location.
	resolveRelativePaths(cfg, path)

	checkFilePermissions(path)

	return cfg, nil
}

// ParseConfig parses YAML bytes into a Config.
// Starts with defaults and overlays values from the YAML.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	return cfg, nil
}

// FindConfigFile searches for config files in standard locations.
func FindConfigFile() string {
	candidates := []string{
		"config.yaml",
		"config.yml",
		"daybrief.yaml",
		"daybrief.yml",
		"configs/config.yaml",
		"configs/daybrief.yaml",
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// ---------- Internal ----------

// loadEnvFiles loads .env files from standard locations.
// godotenv does NOT overwrite existing env vars.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// expandEnvVars replaces ${VAR}, ${VAR:-default}, ${VAR:?error}, and $VAR
// references in a string with their environment variable values.
//
// The ${VAR:?error} pattern is handled specially: if the variable is unset,
// the function returns the original match prefixed with "ERROR:" to signal
// an error condition that should be caught during validation.
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		// Groups: 1=varName, 2=modifierType(-|?), 3=value, 4=bareVar
		submatches := envVarPattern.FindStringSubmatch(match)

		var varName, modifierType, modifierValue, bareVar string
		if len(submatches) >= 2 {
			varName = submatches[1]
		}
		if len(submatches) >= 3 {
			modifierType = submatches[2]
		}
		if len(submatches) >= 4 {
			modifierValue = submatches[3]
		}
		if len(submatches) >= 5 {
			bareVar = submatches[4]
		}

		// Bare $VAR syntax.
		if bareVar != "" {
			if val, ok := os.LookupEnv(bareVar); ok {
				return val
			}
			return match // Keep placeholder if unset.
		}

		// ${VAR} syntax with optional modifier.
		if varName != "" {
			if val, ok := os.LookupEnv(varName); ok {
				return val
			}

			if modifierType != "" {
				if modifierType == "?" {
					errorMsg := modifierValue
					if errorMsg == "" {
						errorMsg = "required environment variable not set"
					}
					return "ERROR:" + varName + ":" + errorMsg
				}
				// It's a :-default pattern.
				return modifierValue
			}
			return match
		}

		return match
	})
}

// expandEnvVarsWithValidation is like expandEnvVars but returns an error
// if any ${VAR:?error} pattern has its variable unset.
func expandEnvVarsWithValidation(input string) (string, error) {
	result := expandEnvVars(input)
	if strings.Contains(result, "ERROR:") {
		// Format: ERROR:VAR_NAME:error message
		idx := strings.Index(result, "ERROR:")
		rest := result[idx+6:]
		colonIdx := strings.Index(rest, ":")
		if colonIdx == -1 {
			return "", fmt.Errorf("config error: malformed error marker")
		}
		varName := rest[:colonIdx]
		errorMsg := rest[colonIdx+1:]
		if errorMsg == "" {
			errorMsg = "required environment variable not set"
		}
		return "", fmt.Errorf("config error: %s - %s", varName, errorMsg)
	}
	return result, nil
}

// resolveSecrets fills in config secrets from environment variables
// when the config value is empty or a placeholder.
func resolveSecrets(cfg *Config) {
	fromEnv := func(current *string, envVars ...string) {
		if *current != "" && !IsEnvReference(*current) {
			return
		}
		for _, name := range envVars {
			if val := os.Getenv(name); val != "" {
				*current = val
				return
			}
		}
	}

	fromEnv(&cfg.AI.APIKey, "DAYBRIEF_AI_API_KEY", "AZURE_OPENAI_API_KEY", "OPENAI_API_KEY")
	fromEnv(&cfg.Microsoft.ClientSecret, "DAYBRIEF_MS_CLIENT_SECRET", "MICROSOFT_CLIENT_SECRET")
	fromEnv(&cfg.Twilio.AuthToken, "DAYBRIEF_TWILIO_AUTH_TOKEN", "TWILIO_AUTH_TOKEN")
	fromEnv(&cfg.Telegram.Token, "DAYBRIEF_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN")
	fromEnv(&cfg.Discord.Token, "DAYBRIEF_DISCORD_TOKEN", "DISCORD_BOT_TOKEN")
	fromEnv(&cfg.Web.AuthToken, "DAYBRIEF_WEB_TOKEN")
}

// resolveRelativePaths converts relative paths to absolute paths based on
// the config file's directory, so paths work regardless of the working
// directory the daemon was started from.
func resolveRelativePaths(cfg *Config, configPath string) {
	configDir := filepath.Dir(configPath)

	if cfg.DataDir != "" {
		cfg.DataDir = resolvePathFromConfig(cfg.DataDir, configDir)
	}
}

// resolvePathFromConfig converts a path to absolute, resolving relative paths
// against the config file's directory. Expands ~ to home directory.
func resolvePathFromConfig(path, configDir string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		path = filepath.Join(home, path[2:])
	}

	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(configDir, path)
}

// IsEnvReference checks if a string is an environment variable reference.
func IsEnvReference(s string) bool {
	return strings.HasPrefix(s, "${") || strings.HasPrefix(s, "$")
}

// checkFilePermissions warns if config file is world-readable.
func checkFilePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	mode := info.Mode().Perm()
	if mode&0o044 != 0 {
		slog.Warn("config file has open permissions, consider restricting",
			"path", path,
			"current", fmt.Sprintf("%04o", mode),
			"recommended", "0600",
		)
	}
}
