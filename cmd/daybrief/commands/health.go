package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jholhewres/daybrief/pkg/daybrief/config"
	"github.com/jholhewres/daybrief/pkg/daybrief/outlook"
	"github.com/jholhewres/daybrief/pkg/daybrief/store"
)

// newHealthCmd creates the `daybrief health` command. Used by Docker
// HEALTHCHECK and for a quick configuration sanity check.
func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check configuration and connection state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			config.ResolveKeyringSecrets(cfg, quietLogger())

			tokenFile := store.NewFile(cfg.TokenPath())
			auth := outlook.NewAuthenticator(
				cfg.Microsoft.ClientID, cfg.Microsoft.ClientSecret, cfg.Microsoft.TenantID,
				cfg.RedirectURL(), tokenFile, quietLogger(),
			)

			status := map[string]any{
				"microsoftConfigured":    auth.IsConfigured(),
				"microsoftAuthenticated": auth.IsAuthenticated(),
				"aiConfigured":           cfg.AI.APIKey != "",
				"telegramConfigured":     cfg.Telegram.Token != "",
				"discordConfigured":      cfg.Discord.Token != "",
				"smsConfigured":          cfg.Twilio.AccountSID != "" && cfg.Twilio.AuthToken != "" && cfg.Twilio.FromNumber != "",
			}

			out, err := json.MarshalIndent(status, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))

			if !auth.IsConfigured() || cfg.AI.APIKey == "" {
				os.Exit(1)
			}
			return nil
		},
	}
}
