package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jholhewres/daybrief/pkg/daybrief/config"
)

// newSetupCmd creates the `daybrief setup` command that stores secrets in
// the OS keyring.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Store API credentials in the OS keyring",
		Long: `Interactively store secrets in the operating system keyring so they
never live in config.yaml or the environment. Input is hidden; pressing
Enter without typing keeps the current value.

Secrets stored: AI API key, Microsoft client secret, Twilio auth token,
Telegram bot token, Discord bot token.`,
		RunE: runSetup,
	}
}

func runSetup(_ *cobra.Command, _ []string) error {
	if !config.IsInteractive() {
		return fmt.Errorf("setup requires an interactive terminal")
	}
	if !config.KeyringAvailable() {
		return fmt.Errorf("no OS keyring available on this system; use environment variables instead")
	}

	fmt.Println("Daybrief secret setup. Press Enter to skip a secret.")
	fmt.Println()

	secrets := []struct {
		key    string
		prompt string
	}{
		{config.KeyAIAPIKey, "AI API key"},
		{config.KeyMSClientSecret, "Microsoft client secret"},
		{config.KeyTwilioAuthToken, "Twilio auth token"},
		{config.KeyTelegramToken, "Telegram bot token"},
		{config.KeyDiscordToken, "Discord bot token"},
	}

	stored := 0
	for _, secret := range secrets {
		value, err := config.ReadPassword(secret.prompt + ": ")
		if err != nil {
			return fmt.Errorf("reading %s: %w", secret.prompt, err)
		}
		if value == "" {
			continue
		}
		if err := config.StoreKeyring(secret.key, value); err != nil {
			return fmt.Errorf("storing %s: %w", secret.prompt, err)
		}
		stored++
		fmt.Println("  stored.")
	}

	fmt.Println()
	if stored == 0 {
		fmt.Println("Nothing stored.")
	} else {
		fmt.Printf("%d secret(s) stored in the OS keyring.\n", stored)
	}
	return nil
}
