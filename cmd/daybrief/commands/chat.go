package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/jholhewres/daybrief/pkg/daybrief/assistant"
	"github.com/jholhewres/daybrief/pkg/daybrief/config"
	"github.com/jholhewres/daybrief/pkg/daybrief/outlook"
	"github.com/jholhewres/daybrief/pkg/daybrief/store"
)

// newChatCmd creates the `daybrief chat` command for local conversations.
func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the assistant from the terminal",
		Long: `Send a single message or start an interactive session against the
same pipeline the channels use.

Examples:
  daybrief chat "What's on my calendar today?"
  daybrief chat  # interactive mode`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := buildLogger(cmd, cfg)

	config.ResolveKeyringSecrets(cfg, logger)

	tokenFile := store.NewFile(cfg.TokenPath())
	memoryFile := store.NewFile(cfg.MemoryPath())

	auth := outlook.NewAuthenticator(
		cfg.Microsoft.ClientID, cfg.Microsoft.ClientSecret, cfg.Microsoft.TenantID,
		cfg.RedirectURL(), tokenFile, logger,
	)
	graph := outlook.NewClient(auth, logger)
	llm := assistant.NewLLMClient(assistant.LLMConfig{
		Provider:   cfg.AI.Provider,
		BaseURL:    cfg.AI.BaseURL,
		APIKey:     cfg.AI.APIKey,
		Model:      cfg.AI.Model,
		APIVersion: cfg.AI.APIVersion,
	}, logger)
	assembler := assistant.NewContextAssembler(graph, logger)
	proc := assistant.NewProcessor(assembler, graph, llm, memoryFile, logger)
	router := assistant.NewRouter(proc, auth, logger)

	ctx := context.Background()

	// Single-shot mode.
	if len(args) > 0 {
		fmt.Println(router.HandleIncoming(ctx, args[0]))
		return nil
	}

	// Interactive mode.
	rl, err := readline.New("you> ")
	if err != nil {
		return fmt.Errorf("starting readline: %w", err)
	}
	defer rl.Close()

	fmt.Printf("%s interactive chat. Type /help for commands, exit to quit.\n", cfg.Name)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			fmt.Println("bye")
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			fmt.Println("bye")
			return nil
		}

		fmt.Println(router.HandleIncoming(ctx, line))
	}
}
