// Command ankicli is a Claude-powered conversational assistant for managing
// Anki flashcard decks through AnkiConnect.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ankicli/internal/anki"
	"ankicli/internal/config"
	"ankicli/internal/logging"
)

const version = "0.3.0"

var (
	debugFlag bool

	configDir string
	userCfg   *config.UserConfig
)

var rootCmd = &cobra.Command{
	Use:   "ankicli",
	Short: "Claude-powered Anki flashcard assistant",
	Long: `ankicli is a conversational assistant for Anki flashcards.

Chat with Claude to add, edit, search, and organize cards in a running Anki
instance (via the AnkiConnect add-on). Heavy bulk edits fan out to parallel
sub-agents, and a persistent learning summary tracks progress across sessions.

Run without arguments to start the interactive chat.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.Dir()
		if err != nil {
			return err
		}
		configDir = dir

		cfg, err := config.Load(configDir)
		if err != nil {
			return err
		}
		userCfg = cfg

		if err := logging.Initialize(configDir, debugFlag || cfg.DebugMode); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		logging.Boot("ankicli %s starting, config dir %s", version, configDir)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Close()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat assistant",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
}

var decksCmd = &cobra.Command{
	Use:   "decks",
	Short: "List all decks with card counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connectAnki(cmd.Context())
		if err != nil {
			return err
		}
		decks, err := client.GetDecks(cmd.Context())
		if err != nil {
			return err
		}
		if len(decks) == 0 {
			fmt.Println("No decks found.")
			return nil
		}
		for _, d := range decks {
			fmt.Printf("%-40s New: %-5d Learn: %-5d Review: %-5d\n",
				d.Name, d.NewCount, d.Learning, d.Review)
		}
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the collection with AnkiWeb",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connectAnki(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println("Syncing with AnkiWeb...")
		if err := client.Sync(cmd.Context()); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("✓ Sync completed"))
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search cards with Anki query syntax",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		client, err := connectAnki(cmd.Context())
		if err != nil {
			return err
		}
		cards, err := client.SearchCards(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}
		if len(cards) == 0 {
			fmt.Println("No cards found.")
			return nil
		}
		for _, c := range cards {
			front := strings.TrimSpace(strings.ReplaceAll(c.Front, "\n", " "))
			if len(front) > 70 {
				front = front[:70] + "..."
			}
			fmt.Printf("%d  %s\n", c.NoteID, front)
		}
		fmt.Println(dimStyle.Render(fmt.Sprintf("%d card(s)", len(cards))))
		return nil
	},
}

var createDeckCmd = &cobra.Command{
	Use:   "create-deck <name>",
	Short: "Create a new deck (use :: for subdecks)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connectAnki(cmd.Context())
		if err != nil {
			return err
		}
		deckID, err := client.CreateDeck(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Deck '%s' created (ID: %d)\n", args[0], deckID)
		return nil
	},
}

var modelCmd = &cobra.Command{
	Use:   "model [model-id]",
	Short: "Show or change the main Claude model",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			printModels(userCfg.MainModel)
			return nil
		}

		choice, err := resolveModelID(args[0])
		if err != nil {
			return err
		}
		userCfg.MainModel = choice
		if err := userCfg.Save(configDir); err != nil {
			return err
		}
		spec := config.LookupModel(choice)
		fmt.Printf("Switched to %s (%s)\n", spec.Name, choice)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ankicli version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ankicli %s\n", version)
	},
}

// connectAnki builds the AnkiConnect client and verifies the connection.
func connectAnki(ctx context.Context) (*anki.Client, error) {
	client := anki.NewClient(userCfg.AnkiConnectURL)
	if !client.Ping(ctx) {
		return nil, fmt.Errorf("cannot connect to Anki at %s; make sure Anki is running with AnkiConnect installed", userCfg.AnkiConnectURL)
	}
	return client, nil
}

// printModels lists the known models, marking the current one.
func printModels(current string) {
	spec := config.LookupModel(current)
	fmt.Printf("Current model: %s (%s)\n", spec.Name, current)
	fmt.Printf("  Context window: %s tokens\n", formatTokens(spec.ContextWindow))
	fmt.Printf("  Max output: %s tokens\n\n", formatTokens(spec.MaxOutputTokens))

	fmt.Println("Available models:")
	for i, id := range config.ModelIDs() {
		info := config.ClaudeModels[id]
		marker := ""
		if id == current {
			marker = successStyle.Render("  <-- current")
		}
		fmt.Printf("  %d. %s (%s)  context=%dK  output=%dK%s\n",
			i+1, info.Name, id, info.ContextWindow/1000, info.MaxOutputTokens/1000, marker)
	}
}

// resolveModelID accepts a list index, an exact ID, or a unique substring.
func resolveModelID(choice string) (string, error) {
	ids := config.ModelIDs()

	if idx, err := strconv.Atoi(choice); err == nil {
		if idx >= 1 && idx <= len(ids) {
			return ids[idx-1], nil
		}
		return "", fmt.Errorf("invalid choice, pick 1-%d", len(ids))
	}

	if _, ok := config.ClaudeModels[choice]; ok {
		return choice, nil
	}

	var matches []string
	for _, id := range ids {
		if strings.Contains(strings.ToLower(id), strings.ToLower(choice)) {
			matches = append(matches, id)
		}
	}
	sort.Strings(matches)
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("unknown model %q, use 'model' to see options", choice)
	default:
		return "", fmt.Errorf("ambiguous match: %s", strings.Join(matches, ", "))
	}
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "Enable debug logging")

	searchCmd.Flags().IntP("limit", "l", 20, "Maximum results to show")

	rootCmd.AddCommand(chatCmd, decksCmd, syncCmd, searchCmd, createDeckCmd, modelCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+err.Error()))
		os.Exit(1)
	}
}
