package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"ankicli/internal/chat"
	"ankicli/internal/config"
	"ankicli/internal/llm"
	"ankicli/internal/progress"
)

// runChat starts the interactive chat REPL.
func runChat(cmd *cobra.Command) error {
	ctx := cmd.Context()

	ankiClient, err := connectAnki(ctx)
	if err != nil {
		return err
	}

	apiKey := config.APIKey()
	if apiKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set; get your API key from https://console.anthropic.com/")
	}
	llmClient := llm.NewAnthropicClient(apiKey)

	assistant, err := chat.New(userCfg, configDir, llmClient, ankiClient)
	if err != nil {
		return err
	}

	printWelcome(assistant)

	if assistant.Restored() {
		age := assistant.ConversationAge()
		restored := successStyle.Render("✓ Restored previous conversation")
		if age != "" {
			restored += dimStyle.Render(" (from " + age + ")")
		}
		fmt.Println(restored)
		fmt.Println(contextBar(assistant.ContextStatus()))
		fmt.Println(dimStyle.Render(fmt.Sprintf("Messages: %d | Type 'new' to start fresh", assistant.MessageCount())))
		fmt.Println()
	}

	renderer := newMarkdownRenderer()
	reader := bufio.NewScanner(os.Stdin)
	reader.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Print(promptStyle.Render("You: "))
		if !reader.Scan() {
			fmt.Println("\n" + dimStyle.Render("Goodbye!"))
			return nil
		}
		input := strings.TrimSpace(reader.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "exit", "quit", "q":
			fmt.Println(dimStyle.Render("Goodbye!"))
			return nil

		case "clear", "new":
			if err := assistant.Reset(); err != nil {
				fmt.Println(errorStyle.Render("Error clearing conversation: " + err.Error()))
				continue
			}
			fmt.Println(dimStyle.Render("Conversation cleared. Starting fresh."))
			fmt.Println(dimStyle.Render("(Chat log preserved - use 'history' to view)"))
			fmt.Println()
			continue

		case "compact":
			fmt.Println(dimStyle.Render("Compacting conversation history..."))
			result, err := assistant.Compact(ctx)
			if err != nil {
				fmt.Println(errorStyle.Render("Error compacting: " + err.Error()))
			} else {
				fmt.Println(successStyle.Render("✓ " + result))
				fmt.Println(contextBar(assistant.ContextStatus()))
			}
			fmt.Println()
			continue

		case "status":
			status := assistant.ContextStatus()
			fmt.Printf("%s %s %s\n",
				headerStyle.Render("Model:"),
				successStyle.Render(status.ModelName),
				dimStyle.Render("("+status.Model+")"))
			fmt.Println(contextBar(status))
			fmt.Println(dimStyle.Render(fmt.Sprintf("Messages in history: %d", assistant.MessageCount())))
			fmt.Println()
			continue

		case "progress":
			summary := progress.LoadSummary(progress.SummaryPath(configDir))
			fmt.Println(summary.FormatText())
			fmt.Println()
			continue

		case "history":
			fmt.Println(assistant.Journal().FormatHistory(10))
			fmt.Println()
			continue
		}

		if strings.HasPrefix(strings.ToLower(input), "notes") {
			handleNotesCommand(assistant, input)
			fmt.Println()
			continue
		}

		if strings.HasPrefix(strings.ToLower(input), "model") {
			handleModelCommand(assistant, input)
			fmt.Println()
			continue
		}

		runExchange(cmd, assistant, renderer, input)
	}
}

// runExchange sends one user message and renders the resulting event stream.
func runExchange(cmd *cobra.Command, assistant *chat.Assistant, renderer *glamour.TermRenderer, input string) {
	fmt.Println()

	var (
		pendingText  string
		fullResponse strings.Builder
		toolCalls    []progress.ToolCall
		status       *chat.ContextStatus
		progressOpen bool
	)

	flushText := func() {
		if strings.TrimSpace(pendingText) == "" {
			pendingText = ""
			return
		}
		fmt.Println(headerStyle.Render("Assistant:"))
		fmt.Println(renderMarkdown(renderer, pendingText))
		pendingText = ""
	}

	closeProgress := func() {
		if progressOpen {
			fmt.Println()
			progressOpen = false
		}
	}

	for event := range assistant.Chat(cmd.Context(), input) {
		switch event.Kind {
		case chat.EventTextDelta:
			pendingText += event.Text
			fullResponse.WriteString(event.Text)

		case chat.EventToolUse:
			flushText()
			fmt.Println()
			fmt.Println(toolPanel(event.ToolName, event.ToolInput))
			toolCalls = append(toolCalls, progress.ToolCall{
				Name:    event.ToolName,
				Summary: summarizeToolInput(event.ToolName, event.ToolInput),
			})

		case chat.EventDelegateProgress:
			fmt.Print(progressLine(event.Progress))
			progressOpen = true
			if event.Progress.Completed == event.Progress.Total {
				closeProgress()
			}

		case chat.EventToolResult:
			closeProgress()
			fmt.Println(resultPanel(event.ToolName, event.ToolResult))
			fmt.Println()

		case chat.EventError:
			closeProgress()
			fmt.Println(warnStyle.Render(event.Text))

		case chat.EventContextStatus:
			s := event.Status
			status = &s
		}
	}

	closeProgress()
	flushText()

	if status != nil {
		fmt.Println(contextBar(*status))
	}

	if err := assistant.Journal().AddExchange(input, fullResponse.String(), toolCalls); err != nil {
		fmt.Println(dimStyle.Render("(failed to record exchange: " + err.Error() + ")"))
	}
	fmt.Println()
}

// printWelcome shows the startup panel with the command list.
func printWelcome(assistant *chat.Assistant) {
	body := headerStyle.Render("Anki Assistant") + "\n\n" +
		"Chat with Claude to manage your Anki flashcards.\n" +
		"Model: " + successStyle.Render(assistant.ModelName()) + dimStyle.Render(" ("+assistant.Model()+")") + "\n\n" +
		"Commands:\n" +
		"  history  - Show recent chat history\n" +
		"  progress - Show learning progress summary\n" +
		"  status   - Show context usage\n" +
		"  model    - Show or change the Claude model\n" +
		"  notes    - Show saved preferences\n" +
		"  compact  - Summarize history to free context\n" +
		"  clear    - Reset conversation\n" +
		"  new      - Start fresh (discard history)\n" +
		"  exit     - Quit"

	fmt.Println()
	fmt.Println(welcomeStyle.Render(body))
	fmt.Println()
}

// handleNotesCommand implements the notes / notes remove / notes clear
// subcommands over the per-tool preference notes.
func handleNotesCommand(assistant *chat.Assistant, input string) {
	parts := strings.Fields(input)
	cfg := assistant.Config()

	switch {
	case len(parts) == 1:
		if len(cfg.ToolNotes) == 0 {
			fmt.Println(dimStyle.Render("No saved preferences. Tell the assistant in chat (e.g., 'I prefer informal Spanish')."))
			return
		}
		fmt.Println(headerStyle.Render("Saved preferences:"))
		names := make([]string, 0, len(cfg.ToolNotes))
		for name := range cfg.ToolNotes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %s: %s\n", name, cfg.ToolNotes[name])
		}

	case strings.EqualFold(parts[1], "clear"):
		if len(cfg.ToolNotes) == 0 {
			fmt.Println(dimStyle.Render("No preferences to clear."))
			return
		}
		cfg.ToolNotes = map[string]string{}
		saveNotes(assistant)
		fmt.Println(successStyle.Render("All preferences cleared."))

	case strings.EqualFold(parts[1], "remove") && len(parts) >= 3:
		name := parts[2]
		if _, ok := cfg.ToolNotes[name]; !ok {
			fmt.Println(warnStyle.Render(fmt.Sprintf("No preference found for '%s'.", name)))
			return
		}
		delete(cfg.ToolNotes, name)
		saveNotes(assistant)
		fmt.Println(successStyle.Render(fmt.Sprintf("Preference removed for '%s'.", name)))

	default:
		fmt.Println(dimStyle.Render("Usage:"))
		fmt.Println("  notes               - Show all preferences")
		fmt.Println("  notes remove <tool> - Remove a preference")
		fmt.Println("  notes clear         - Clear all preferences")
		fmt.Println(dimStyle.Render("To add preferences, tell the assistant in chat (e.g., 'I prefer informal Spanish')."))
	}
}

func saveNotes(assistant *chat.Assistant) {
	if err := assistant.Config().Save(configDir); err != nil {
		fmt.Println(errorStyle.Render("Failed to save config: " + err.Error()))
	}
	assistant.ApplyToolNotes()
}

// handleModelCommand shows or switches the conversation model in-session.
func handleModelCommand(assistant *chat.Assistant, input string) {
	parts := strings.Fields(input)
	if len(parts) == 1 {
		printModels(assistant.Model())
		fmt.Println(dimStyle.Render("\nUsage: model <number> or model <model-id>"))
		return
	}

	choice, err := resolveModelID(parts[1])
	if err != nil {
		fmt.Println(errorStyle.Render(err.Error()))
		return
	}

	assistant.SetModel(choice)
	cfg := assistant.Config()
	cfg.MainModel = choice
	if err := cfg.Save(configDir); err != nil {
		fmt.Println(errorStyle.Render("Failed to save config: " + err.Error()))
	}

	spec := config.LookupModel(choice)
	fmt.Println(successStyle.Render("Switched to "+spec.Name) + dimStyle.Render(" ("+choice+")"))
	fmt.Printf("  Context: %s | Max output: %s\n",
		formatTokens(spec.ContextWindow), formatTokens(spec.MaxOutputTokens))
}
