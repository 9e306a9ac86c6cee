package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sidlabs/docchat/pkg/agent"
	"github.com/sidlabs/docchat/pkg/bus"
	"github.com/sidlabs/docchat/pkg/channels"
	"github.com/sidlabs/docchat/pkg/config"
	"github.com/sidlabs/docchat/pkg/factcheck"
	"github.com/sidlabs/docchat/pkg/session"
	"github.com/sidlabs/docchat/pkg/tools"
)

func executeCLI() error {
	return buildRootCommand().Execute()
}

func buildRootCommand() *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   appName,
		Short: "Chat with your documents, with tools, memory, and provider routing",
		Long: strings.TrimSpace(`docchat is a document-grounded chat assistant.

Ingest text, markdown, or PDF files, then chat over them locally or through
the Discord gateway. Ships with weather, web fetch, and web search tools,
plus a standalone fact checker.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")

	root.AddCommand(newOnboardCommand())
	root.AddCommand(newChatCommand())
	root.AddCommand(newAskCommand())
	root.AddCommand(newIngestCommand())
	root.AddCommand(newFactcheckCommand())
	root.AddCommand(newWeatherCommand())
	root.AddCommand(newGatewayCommand())
	root.AddCommand(newSessionsCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion()
		},
	}
}

func newOnboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "onboard",
		Short:   "Initialize ~/.docchat configuration",
		Example: "  docchat onboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := getConfigPath()

			if _, err := os.Stat(configPath); err == nil {
				fmt.Printf("Config already exists at %s\n", configPath)
				fmt.Print("Overwrite? (y/n): ")
				reader := bufio.NewReader(os.Stdin)
				response, readErr := reader.ReadString('\n')
				if readErr != nil {
					fmt.Println("Aborted.")
					return nil
				}
				response = strings.ToLower(strings.TrimSpace(response))
				if response != "y" && response != "yes" {
					fmt.Println("Aborted.")
					return nil
				}
			}

			cfg := config.DefaultConfig()
			if err := config.SaveConfig(configPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			fmt.Printf("%s is ready!\n", appName)
			fmt.Println("\nNext steps:")
			fmt.Println("  1. Add your OpenAI API key to", configPath)
			fmt.Println("  2. Ingest documents: docchat ingest notes.md paper.pdf")
			fmt.Println("  3. Chat over them: docchat chat")
			fmt.Println("  4. (Gateway mode) Add a Discord bot token to channels.discord.token")
			return nil
		},
	}
}

func newIngestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Replace the document corpus with the given files",
		Long: "Load, embed, and index the given .txt, .md, or .pdf files. " +
			"Ingest replaces the previous corpus; a failed ingest leaves it untouched.",
		Example: "  docchat ingest notes.md\n  docchat ingest docs/*.pdf",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			retriever, err := newRetriever(cfg)
			if err != nil {
				return err
			}

			count, err := retriever.Ingest(cmd.Context(), args)
			if err != nil {
				return err
			}
			fmt.Printf("Ingested %d document(s) into %s\n", count, cfg.VectorStorePath())
			return nil
		},
	}
}

func newChatCommand() *cobra.Command {
	var (
		message   string
		sessionID string
		noDocs    bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant over your ingested documents",
		Long: "Run an interactive chat session grounded on the ingested corpus, " +
			"or send a one-shot message with --message. Use --no-docs for plain chat " +
			"without retrieval.",
		Example: strings.Join([]string{
			"  docchat chat",
			"  docchat chat --message \"what does the paper conclude?\"",
			"  docchat chat --session work --no-docs",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, cleanup, err := newChatService(cfg, !noDocs)
			if err != nil {
				return err
			}
			defer cleanup()

			sessionKey := "cli:" + sessionID
			if strings.TrimSpace(message) != "" {
				return oneShot(cmd.Context(), svc, sessionKey, message)
			}
			return chatREPL(cmd.Context(), svc, cfg, sessionKey)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "One-shot prompt instead of interactive mode")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "default", "Session name for conversation continuity")
	cmd.Flags().BoolVar(&noDocs, "no-docs", false, "Skip document retrieval")

	return cmd
}

func newAskCommand() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:     "ask <question>",
		Short:   "Ask one question over the corpus and exit",
		Example: "  docchat ask \"what does the paper conclude?\"",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, cleanup, err := newChatService(cfg, true)
			if err != nil {
				return err
			}
			defer cleanup()

			return oneShot(cmd.Context(), svc, "cli:"+sessionID, args[0])
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "default", "Session name for conversation continuity")
	return cmd
}

func oneShot(ctx context.Context, svc *agent.ChatService, sessionKey, message string) error {
	reply, err := svc.Respond(ctx, sessionKey, message, nil)
	if err != nil {
		return err
	}
	fmt.Println(reply.Content)
	return nil
}

func chatREPL(ctx context.Context, svc *agent.ChatService, cfg *config.Config, sessionKey string) error {
	youPrefix := color.New(color.FgCyan, color.Bold).Sprintf("%s You: ", appName)
	botPrefix := color.New(color.FgGreen, color.Bold).Sprintf("%s ", appName)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          youPrefix,
		HistoryFile:     filepath.Join(os.TempDir(), ".docchat_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	fmt.Printf("%s interactive mode (provider: %s, memory: %s). Type /help for commands.\n\n",
		appName, cfg.Chat.Provider, cfg.Memory.Policy)

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		switch input {
		case "exit", "quit", "/quit":
			fmt.Println("Goodbye!")
			return nil
		case "/help":
			fmt.Println("  /clear   forget this session's history")
			fmt.Println("  /tokens  show history token usage (tokens policy)")
			fmt.Println("  /quit    leave")
			continue
		case "/clear":
			if err := svc.Clear(ctx, sessionKey); err != nil {
				fmt.Printf("Error: %v\n", err)
			} else {
				fmt.Println("Session cleared.")
			}
			continue
		case "/tokens":
			used, err := svc.TokensUsed(ctx, sessionKey)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
			} else {
				fmt.Printf("History window: %d tokens (budget %d)\n", used, cfg.Memory.TokenBudget)
			}
			continue
		}

		fmt.Print("\n" + botPrefix)
		streamed := false
		_, err = svc.Respond(ctx, sessionKey, input, func(delta string) {
			streamed = true
			fmt.Print(delta)
		})
		if err != nil {
			if streamed {
				fmt.Println()
			}
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Print("\n\n")
	}
}

func newFactcheckCommand() *cobra.Command {
	var maxResults int

	cmd := &cobra.Command{
		Use:     "factcheck <claim>",
		Short:   "Fact-check a claim against web search results",
		Example: "  docchat factcheck \"The Eiffel Tower was completed in 1889\"",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			provider, err := newProvider(cfg)
			if err != nil {
				return err
			}

			if maxResults <= 0 {
				maxResults = cfg.Tools.Search.MaxResults
			}
			svc := factcheck.NewService(provider, tools.NewDuckDuckGoSearchProvider(), cfg.Chat.Model, maxResults)

			report, err := svc.Check(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Claim: %s\n", report.Claim)
			fmt.Printf("Verdict: %s\n", colorVerdict(report.Verdict))
			fmt.Printf("\n%s\n", report.Explanation)
			if len(report.Sources) > 0 {
				fmt.Println("\nSources:")
				for _, src := range report.Sources {
					fmt.Printf("  - %s\n    %s\n", src.Title, src.URL)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&maxResults, "results", "n", 0, "Search results to consider (default from config)")
	return cmd
}

func colorVerdict(v factcheck.Verdict) string {
	switch v {
	case factcheck.VerdictTrue:
		return color.GreenString(string(v))
	case factcheck.VerdictFalse:
		return color.RedString(string(v))
	case factcheck.VerdictPartlyTrue:
		return color.YellowString(string(v))
	default:
		return color.WhiteString(string(v))
	}
}

func newWeatherCommand() *cobra.Command {
	var unit string

	cmd := &cobra.Command{
		Use:     "weather <location>",
		Short:   "Look up current weather directly, without the model",
		Example: "  docchat weather Paris\n  docchat weather \"Syracuse, NY\" --unit fahrenheit",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			tool := tools.NewWeatherTool(cfg.Tools.Weather.APIKey, cfg.Tools.Weather.Unit)
			toolArgs := map[string]interface{}{"location": args[0]}
			if unit != "" {
				toolArgs["unit"] = unit
			}

			result := tool.Execute(cmd.Context(), toolArgs)
			if result.IsError {
				return errors.New(result.ForLLM)
			}
			fmt.Println(result.ForLLM)
			return nil
		},
	}

	cmd.Flags().StringVarP(&unit, "unit", "u", "", "Temperature unit (celsius or fahrenheit)")
	return cmd
}

func newSessionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List stored chat sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := session.NewStore(cfg.SessionDBPath())
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("No sessions.")
				return nil
			}

			fmt.Printf("Sessions (%d):\n", len(sessions))
			for _, s := range sessions {
				fmt.Printf("  %s  %d message(s), updated %s\n",
					s.Key, s.MessageCount, s.UpdatedAt.Format("2006-01-02 15:04"))
				if s.Summary != "" {
					fmt.Printf("      %s\n", s.Summary)
				}
			}
			return nil
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			check := func(ok bool) string {
				if ok {
					return "✓"
				}
				return "not set"
			}

			configPath := getConfigPath()
			fmt.Printf("%s %s\n\n", appName, formatVersion())
			if _, err := os.Stat(configPath); err == nil {
				fmt.Println("Config:", configPath, "✓")
			} else {
				fmt.Println("Config:", configPath, "✗ (run: docchat onboard)")
			}
			fmt.Println("Data dir:", cfg.DataDirPath())
			fmt.Printf("Provider: %s (model %s)\n", cfg.Chat.Provider, cfg.Chat.Model)
			fmt.Printf("Memory policy: %s\n", cfg.Memory.Policy)
			fmt.Printf("Retrieval backend: %s\n", cfg.Retrieval.Backend)
			fmt.Println()

			apiReady := strings.TrimSpace(cfg.Providers.OpenAI.APIKey) != "" ||
				strings.TrimSpace(cfg.Providers.Anthropic.APIKey) != "" ||
				strings.TrimSpace(cfg.Providers.Gemini.APIKey) != ""
			discordReady := strings.TrimSpace(cfg.Channels.Discord.Token) != ""
			weatherReady := strings.TrimSpace(cfg.Tools.Weather.APIKey) != ""

			fmt.Println("Provider API key:", check(apiReady))
			fmt.Println("Weather API key:", check(weatherReady))
			fmt.Println("Discord token:", check(discordReady))
			fmt.Println("Chat ready:", check(apiReady))
			fmt.Println("Gateway ready:", check(apiReady && discordReady))
			return nil
		},
	}
}

func newGatewayCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "gateway",
		Short:   "Run the Discord gateway",
		Long:    "Connect the configured channels and answer messages through the bus.",
		Example: "  docchat gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Channels.Discord.Token) == "" {
				return fmt.Errorf("channels.discord.token is required in %s or DOCCHAT_CHANNELS_DISCORD_TOKEN", getConfigPath())
			}

			svc, cleanup, err := newChatService(cfg, true)
			if err != nil {
				return err
			}
			defer cleanup()

			msgBus := bus.NewMessageBus()
			defer msgBus.Close()

			manager, err := channels.NewManager(cfg, msgBus)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if err := manager.StartAll(ctx); err != nil {
				return err
			}
			go agent.NewGateway(msgBus, svc).Run(ctx)

			fmt.Printf("✓ Gateway started (channels: %s)\n", strings.Join(manager.Running(), ", "))
			fmt.Println("Press Ctrl+C to stop")

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt)
			<-sigChan

			fmt.Println("\nShutting down...")
			cancel()
			manager.StopAll(context.Background())
			fmt.Println("✓ Gateway stopped")
			return nil
		},
	}
}
