package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arkshorizon/mailmind/internal/config"
	"github.com/arkshorizon/mailmind/internal/credential"
	"github.com/arkshorizon/mailmind/internal/httpserver"
	"github.com/arkshorizon/mailmind/internal/inference"
	"github.com/arkshorizon/mailmind/internal/intent"
	"github.com/arkshorizon/mailmind/internal/mailbox"
	"github.com/arkshorizon/mailmind/internal/pipeline"
	"github.com/arkshorizon/mailmind/internal/relevance"
)

var (
	bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	reportStyle = lipgloss.NewStyle().PaddingLeft(2)
	faintStyle  = lipgloss.NewStyle().Faint(true)
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "mailmind",
		Short:        "Find the inbox messages that match a natural-language query",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", config.DefaultPath(), "path to the config file")

	rootCmd.AddCommand(newAuthCmd(), newAskCmd(), newChatCmd(), newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func newLogger() (*zap.Logger, error) {
	// The log carries the technical causes; stdout stays human-readable.
	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = []string{"stderr"}
	return logCfg.Build()
}

// resolveSecret prefers the environment, then the keyring.
func resolveSecret(envVar, key string) (string, error) {
	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}
	v, err := credential.Get(key)
	if err != nil {
		return "", fmt.Errorf(
			"no %s in $%s or the keyring; run 'mailmind auth' first", key, envVar)
	}
	return v, nil
}

func buildOrchestrator(cfg *config.Config, logger *zap.Logger) (*pipeline.Orchestrator, error) {
	if cfg.IMAP.Username == "" {
		return nil, fmt.Errorf("no IMAP account configured; run 'mailmind auth' first")
	}
	password, err := resolveSecret("MAILMIND_IMAP_PASSWORD", credential.KeyIMAPPassword)
	if err != nil {
		return nil, err
	}
	apiKey, err := resolveSecret("MAILMIND_API_KEY", credential.KeyInferenceAPIKey)
	if err != nil {
		return nil, err
	}

	retriever := mailbox.NewRetriever(
		mailbox.Credentials{
			Host:     cfg.IMAP.Host,
			Port:     cfg.IMAP.Port,
			Username: cfg.IMAP.Username,
			Password: password,
		},
		mailbox.SessionOptions{
			BodyLimit: cfg.Retrieval.BodyLimit,
			Logger:    logger,
		},
	)

	completer := inference.NewClient(apiKey,
		inference.WithBaseURL(cfg.Inference.BaseURL),
		inference.WithTimeout(time.Duration(cfg.Inference.TimeoutSec)*time.Second),
	)

	return pipeline.New(
		retriever,
		intent.NewExtractor(completer, cfg.Inference.Model, logger),
		relevance.NewFilter(completer, cfg.Inference.Model, cfg.Retrieval.PreviewLimit, logger),
		pipeline.Options{
			FetchLimit:       cfg.Retrieval.Limit,
			RetrievalTimeout: time.Duration(cfg.Retrieval.TimeoutSec) * time.Second,
			Logger:           logger,
		},
	), nil
}

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Store the IMAP password and inference API key in the system keyring",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			username := cfg.IMAP.Username
			var password, apiKey string

			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().
					Title("IMAP account").
					Placeholder("you@example.com").
					Value(&username),
				huh.NewInput().
					Title("IMAP app password").
					EchoMode(huh.EchoModePassword).
					Value(&password),
				huh.NewInput().
					Title("Inference API key").
					EchoMode(huh.EchoModePassword).
					Value(&apiKey),
			))
			if err := form.Run(); err != nil {
				return err
			}

			if username == "" {
				return fmt.Errorf("an IMAP account is required")
			}
			if password != "" {
				if err := credential.Set(credential.KeyIMAPPassword, password); err != nil {
					return err
				}
			}
			if apiKey != "" {
				if err := credential.Set(credential.KeyInferenceAPIKey, apiKey); err != nil {
					return err
				}
			}

			cfg.IMAP.Username = username
			if err := config.Save(path, cfg); err != nil {
				return err
			}

			fmt.Println("Credentials stored.")
			return nil
		},
	}
}

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [query]",
		Short: "Run a single query and print the report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			orch, err := buildOrchestrator(cfg, logger)
			if err != nil {
				return err
			}

			fmt.Println(orch.ProcessRequest(cmd.Context(), strings.Join(args, " ")))
			return nil
		},
	}
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactively query the inbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			orch, err := buildOrchestrator(cfg, logger)
			if err != nil {
				return err
			}

			fmt.Println(bannerStyle.Render("MailMind — Intelligent Email Assistant"))
			fmt.Println(faintStyle.Render("Type a query, or 'exit' to quit."))

			for {
				var query string
				prompt := huh.NewInput().
					Title("Email query").
					Placeholder("emails from Alice about the budget").
					Value(&query)
				if err := prompt.Run(); err != nil {
					// Ctrl-C or closed input ends the session.
					fmt.Println("Goodbye!")
					return nil
				}

				switch strings.ToLower(strings.TrimSpace(query)) {
				case "exit", "quit", "q", "bye":
					fmt.Println("Goodbye!")
					return nil
				}

				fmt.Println(faintStyle.Render("Processing your request..."))
				report := orch.ProcessRequest(cmd.Context(), query)
				fmt.Println(reportStyle.Render(report))
			}
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the single-page query form over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			orch, err := buildOrchestrator(cfg, logger)
			if err != nil {
				return err
			}

			return httpserver.New(orch, logger).Run(cfg.Server.Addr)
		},
	}
}
