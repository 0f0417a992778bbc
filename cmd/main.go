package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/gennadis/ragdesk/internal/app"
	"github.com/gennadis/ragdesk/internal/config"
	"github.com/gennadis/ragdesk/internal/logging"
	"github.com/gennadis/ragdesk/internal/tui"
)

var (
	configPath string
	logLevel   string

	application *app.App
	logFile     *os.File
)

var rootCmd = &cobra.Command{
	Use:   "ragdesk",
	Short: "Chat with your documents from the terminal",
	Long: `ragdesk is a terminal client for a document question-answering service.
Upload documents, attach them to a conversation and ask questions about them.
Conversations are saved locally and can be resumed later.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
	RunE:               runChat,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the chat view",
	RunE:  runChat,
}

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Browse, upload and delete documents held by the service",
	RunE: func(cmd *cobra.Command, args []string) error {
		m := tui.NewLibraryModel(cmd.Context(), application.Library, application.Themes)
		_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $RAGDESK_CONFIG or the user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(chatCmd, libraryCmd, sessionsCmd, filesCmd, askCmd, themeCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logFile, err = logging.OpenFile(cfg.LogFile)
	if err != nil {
		return err
	}
	logging.Init(cfg.LogLevel, logFile)
	slog.Info("starting", "command", cmd.CommandPath(), "backend", cfg.StoreBackend, "service", cfg.ServiceURL)

	application, err = app.New(cfg)
	return err
}

func teardown(cmd *cobra.Command, args []string) error {
	if application != nil {
		if err := application.Close(); err != nil {
			slog.Error("Failed to close storage", "error", err)
		}
	}
	if logFile != nil {
		return logFile.Close()
	}
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	changes, _ := application.Watch(ctx)

	m := tui.NewChatModel(ctx, tui.ChatDeps{
		Sessions: application.Sessions,
		Exchange: application.Exchange,
		Attach:   application.Attach,
		Themes:   application.Themes,
		ViewURL:  application.Client.ViewURL,
		Changes:  changes,
	})
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
