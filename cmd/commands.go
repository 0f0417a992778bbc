package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/gennadis/ragdesk/internal/attach"
	"github.com/gennadis/ragdesk/internal/chat"
	"github.com/gennadis/ragdesk/internal/render"
	"github.com/gennadis/ragdesk/internal/theme"
)

var errUnknownSession = errors.New("no saved chat with that id")

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"chats"},
	Short:   "Inspect and manage saved chats",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved chats, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := application.Sessions.ListChats(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No chat history yet")
			return nil
		}
		now := time.Now()
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("ID", "TITLE", "SAVED", "MESSAGES", "FILES")
		for _, s := range list {
			t.Row(s.ID, s.Title, render.TimeAgo(s.SavedAt(), now),
				fmt.Sprint(len(s.Messages)), fmt.Sprint(len(s.Files)))
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.String())
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a saved chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(cmd, args[0])
		if err != nil {
			return err
		}
		printTranscript(cmd.OutOrStdout(), s)
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := application.Sessions.DeleteChat(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Deleted", args[0])
		return nil
	},
}

var exportPath string

var sessionsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a saved chat as an HTML page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(cmd, args[0])
		if err != nil {
			return err
		}
		if exportPath == "" || exportPath == "-" {
			return render.Export(cmd.OutOrStdout(), s)
		}
		f, err := os.Create(exportPath)
		if err != nil {
			return err
		}
		if err := render.Export(f, s); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	},
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Manage documents held by the service",
}

var filesListCmd = &cobra.Command{
	Use:   "list [search]",
	Short: "List documents, optionally filtered by name",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib := application.Library
		if err := lib.Load(cmd.Context()); err != nil {
			return err
		}
		term := ""
		if len(args) == 1 {
			term = args[0]
		}
		files := lib.Search(term)
		if len(files) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No files uploaded yet")
			return nil
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("NAME", "DISPLAY NAME")
		for _, f := range files {
			t.Row(f.Name, f.Label())
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.String())
		return nil
	},
}

var filesUploadCmd = &cobra.Command{
	Use:   "upload <path>...",
	Short: "Upload documents to the library without attaching them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		summary := application.Library.Upload(cmd.Context(), sourcesFor(args), printProgress(out))
		fmt.Fprintf(out, "Uploaded %d, failed %d\n", summary.Uploaded, summary.Failed)
		if summary.Failed > 0 {
			return fmt.Errorf("%d of %d uploads failed", summary.Failed, len(args))
		}
		return nil
	},
}

var filesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a document from the service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib := application.Library
		if err := lib.Load(cmd.Context()); err != nil {
			return err
		}
		if err := lib.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Deleted", args[0])
		return nil
	},
}

var filesViewCmd = &cobra.Command{
	Use:   "view <name>",
	Short: "Print the URL where a document can be viewed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), application.Library.ViewURL(args[0]))
		return nil
	},
}

var (
	askSession string
	askAttach  []string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask one question and print the answer",
	Long: `Ask one question without opening the chat view. The exchange is saved as
a chat; use --session to continue an existing one and --attach to upload
documents into it first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if askSession != "" {
			ok, err := application.Sessions.LoadChat(ctx, askSession)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %s", errUnknownSession, askSession)
			}
		}
		if len(askAttach) > 0 {
			for _, r := range application.Attach.UploadBatch(ctx, sourcesFor(askAttach), printProgress(cmd.ErrOrStderr())) {
				if r.Err != nil {
					return fmt.Errorf("upload %s: %w", r.Name, r.Err)
				}
			}
		}

		reply, err := application.Exchange.Send(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(out, plainFormatter().Format(reply.Message.Content))
		if reply.SaveErr != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "Chat could not be saved:", reply.SaveErr)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "session:", application.Sessions.ActiveID())
		if reply.Failed() {
			return reply.Err
		}
		return nil
	},
}

var themeCmd = &cobra.Command{
	Use:       "theme [default|soft-pink|cool-gray|toggle]",
	Short:     "Show or change the colour theme",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{string(theme.Default), string(theme.SoftPink), string(theme.CoolGray), "toggle"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		prefs := application.Themes
		var (
			name theme.Name
			err  error
		)
		switch {
		case len(args) == 0:
			name, err = prefs.Current(ctx)
		case args[0] == "toggle":
			name, err = prefs.Toggle(ctx)
		default:
			name = theme.Name(args[0])
			err = prefs.Set(ctx, name)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), name)
		return nil
	},
}

func init() {
	sessionsExportCmd.Flags().StringVarP(&exportPath, "output", "o", "", "write the page to this file instead of stdout")
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd, sessionsExportCmd)

	filesCmd.AddCommand(filesListCmd, filesUploadCmd, filesDeleteCmd, filesViewCmd)

	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "continue the saved chat with this id")
	askCmd.Flags().StringSliceVarP(&askAttach, "attach", "a", nil, "upload and attach these files before asking")
}

func loadSession(cmd *cobra.Command, id string) (*chat.Session, error) {
	ok, err := application.Sessions.LoadChat(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownSession, id)
	}
	return application.Sessions.Active(), nil
}

func sourcesFor(paths []string) []attach.Source {
	sources := make([]attach.Source, 0, len(paths))
	for _, p := range paths {
		sources = append(sources, attach.FromPath(p))
	}
	return sources
}

func printProgress(w io.Writer) func(attach.Progress) {
	return func(p attach.Progress) {
		switch p.Status {
		case attach.StatusSucceeded:
			fmt.Fprintf(w, "✓ %s\n", p.Name)
		case attach.StatusFailed:
			fmt.Fprintf(w, "✗ %s: %v\n", p.Name, p.Err)
		}
	}
}

func plainFormatter() render.Formatter {
	return render.Terminal(render.TerminalStyles{
		Bold:     lipgloss.NewStyle().Bold(true),
		Citation: lipgloss.NewStyle().Underline(true),
		Code:     lipgloss.NewStyle().Faint(true),
	})
}

func printTranscript(w io.Writer, s *chat.Session) {
	f := plainFormatter()
	fmt.Fprintf(w, "%s  (%s)\n", s.Title, s.SavedAt().Format(time.DateTime))
	if len(s.Files) > 0 {
		names := make([]string, 0, len(s.Files))
		for _, file := range s.Files {
			names = append(names, file.Label())
		}
		fmt.Fprintf(w, "files: %s\n", strings.Join(names, ", "))
	}
	for _, m := range s.Messages {
		fmt.Fprintf(w, "\n[%s]\n%s\n", m.Role, f.Format(m.Content))
	}
}
