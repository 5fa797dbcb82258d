// Package main implements session management CLI commands for omni.
// This file handles session listing, inspection, and deletion.
package main

import (
	"fmt"
	"strings"

	"omnichat/internal/logging"
	"omnichat/internal/memory"
	"omnichat/internal/store"

	"github.com/spf13/cobra"
)

var sessionsKind string

// sessionsCmd manages saved sessions
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved sessions",
	Long: `List and manage saved conversations. Every chat, research report,
video summary, and live transcript is a session.

Subcommands:
  list    - List saved sessions (default)
  show    - Print a session transcript
  delete  - Delete a session and its messages`,
	RunE: runSessionsList,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a session transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsCmd.PersistentFlags().StringVar(&sessionsKind, "kind", "", "Filter by kind: chat, research, youtube, live")
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	st, err := openSessionsStore()
	if err != nil {
		return err
	}
	defer st.Close()
	defer logging.CloseAll()

	sessions, err := st.ListSessions(sessionsKind, 50)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No saved sessions found.")
		return nil
	}

	fmt.Println("Saved Sessions")
	fmt.Println(strings.Repeat("─", 72))
	for _, s := range sessions {
		fmt.Printf("  %-36s  %-8s  %s  %s\n",
			s.ID, s.Kind, s.UpdatedAt.Format("2006-01-02 15:04"), s.Title)
	}
	fmt.Println(strings.Repeat("─", 72))
	fmt.Printf("Total: %d sessions\n", len(sessions))
	fmt.Println("\nUse: omni sessions show <session-id>")
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	st, err := openSessionsStore()
	if err != nil {
		return err
	}
	defer st.Close()
	defer logging.CloseAll()

	sess, err := st.GetSession(args[0])
	if err != nil {
		return fmt.Errorf("session %q not found. Use 'omni sessions list' to see available sessions", args[0])
	}
	msgs, err := st.Messages(sess.ID)
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}

	fmt.Printf("%s (%s, %s, %d messages)\n\n", sess.Title, sess.Kind, sess.Model, len(msgs))
	for _, msg := range msgs {
		speaker := "You"
		if msg.Role == store.RoleModel {
			speaker = "Omni"
		}
		if memory.IsSummary(msg.Content) {
			speaker = "Summary"
		}
		fmt.Printf("── %s ──\n%s\n\n", speaker, msg.Content)
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	st, err := openSessionsStore()
	if err != nil {
		return err
	}
	defer st.Close()
	defer logging.CloseAll()

	sess, err := st.GetSession(args[0])
	if err != nil {
		return fmt.Errorf("session %q not found", args[0])
	}
	if err := st.DeleteSession(sess.ID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	fmt.Printf("Deleted session %s (%s)\n", sess.ID, memory.Preview(sess.Title, 60))
	return nil
}

// openSessionsStore is openStore plus config loading, shared by the
// sessions subcommands.
func openSessionsStore() (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openStore(cfg)
}
