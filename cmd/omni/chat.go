// Package main provides the omni CLI entry point.
// This file launches the interactive chat interface.
package main

import (
	"fmt"

	"omnichat/cmd/omni/chat"

	tea "github.com/charmbracelet/bubbletea"
)

// runInteractiveChat starts the full-screen chat TUI. The model does its
// own boot (logging, store, Gemini client) so a missing API key degrades
// to a visible notice instead of an exit before the screen comes up.
func runInteractiveChat() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p := tea.NewProgram(
		chat.New(cfg),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("chat interface error: %w", err)
	}

	// Quit paths inside the TUI already shut down; this covers the rest.
	if m, ok := final.(chat.Model); ok {
		m.Shutdown()
	}
	return nil
}
