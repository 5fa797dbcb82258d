// View rendering for the chat interface: history, header, footer,
// attachment bar, and the boot screen.
package chat

import (
	"fmt"
	"strings"
	"time"

	"omnichat/internal/memory"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) renderHistory() string {
	var sb strings.Builder

	for _, msg := range m.history {
		switch msg.Role {
		case "user":
			sb.WriteString(m.styles.UserLabel.MarginTop(1).Render("You") + "\n")
			sb.WriteString(m.styles.UserInput.Render(msg.Content))
			sb.WriteString("\n\n")

		case "notice":
			sb.WriteString(m.renderNotice(msg.Content))

		default: // "assistant"
			label := m.styles.Bold.
				Foreground(m.styles.Theme.Accent).
				MarginTop(1)
			sb.WriteString(label.Render("Omni") + "\n")
			sb.WriteString(m.safeRenderMarkdown(msg.Content))
			sb.WriteString("\n")
		}
	}

	// In-flight reply streams below the history until it completes.
	if m.isLoading && m.streamingReply != "" {
		label := m.styles.Bold.
			Foreground(m.styles.Theme.Accent).
			MarginTop(1)
		sb.WriteString(label.Render("Omni") + "\n")
		sb.WriteString(m.safeRenderMarkdown(m.streamingReply))
		sb.WriteString("\n")
	}

	return sb.String()
}

// renderNotice formats a transient system line. Error notices get the
// destructive color; everything else stays muted.
func (m Model) renderNotice(content string) string {
	style := m.styles.Muted
	if strings.HasPrefix(content, "Error:") {
		style = m.styles.Error
	}
	// Multi-line notices (help tables, compaction reports) still read
	// better through the markdown renderer.
	if strings.Contains(content, "\n") {
		return style.Render("•") + " " + m.safeRenderMarkdown(content) + "\n"
	}
	return fmt.Sprintf("  %s %s\n", style.Render("•"), style.Render(content))
}

// safeRenderMarkdown renders markdown with panic recovery.
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			// If glamour panics, return plain text
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return rendered
		}
	}
	return content
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.isBooting {
		return m.renderBootScreen()
	}

	if m.viewMode == ListView {
		title := m.styles.Header.Render(" Saved sessions ")
		hint := m.styles.Muted.Render("  Enter: open   Esc: back")
		return lipgloss.JoinVertical(lipgloss.Left, title, hint, m.list.View())
	}

	if m.viewMode == FilePickerView {
		title := m.styles.Header.Render(" Attach a file ")
		hint := m.styles.Muted.Render("  Enter: attach   Esc: back")
		return lipgloss.JoinVertical(lipgloss.Left, title, hint, m.filepicker.View())
	}

	header := m.renderHeader()
	chatView := m.viewport.View()

	sections := []string{header, chatView}
	if bar := m.renderStagedBar(); bar != "" {
		sections = append(sections, bar)
	}
	sections = append(sections, m.styles.InputBox.Render(m.textarea.View()), m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	title := m.styles.Header.Render(" omni ")
	model := m.styles.Badge.Render(m.cfg.Gemini.Model)

	var status string
	if m.isLoading {
		msg := m.statusMessage
		if msg == "" {
			msg = "thinking..."
		}
		status = lipgloss.JoinHorizontal(lipgloss.Center, m.spinner.View(), " ", m.styles.Muted.Render(msg))
	} else if m.statusMessage != "" {
		status = m.styles.Muted.Render(m.statusMessage)
	} else {
		status = m.styles.Success.Render("ready")
	}

	headerLine := lipgloss.JoinHorizontal(lipgloss.Center, title, " ", model, "  ", status)
	session := m.styles.Muted.Render(" " + memory.Preview(m.sessionTitle, 60))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		headerLine,
		session,
		m.styles.RenderDivider(m.width),
	)
}

// renderStagedBar shows attachments waiting to ride with the next
// message. Empty when nothing is staged.
func (m Model) renderStagedBar() string {
	if len(m.staged) == 0 {
		return ""
	}
	chips := make([]string, 0, len(m.staged))
	for _, f := range m.staged {
		chips = append(chips, m.styles.Attachment.Render(
			fmt.Sprintf("%s %s", f.Kind, f.OriginalName)))
	}
	label := m.styles.Muted.Render(" next message carries: ")
	return lipgloss.JoinHorizontal(lipgloss.Center, label, strings.Join(chips, " "))
}

func (m Model) renderFooter() string {
	ctxIndicator := fmt.Sprintf("ctx %s", formatTokens(m.tokensUsed))
	if budget := m.cfg.Memory.MaxContextTokens; budget > 0 {
		pct := float64(m.tokensUsed) / float64(budget) * 100
		ctxIndicator = fmt.Sprintf("ctx %.0f%%", pct)
	}

	parts := []string{
		fmt.Sprintf("%d turns", m.turnCount),
		ctxIndicator,
	}
	if len(m.staged) > 0 {
		parts = append(parts, fmt.Sprintf("%d staged", len(m.staged)))
	}
	parts = append(parts,
		time.Now().Format("15:04"),
		"Ctrl+N: new | Ctrl+S: sessions | Ctrl+A: attach | /help",
	)

	return m.styles.Footer.MarginTop(1).Render(strings.Join(parts, " | "))
}

func (m Model) renderBootScreen() string {
	title := m.styles.Header.Render(" omni ")
	subtitle := m.styles.Badge.Render("Starting up")
	detail := m.styles.Muted.Render("Opening the session store and waking the model...")

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		title,
		"\n",
		m.spinner.View(),
		"\n",
		subtitle,
		detail,
	)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

// formatSize renders a byte count the way people read file sizes.
func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}

// formatTokens shortens a token count for the footer.
func formatTokens(n int) string {
	if n >= 1000 {
		return fmt.Sprintf("%.1fk tokens", float64(n)/1000)
	}
	return fmt.Sprintf("%d tokens", n)
}
