// First-paint banner and the post-boot connectivity check.
//
// After boot the chat fires one tiny model call to verify the API key,
// network, and model are actually working. The call is non-blocking
// and short; a failure shows a clear warning while slash commands and
// session browsing keep working.
package chat

import (
	"context"
	"fmt"
	"time"

	"omnichat/internal/config"
	"omnichat/internal/logging"

	tea "github.com/charmbracelet/bubbletea"
)

// welcomeBanner is the first thing a user sees in an empty session.
func welcomeBanner(cfg *config.Config) string {
	return fmt.Sprintf(`Welcome to **omni** (%s).

Type a message to start chatting, or try:

- **/search** latest Go release notes
- **/research** a topic worth twenty browser tabs
- **/youtube** followed by a video link
- **Ctrl+A** to attach an image, audio, or PDF

Everything is saved locally; **Ctrl+S** browses past sessions and
**/help** lists the rest.`, cfg.Gemini.Model)
}

// bootFailureNotice explains a failed boot in terms the user can act on.
func bootFailureNotice(err error) string {
	return fmt.Sprintf(`The assistant could not start: %v

Set GEMINI_API_KEY in the environment or run "omni config init" and
add the key to the generated file. Saved sessions are still browsable
with Ctrl+S once the store opens.`, err)
}

// healthCheck fires a single short completion to confirm the model is
// reachable, reporting round-trip latency.
//
//   - 10s timeout: generous for cold starts, short enough not to hang the UX
//   - parent is shutdownCtx so quitting cancels it cleanly
func (m Model) healthCheck() tea.Cmd {
	if m.back == nil {
		return nil
	}
	client := m.back.client
	parent := m.shutdownCtx
	model := m.cfg.Gemini.Model

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, 10*time.Second)
		defer cancel()

		start := time.Now()
		_, err := client.Complete(ctx, "", "Reply with the single word: ready")
		latency := time.Since(start)
		if err != nil {
			logging.Get(logging.CategoryBoot).Warn("model health check failed: model=%s err=%v", model, err)
			return healthMsg{err: err}
		}
		logging.BootDebug("model health check ok: model=%s latency=%s", model, latency)
		return healthMsg{latency: latency}
	}
}
