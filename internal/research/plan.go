package research

import (
	"context"
	"encoding/json"
	"strings"

	"omnichat/internal/logging"
)

const planSystemPrompt = `You plan web research. Given a topic, reply with a JSON array of 3 to 5 short search queries that together cover the topic from different angles: background, current state, expert opinion, criticism, and outlook as appropriate. Reply with only the JSON array.`

const maxAngles = 5

// planAngles asks the model to break the query into search angles.
// If planning fails for any reason, the query itself is the one
// angle; a research run never dies in the planning stage.
func (a *Agent) planAngles(ctx context.Context, query string) []string {
	response, err := a.llm.Complete(ctx, planSystemPrompt, query)
	if err != nil {
		logging.ResearchDebug("plan angles: %v", err)
		return []string{query}
	}
	angles := parseAngles(response)
	if len(angles) == 0 {
		logging.ResearchDebug("planner reply had no usable angles: %s", shorten(response, 120))
		return []string{query}
	}
	logging.Research("planned %d angle(s): %s", len(angles), strings.Join(angles, " | "))
	return angles
}

// parseAngles pulls a JSON string array out of a model reply that may
// have prose or a code fence around it.
func parseAngles(response string) []string {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end == -1 || end <= start {
		return nil
	}

	var raw []string
	if err := json.Unmarshal([]byte(response[start:end+1]), &raw); err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var angles []string
	for _, angle := range raw {
		angle = strings.TrimSpace(angle)
		if angle == "" || seen[strings.ToLower(angle)] {
			continue
		}
		seen[strings.ToLower(angle)] = true
		angles = append(angles, angle)
		if len(angles) == maxAngles {
			break
		}
	}
	return angles
}
