package convo

import (
	"strings"

	"github.com/antoniostano/recall/internal/genai"
	"github.com/antoniostano/recall/internal/history"
)

// BuildWindow turns stored history into the ordered context sent upstream:
// the most recent maxWindow turns, oldest first, empty-text turns skipped,
// user turns as role "user" and everything else as role "model".
//
// The provider answers the final entry, so the window always ends with a
// user turn carrying the just-submitted prompt; if history irregularities
// would leave anything else last, the prompt is appended.
func BuildWindow(turns []history.Turn, prompt string, maxWindow int) []genai.Content {
	if maxWindow > 0 && len(turns) > maxWindow {
		turns = turns[len(turns)-maxWindow:]
	}

	contents := make([]genai.Content, 0, len(turns)+1)
	for _, turn := range turns {
		if strings.TrimSpace(turn.Text) == "" {
			continue
		}
		role := genai.RoleModel
		if turn.Sender == history.SenderUser {
			role = genai.RoleUser
		}
		contents = append(contents, genai.Text(role, turn.Text))
	}

	if !endsWithPrompt(contents, prompt) {
		contents = append(contents, genai.Text(genai.RoleUser, prompt))
	}
	return contents
}

func endsWithPrompt(contents []genai.Content, prompt string) bool {
	if len(contents) == 0 {
		return false
	}
	last := contents[len(contents)-1]
	return last.Role == genai.RoleUser && len(last.Parts) > 0 && last.Parts[0].Text == prompt
}
