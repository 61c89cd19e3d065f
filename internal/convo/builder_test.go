package convo

import (
	"testing"

	"github.com/antoniostano/recall/internal/genai"
	"github.com/antoniostano/recall/internal/history"
)

func TestBuildWindowMapsRoles(t *testing.T) {
	turns := []history.Turn{
		{Sender: history.SenderUser, Text: "hello"},
		{Sender: history.SenderAI, Text: "hi"},
		{Sender: history.SenderUser, Text: "how are you?"},
	}

	contents := BuildWindow(turns, "how are you?", 60)
	if len(contents) != 3 {
		t.Fatalf("len(contents) = %d, want 3", len(contents))
	}
	wantRoles := []string{genai.RoleUser, genai.RoleModel, genai.RoleUser}
	for i, c := range contents {
		if c.Role != wantRoles[i] {
			t.Fatalf("contents[%d].Role = %q, want %q", i, c.Role, wantRoles[i])
		}
	}
}

func TestBuildWindowTruncatesToMostRecent(t *testing.T) {
	turns := []history.Turn{
		{Sender: history.SenderUser, Text: "old"},
		{Sender: history.SenderAI, Text: "older reply"},
		{Sender: history.SenderUser, Text: "recent"},
	}

	contents := BuildWindow(turns, "recent", 2)
	if len(contents) != 2 {
		t.Fatalf("len(contents) = %d, want 2", len(contents))
	}
	if contents[0].Parts[0].Text != "older reply" {
		t.Fatalf("contents[0] = %q, want %q", contents[0].Parts[0].Text, "older reply")
	}
	if contents[1].Parts[0].Text != "recent" {
		t.Fatalf("contents[1] = %q, want %q", contents[1].Parts[0].Text, "recent")
	}
}

func TestBuildWindowSkipsEmptyTurns(t *testing.T) {
	turns := []history.Turn{
		{Sender: history.SenderUser, Text: "hello"},
		{Sender: history.SenderAI, Text: "   "},
		{Sender: history.SenderUser, Text: "still there?"},
	}

	contents := BuildWindow(turns, "still there?", 60)
	if len(contents) != 2 {
		t.Fatalf("len(contents) = %d, want 2 after skipping blank turn", len(contents))
	}
}

func TestBuildWindowAlwaysEndsOnPrompt(t *testing.T) {
	cases := []struct {
		name  string
		turns []history.Turn
	}{
		{"empty history", nil},
		{"all empty text", []history.Turn{{Sender: history.SenderUser, Text: ""}, {Sender: history.SenderAI, Text: " "}}},
		{"ends on model turn", []history.Turn{{Sender: history.SenderUser, Text: "q"}, {Sender: history.SenderAI, Text: "a"}}},
		{"ends on stale user turn", []history.Turn{{Sender: history.SenderUser, Text: "different prompt"}}},
	}

	for _, tc := range cases {
		contents := BuildWindow(tc.turns, "current prompt", 60)
		if len(contents) == 0 {
			t.Fatalf("%s: window is empty", tc.name)
		}
		last := contents[len(contents)-1]
		if last.Role != genai.RoleUser || last.Parts[0].Text != "current prompt" {
			t.Fatalf("%s: window ends with %+v, want trailing user prompt", tc.name, last)
		}
	}
}

func TestBuildWindowDoesNotDuplicatePrompt(t *testing.T) {
	turns := []history.Turn{
		{Sender: history.SenderAI, Text: "a"},
		{Sender: history.SenderUser, Text: "current prompt"},
	}

	contents := BuildWindow(turns, "current prompt", 60)
	if len(contents) != 2 {
		t.Fatalf("len(contents) = %d, want 2 (prompt already trailing)", len(contents))
	}
}
