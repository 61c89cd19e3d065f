package genai

import "testing"

func TestNormalizeCandidateParts(t *testing.T) {
	raw := []byte(`{"candidates":[{"content":{"parts":[{"text":"hi"}]}}]}`)
	if got := Normalize(raw); got != "hi" {
		t.Fatalf("Normalize() = %q, want %q", got, "hi")
	}
}

func TestNormalizeCandidatePartsConcatenated(t *testing.T) {
	raw := []byte(`{"candidates":[{"content":{"parts":[{"text":"hel"},{"text":"lo"}]}}]}`)
	if got := Normalize(raw); got != "hello" {
		t.Fatalf("Normalize() = %q, want %q", got, "hello")
	}
}

func TestNormalizeOutputObject(t *testing.T) {
	raw := []byte(`{"output":{"text":"x"}}`)
	if got := Normalize(raw); got != "x" {
		t.Fatalf("Normalize() = %q, want %q", got, "x")
	}
}

func TestNormalizeOutputObjectPrefersContentText(t *testing.T) {
	raw := []byte(`{"output":{"content":{"text":"inner"},"text":"outer"}}`)
	if got := Normalize(raw); got != "inner" {
		t.Fatalf("Normalize() = %q, want %q", got, "inner")
	}
}

func TestNormalizeOutputSequenceJoinsLines(t *testing.T) {
	raw := []byte(`{"output":[{"content":{"text":"one"}},{"text":"two"},{"text":""}]}`)
	if got := Normalize(raw); got != "one\ntwo" {
		t.Fatalf("Normalize() = %q, want %q", got, "one\ntwo")
	}
}

func TestNormalizeResponsesJoinedWithSpace(t *testing.T) {
	raw := []byte(`{"responses":[{"text":"a"},{"text":"b"}]}`)
	if got := Normalize(raw); got != "a b" {
		t.Fatalf("Normalize() = %q, want %q", got, "a b")
	}
}

func TestNormalizeTopLevelFields(t *testing.T) {
	if got := Normalize([]byte(`{"text":"plain"}`)); got != "plain" {
		t.Fatalf("Normalize() = %q, want %q", got, "plain")
	}
	if got := Normalize([]byte(`{"message":"note"}`)); got != "note" {
		t.Fatalf("Normalize() = %q, want %q", got, "note")
	}
}

func TestNormalizeEmptyDocumentYieldsSentinel(t *testing.T) {
	if got := Normalize([]byte(`{}`)); got != NoReply {
		t.Fatalf("Normalize() = %q, want %q", got, NoReply)
	}
}

func TestNormalizeWhitespaceOnlyYieldsSentinel(t *testing.T) {
	if got := Normalize([]byte(`{"text":"   \n "}`)); got != NoReply {
		t.Fatalf("Normalize() = %q, want %q", got, NoReply)
	}
}

func TestNormalizePartialNestedStructures(t *testing.T) {
	cases := []string{
		`{"candidates":"not-a-list"}`,
		`{"candidates":[]}`,
		`{"candidates":[{"content":"flat"}]}`,
		`{"candidates":[{"content":{"parts":"flat"}}]}`,
		`{"output":42}`,
		`{"responses":[{"body":"no text"}]}`,
		`[1,2,3]`,
		`null`,
	}
	for _, c := range cases {
		if got := Normalize([]byte(c)); got != NoReply {
			t.Fatalf("Normalize(%s) = %q, want %q", c, got, NoReply)
		}
	}
}

func TestNormalizeDegradesAcrossRules(t *testing.T) {
	// candidates present but textless: the chain falls through to output.
	raw := []byte(`{"candidates":[{"content":{"parts":[{"text":""}]}}],"output":{"text":"fallback"}}`)
	if got := Normalize(raw); got != "fallback" {
		t.Fatalf("Normalize() = %q, want %q", got, "fallback")
	}
}

func TestNormalizeRepairsSloppyJSON(t *testing.T) {
	// Single quotes and a trailing comma: repaired before the chain runs.
	raw := []byte(`{'text': 'fixed',}`)
	if got := Normalize(raw); got != "fixed" {
		t.Fatalf("Normalize() = %q, want %q", got, "fixed")
	}
}

func TestNormalizeUnparseableBodyYieldsSentinel(t *testing.T) {
	if got := Normalize([]byte("\x00\x01 not json at all \x02")); got != NoReply {
		t.Fatalf("Normalize() = %q, want %q", got, NoReply)
	}
}
