package genai

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// NoReply is the displayable outcome when no rule can extract text from an
// upstream response. It is a valid reply, not an error.
const NoReply = "No reply"

// Normalize extracts plain reply text from a provider response of unknown
// shape. Shape matchers run in order and the first one yielding non-empty
// text wins; a body that is not strict JSON gets one repair attempt before
// the chain runs. Traversal never fails: unexpected structure just means
// the next matcher is tried, degrading to NoReply.
func Normalize(raw []byte) string {
	doc, ok := decodeLoose(raw)
	if !ok {
		return NoReply
	}

	matchers := []func(map[string]any) string{
		candidateParts,
		outputSequence,
		outputObject,
		responsesText,
		topLevelText,
	}
	for _, match := range matchers {
		if text := strings.TrimSpace(match(doc)); text != "" {
			return text
		}
	}
	return NoReply
}

func decodeLoose(raw []byte) (map[string]any, bool) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err == nil {
		return doc, true
	}
	repaired, err := jsonrepair.JSONRepair(string(raw))
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(repaired), &doc); err != nil {
		return nil, false
	}
	return doc, true
}

// candidateParts handles candidates[0].content.parts[*].text.
func candidateParts(doc map[string]any) string {
	candidates, ok := doc["candidates"].([]any)
	if !ok || len(candidates) == 0 {
		return ""
	}
	candidate, ok := candidates[0].(map[string]any)
	if !ok {
		return ""
	}
	content, ok := candidate["content"].(map[string]any)
	if !ok {
		return ""
	}
	parts, ok := content["parts"].([]any)
	if !ok {
		return ""
	}
	var b strings.Builder
	for _, p := range parts {
		if pm, ok := p.(map[string]any); ok {
			if t, ok := pm["text"].(string); ok {
				b.WriteString(t)
			}
		}
	}
	return b.String()
}

// outputSequence handles output as a list of items carrying content.text
// or text, joined with line breaks.
func outputSequence(doc map[string]any) string {
	items, ok := doc["output"].([]any)
	if !ok {
		return ""
	}
	var lines []string
	for _, item := range items {
		im, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if t := itemText(im); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n")
}

// outputObject handles output as a single object with content.text or text.
func outputObject(doc map[string]any) string {
	obj, ok := doc["output"].(map[string]any)
	if !ok {
		return ""
	}
	return itemText(obj)
}

func itemText(obj map[string]any) string {
	if content, ok := obj["content"].(map[string]any); ok {
		if t, ok := content["text"].(string); ok && t != "" {
			return t
		}
	}
	if t, ok := obj["text"].(string); ok {
		return t
	}
	return ""
}

// responsesText handles responses[*].text joined with spaces.
func responsesText(doc map[string]any) string {
	items, ok := doc["responses"].([]any)
	if !ok {
		return ""
	}
	var words []string
	for _, item := range items {
		if im, ok := item.(map[string]any); ok {
			if t, ok := im["text"].(string); ok && t != "" {
				words = append(words, t)
			}
		}
	}
	return strings.Join(words, " ")
}

func topLevelText(doc map[string]any) string {
	if t, ok := doc["text"].(string); ok && t != "" {
		return t
	}
	if t, ok := doc["message"].(string); ok {
		return t
	}
	return ""
}
