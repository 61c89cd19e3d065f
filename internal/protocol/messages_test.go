package protocol

import (
	"errors"
	"testing"
)

func TestParseClientMessageUserMessage(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"user_message","text":"hello"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	if msg.Text != "hello" {
		t.Fatalf("msg.Text = %q, want %q", msg.Text, "hello")
	}
}

func TestParseClientMessageRejectsEmptyText(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"user_message","text":""}`))
	if err == nil {
		t.Fatalf("ParseClientMessage() expected error for empty text")
	}
}

func TestParseClientMessageUnsupportedType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"client_audio_chunk"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("ParseClientMessage() error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageInvalidEnvelope(t *testing.T) {
	_, err := ParseClientMessage([]byte(`not json`))
	if err == nil {
		t.Fatalf("ParseClientMessage() expected error for invalid envelope")
	}
}
