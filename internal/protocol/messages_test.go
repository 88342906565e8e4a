package protocol

import (
	"errors"
	"testing"
)

func TestParseClientMessageSubscribe(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"subscribe","chat_id":-100123,"replay":20}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	sub, ok := msg.(ClientSubscribe)
	if !ok {
		t.Fatalf("message type = %T, want ClientSubscribe", msg)
	}
	if sub.ChatID != -100123 || sub.Replay != 20 {
		t.Fatalf("unexpected subscribe: %+v", sub)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageRejectsBadReplay(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{"type":"subscribe","replay":-1}`)); err == nil {
		t.Fatalf("ParseClientMessage() error = nil, want invalid replay")
	}
}

func TestParseClientMessageInvalidJSON(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{`)); err == nil {
		t.Fatalf("ParseClientMessage() error = nil, want error")
	}
}
