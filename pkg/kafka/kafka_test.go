package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestEncodeSetsTypeHeader(t *testing.T) {
	msg, err := encode(Event{Key: "k", Type: "reload", Value: map[string]string{"reason": "manual"}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(msg.Key) != "k" {
		t.Errorf("key = %q", msg.Key)
	}
	if got := headerValue(msg.Headers, headerEventType); got != "reload" {
		t.Errorf("event type header = %q", got)
	}
	if string(msg.Value) != `{"reason":"manual"}` {
		t.Errorf("value = %s", msg.Value)
	}

	plain, err := encode(Event{Key: "k", Value: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(plain.Headers) != 0 {
		t.Errorf("untyped event should carry no headers, got %v", plain.Headers)
	}
}

func TestEncodeRejectsUnmarshalable(t *testing.T) {
	if _, err := encode(Event{Type: "bad", Value: make(chan int)}); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestHeaderValueMissing(t *testing.T) {
	if got := headerValue([]kafka.Header{{Key: "other", Value: []byte("x")}}, headerEventType); got != "" {
		t.Errorf("headerValue = %q", got)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Reason string `json:"reason"`
	}
	p, err := DecodeJSON[payload]([]byte(`{"reason":"cron"}`))
	if err != nil || p.Reason != "cron" {
		t.Fatalf("DecodeJSON = %+v, %v", p, err)
	}
	if _, err := DecodeJSON[payload]([]byte(`{`)); err == nil {
		t.Fatal("expected error for truncated json")
	}
}
