package mq

import (
	"context"
	"testing"
	"time"
)

func TestToKafkaMessage(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msg := &Message{ID: "evt-1", Key: "token-1", Body: []byte(`{}`), Timestamp: ts}
	msg.SetHeader("event", "session.status")

	km := toKafkaMessage("interview.session.events", msg)
	if km.Topic != "interview.session.events" {
		t.Fatalf("unexpected topic: %s", km.Topic)
	}
	if string(km.Key) != "token-1" {
		t.Fatalf("expected partition key to be the session token, got %s", km.Key)
	}
	headers := map[string]string{}
	for _, h := range km.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers[headerID] != "evt-1" || headers["event"] != "session.status" {
		t.Fatalf("unexpected headers: %v", headers)
	}
	if headers[headerTimestamp] != ts.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected timestamp header: %s", headers[headerTimestamp])
	}
}

func TestToKafkaMessageFallsBackToID(t *testing.T) {
	km := toKafkaMessage("t", &Message{ID: "evt-2"})
	if string(km.Key) != "evt-2" {
		t.Fatalf("expected id as key, got %s", km.Key)
	}
}

func TestNewKafkaProducerValidation(t *testing.T) {
	if _, err := NewKafkaProducer(KafkaConfig{}); err == nil {
		t.Fatalf("expected brokers validation error")
	}
	p, err := NewKafkaProducer(KafkaConfig{Brokers: []string{"127.0.0.1:1"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Publish(context.Background(), "", NewMessage(nil)); err == nil {
		t.Fatalf("expected topic validation error")
	}
	if err := p.Publish(context.Background(), "t", nil); err == nil {
		t.Fatalf("expected nil message error")
	}
	_ = p.Close()
}
