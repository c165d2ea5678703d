package events

import (
	"context"
	"encoding/json"
	"sync"
)

// Message is a published message as seen by a Recorder.
type Message struct {
	Topic string
	Key   string
	Value json.RawMessage
}

// Recorder is an in-memory Publisher that keeps every message. It stands in
// for Kafka in tests and local runs.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Publish records value as JSON.
func (r *Recorder) Publish(_ context.Context, topic, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Topic: topic, Key: key, Value: data})
	return nil
}

// Close does nothing.
func (r *Recorder) Close() error { return nil }

// Messages returns a copy of the recorded messages in publish order.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

var _ Publisher = (*Recorder)(nil)
