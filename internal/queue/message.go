package queue

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"analyzeit/internal/analyses"
)

// TypeAnalysisUpsert is the only event the analysis service publishes.
const TypeAnalysisUpsert = "analysis.upsert"

// Message is a result event published by the analysis service.
type Message struct {
	Type       string          `json:"type"`
	RequestID  string          `json:"requestId,omitempty"`
	EnqueuedAt string          `json:"enqueuedAt,omitempty"`
	Record     analyses.Record `json:"record"`
}

// NewUpsert wraps a record in an upsert event stamped with now.
func NewUpsert(rec analyses.Record, requestID string, now time.Time) Message {
	return Message{
		Type:       TypeAnalysisUpsert,
		RequestID:  requestID,
		EnqueuedAt: now.UTC().Format(time.RFC3339),
		Record:     rec,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrUnknownType indicates an event this service does not consume.
type ErrUnknownType struct {
	Meta      MessageMeta
	Type      string
	RequestID string
}

func (e ErrUnknownType) Error() string { return "unknown message type " + e.Type }

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := DecodeMessage([]byte(body))
	if err != nil {
		return Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if msg.Type != TypeAnalysisUpsert {
		return msg, meta, ErrUnknownType{Meta: meta, Type: msg.Type, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}
