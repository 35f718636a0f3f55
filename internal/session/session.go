// Package session defines the session record consumed by the extractors:
// the conversation turns, decision log and file changes of one development
// session, as supplied by the session producer.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

const maxRecordSize = 16 * 1024 * 1024 // 16MB

// Validation errors.
var (
	ErrEmptySessionID = errors.New("session_id is required")
	ErrInvalidAction  = errors.New("file change action must be created, modified or deleted")
	ErrEmptyFilePath  = errors.New("file change path is required")
	ErrEmptyDecision  = errors.New("decision text is required")
	ErrRecordTooLarge = errors.New("session record exceeds maximum size")
)

// Role represents the role of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Action represents the type of file operation.
type Action string

const (
	ActionCreated  Action = "created"
	ActionModified Action = "modified"
	ActionDeleted  Action = "deleted"
)

// Turn is one message of the conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Decision is one entry of the session's decision log.
type Decision struct {
	Decision     string   `json:"decision"`
	Rationale    string   `json:"rationale,omitempty"`
	Alternatives []string `json:"alternatives,omitempty"`
	Outcome      string   `json:"outcome,omitempty"`
}

// Text joins every textual field of the decision for keyword scanning.
func (d Decision) Text() string {
	text := d.Decision
	if d.Rationale != "" {
		text += " " + d.Rationale
	}
	for _, alt := range d.Alternatives {
		text += " " + alt
	}
	if d.Outcome != "" {
		text += " " + d.Outcome
	}
	return text
}

// FileChange is one file touched during the session. Action is optional.
type FileChange struct {
	File       string `json:"file"`
	Action     Action `json:"action,omitempty"`
	LinesAdded int    `json:"lines_added,omitempty"`
}

// Record is the complete input of one extraction call.
type Record struct {
	SessionID    string         `json:"session_id"`
	Conversation []Turn         `json:"conversation,omitempty"`
	Decisions    []Decision     `json:"decisions,omitempty"`
	FileChanges  []FileChange   `json:"file_changes,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Validate checks the record against the producer contract.
func (r *Record) Validate() error {
	if r.SessionID == "" {
		return ErrEmptySessionID
	}
	for i, d := range r.Decisions {
		if d.Decision == "" {
			return fmt.Errorf("decisions[%d]: %w", i, ErrEmptyDecision)
		}
	}
	for i, fc := range r.FileChanges {
		if fc.File == "" {
			return fmt.Errorf("file_changes[%d]: %w", i, ErrEmptyFilePath)
		}
		switch fc.Action {
		case "", ActionCreated, ActionModified, ActionDeleted:
		default:
			return fmt.Errorf("file_changes[%d] %q: %w", i, fc.Action, ErrInvalidAction)
		}
	}
	return nil
}

// Clone returns a deep copy of the record. Metadata values are shared.
func (r *Record) Clone() *Record {
	c := *r
	c.Conversation = append([]Turn(nil), r.Conversation...)
	c.FileChanges = append([]FileChange(nil), r.FileChanges...)
	c.Decisions = make([]Decision, len(r.Decisions))
	for i, d := range r.Decisions {
		d.Alternatives = append([]string(nil), d.Alternatives...)
		c.Decisions[i] = d
	}
	if r.Metadata != nil {
		c.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// Decode reads and validates a JSON session record.
func Decode(r io.Reader) (*Record, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxRecordSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading session record: %w", err)
	}
	if len(data) > maxRecordSize {
		return nil, ErrRecordTooLarge
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing session record: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session record: %w", err)
	}
	return &rec, nil
}

// Load reads a JSON session record from path.
func Load(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening session record %s: %w", path, err)
	}
	defer f.Close()

	return Decode(f)
}
