// Package models defines session state structures for the Asistente MGA.
package models

import (
	"strings"
	"time"
)

// SessionMode selects whether input is routed to the step engine or to the
// free-form chat sub-mode.
type SessionMode string

const (
	// ModeFlow routes input through the step engine.
	ModeFlow SessionMode = "flow"
	// ModeAlt routes input to the free-form chat sub-mode.
	ModeAlt SessionMode = "alt"
)

// Answer is one recorded response: free text for most steps, an item list
// for multi-select steps, a stored filename for uploads.
type Answer struct {
	Text  string   `json:"text,omitempty"`
	Items []string `json:"items,omitempty"`
}

// TextAnswer wraps a scalar response.
func TextAnswer(s string) Answer { return Answer{Text: s} }

// ListAnswer wraps a multi-select response.
func ListAnswer(items []string) Answer { return Answer{Items: items} }

// IsZero reports whether nothing was recorded.
func (a Answer) IsZero() bool { return a.Text == "" && len(a.Items) == 0 }

// String renders the answer for reporting; lists join with ", ".
func (a Answer) String() string {
	if len(a.Items) > 0 {
		return strings.Join(a.Items, ", ")
	}
	return a.Text
}

// Session is the per-conversation mutable record. The flow engine computes a
// pure function of (session, input); all persistence happens in the caller.
type Session struct {
	ID          string            `json:"id"`
	CurrentStep string            `json:"current_step"`
	Mode        SessionMode       `json:"mode"`
	Responses   map[string]Answer `json:"responses"`

	// ResumeStep is the step to return to after the chat sub-mode,
	// consumed with a pop-like read. ResumeFromChat is a one-shot flag set
	// when the sub-mode hands control back.
	ResumeStep     string `json:"resume_step,omitempty"`
	ResumeFromChat bool   `json:"resume_from_chat,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a fresh session positioned at the given start step.
func NewSession(id, startStep string) Session {
	now := time.Now()
	return Session{
		ID:          id,
		CurrentStep: startStep,
		Mode:        ModeFlow,
		Responses:   make(map[string]Answer),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Reset returns the session to the start step, discarding all answers.
func (s *Session) Reset(startStep string) {
	s.CurrentStep = startStep
	s.Mode = ModeFlow
	s.Responses = make(map[string]Answer)
	s.ResumeStep = ""
	s.ResumeFromChat = false
	s.UpdatedAt = time.Now()
}

// PopResumeStep reads and clears the recorded resume target.
func (s *Session) PopResumeStep() string {
	step := s.ResumeStep
	s.ResumeStep = ""
	return step
}
