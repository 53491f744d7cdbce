package models

import "time"

// UploadRecord tracks one accepted template upload for a session.
type UploadRecord struct {
	SessionID  string           `json:"session_id"`
	Category   TemplateCategory `json:"category"`
	Filename   string           `json:"filename"`
	JSONPath   string           `json:"json_path"`
	UploadedAt time.Time        `json:"uploaded_at"`
}

// DocumentRecord tracks one generated project document.
type DocumentRecord struct {
	SessionID string    `json:"session_id"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}
