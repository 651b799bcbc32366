package entity

import "time"

// Document is a file attached to a contract, with its extracted text for the assistant
type Document struct {
	ID            int64     `json:"id"`
	ContractID    int64     `json:"contract_id"`
	Name          string    `json:"name"`
	Path          string    `json:"path"`
	MimeType      string    `json:"mime_type"`
	ExtractedText string    `json:"extracted_text,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
