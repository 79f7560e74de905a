package model

import "time"

// Document is a persisted config tree.
type Document struct {
	DocumentID    string           `json:"documentId"`
	ProjectID     string           `json:"projectId"`
	RootContainer string           `json:"rootContainer,omitempty"`
	Version       int              `json:"version"`
	Config        *ComponentConfig `json:"config"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}
