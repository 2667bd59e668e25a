package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique analysis job ID with the "job_" prefix
// Format: job_<uuid>
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewSessionID generates a unique chat session ID with the "chat_" prefix
// Format: chat_<uuid>
func NewSessionID() string {
	return "chat_" + uuid.New().String()
}

// NewDocumentRef generates a unique document blob reference with the "doc_" prefix
// Format: doc_<uuid>
func NewDocumentRef() string {
	return "doc_" + uuid.New().String()
}
