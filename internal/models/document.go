package models

import "time"

// Document is a raw submitted document blob, stored separately from the
// job record so status polls never deserialize the full payload.
type Document struct {
	Ref       string         `json:"ref" badgerhold:"key"`
	Format    DocumentFormat `json:"format"`
	Data      []byte         `json:"data"`
	Size      int            `json:"size"`
	CreatedAt time.Time      `json:"created_at"`
}
