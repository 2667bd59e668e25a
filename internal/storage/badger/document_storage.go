package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/censeo/internal/interfaces"
	"github.com/ternarybob/censeo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// DocumentStorage implements the DocumentStorage interface for Badger
type DocumentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDocumentStorage creates a new DocumentStorage instance
func NewDocumentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DocumentStorage {
	return &DocumentStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DocumentStorage) SaveDocument(ctx context.Context, ref string, blob []byte) error {
	if ref == "" {
		return fmt.Errorf("document ref is required: %w", models.ErrInvalidInput)
	}
	if len(blob) == 0 {
		return fmt.Errorf("document blob is empty: %w", models.ErrInvalidInput)
	}

	doc := models.Document{
		Ref:       ref,
		Data:      blob,
		Size:      len(blob),
		CreatedAt: time.Now(),
	}
	if err := s.db.Store().Upsert(ref, &doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	s.logger.Debug().Str("ref", ref).Int("size", len(blob)).Msg("Document saved")
	return nil
}

func (s *DocumentStorage) GetDocument(ctx context.Context, ref string) ([]byte, error) {
	var doc models.Document
	if err := s.db.Store().Get(ref, &doc); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("document %s: %w", ref, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc.Data, nil
}

func (s *DocumentStorage) DeleteDocument(ctx context.Context, ref string) error {
	if err := s.db.Store().Delete(ref, &models.Document{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
