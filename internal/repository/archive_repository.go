package repository

import (
	"context"

	"support_chat/internal/models"
	"support_chat/internal/storage"
)

// ArchiveRepository 唯讀存取已封存的訊息
type ArchiveRepository interface {
	FindByID(ctx context.Context, id uint) (*models.ArchivedMessage, error)
}

type archiveRepository struct {
	baseRepository
}

func NewArchiveRepository(db *storage.Database) ArchiveRepository {
	return &archiveRepository{baseRepository{db: db}}
}

func (r *archiveRepository) FindByID(ctx context.Context, id uint) (*models.ArchivedMessage, error) {
	var archived models.ArchivedMessage
	if err := r.conn(ctx).First(&archived, id).Error; err != nil {
		return nil, translate(err, "find archived message")
	}
	return &archived, nil
}
