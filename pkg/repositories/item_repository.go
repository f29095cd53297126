package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/boreallogic/delphi-app/pkg/apperrors"
	"github.com/boreallogic/delphi-app/pkg/database"
	"github.com/boreallogic/delphi-app/pkg/models"
)

// ItemRepository provides data access for study items. Items are immutable
// once created, so there is no update path.
type ItemRepository interface {
	CreateBatch(ctx context.Context, items []*models.Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*models.Item, error)
}

type itemRepository struct{}

// NewItemRepository creates a new ItemRepository.
func NewItemRepository() ItemRepository {
	return &itemRepository{}
}

var _ ItemRepository = (*itemRepository)(nil)

const itemColumns = `id, study_id, external_id, name, category, domain, domain_code, definition, tier, created_at`

func (r *itemRepository) CreateBatch(ctx context.Context, items []*models.Item) error {
	if len(items) == 0 {
		return nil
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	now := time.Now()
	batch := &pgx.Batch{}
	query := `INSERT INTO items (` + itemColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	for _, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		if it.Tier == "" {
			it.Tier = models.ItemTierFullyRated
		}
		it.CreatedAt = now

		batch.Queue(query,
			it.ID, it.StudyID, it.ExternalID, it.Name, it.Category,
			it.Domain, it.DomainCode, it.Definition, it.Tier, it.CreatedAt,
		)
	}

	br := scope.Conn.SendBatch(ctx, batch)
	defer br.Close()

	for range items {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch insert item: %w", err)
		}
	}

	return nil
}

func (r *itemRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`

	item, err := scanItem(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func (r *itemRepository) ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*models.Item, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `SELECT ` + itemColumns + ` FROM items WHERE study_id = $1 ORDER BY external_id`

	rows, err := scope.Conn.Query(ctx, query, studyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	return items, nil
}

func scanItem(row pgx.Row) (*models.Item, error) {
	var it models.Item
	err := row.Scan(
		&it.ID, &it.StudyID, &it.ExternalID, &it.Name, &it.Category,
		&it.Domain, &it.DomainCode, &it.Definition, &it.Tier, &it.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}
