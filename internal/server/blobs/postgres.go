package blobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Stat(ctx context.Context, owner, name string) (*Meta, error) {
	query :=
		`SELECT size, updated_by, updated_at FROM blobs
		 WHERE owner = $1 AND name = $2
		 `

	m := &Meta{Owner: owner, Name: name}
	err := r.db.QueryRowContext(ctx, query, owner, name).Scan(&m.Size, &m.UpdatedBy, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("blob %s/%s: %w", owner, name, common.ErrNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) Get(ctx context.Context, owner, name string) (*Blob, error) {
	query :=
		`SELECT content, size, updated_by, updated_at FROM blobs
		 WHERE owner = $1 AND name = $2
		 `

	b := &Blob{Meta: Meta{Owner: owner, Name: name}}
	err := r.db.QueryRowContext(ctx, query, owner, name).Scan(&b.Content, &b.Size, &b.UpdatedBy, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("blob %s/%s: %w", owner, name, common.ErrNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return b, nil
}

// Put replaces the whole content of a blob, creating it if needed.
func (r *PostgresRepository) Put(ctx context.Context, owner, name, updatedBy string, content []byte) (*Meta, error) {
	query :=
		`INSERT INTO blobs (owner, name, content, size, updated_by, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (owner, name) DO UPDATE SET
		   content = EXCLUDED.content,
		   size = EXCLUDED.size,
		   updated_by = EXCLUDED.updated_by,
		   updated_at = EXCLUDED.updated_at
		 RETURNING updated_at
		 `

	m := &Meta{Owner: owner, Name: name, Size: int64(len(content)), UpdatedBy: updatedBy}
	err := r.db.QueryRowContext(ctx, query, owner, name, content, m.Size, updatedBy).Scan(&m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

var _ Repository = (*PostgresRepository)(nil)
