package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"attendance-checker/internal/platform/db"
)

type Operator struct {
	ID           string
	PasswordHash string
	Role         string
	IsDisabled   bool
	CreatedAt    string
}

type OperatorStore interface {
	GetByID(ctx context.Context, id string) (*Operator, error)
	Create(ctx context.Context, o *Operator) error
	Delete(ctx context.Context, id string) (int64, error)
}

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) OperatorStore {
	return &Store{db: conn}
}

// GetByID: 見つからなければ (nil, nil)
func (s *Store) GetByID(ctx context.Context, id string) (*Operator, error) {
	const q = `
SELECT id, password_hash, role, is_disabled, created_at
FROM operators
WHERE id = ?
LIMIT 1
`
	var o Operator
	var disabled int
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&o.ID,
		&o.PasswordHash,
		&o.Role,
		&disabled,
		&o.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o.IsDisabled = disabled != 0
	return &o, nil
}

// created_at は sqlite/mysql 共通にするため RFC3339 文字列で持つ
func (s *Store) Create(ctx context.Context, o *Operator) error {
	const q = `
INSERT INTO operators (id, password_hash, role, is_disabled, created_at)
VALUES (?, ?, ?, 0, ?)
`
	_, err := s.db.ExecContext(ctx, q, o.ID, o.PasswordHash, o.Role, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *Store) Delete(ctx context.Context, id string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM operators WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
