package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared
// query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// nextSequence atomically advances the per-user counter for the given kind
// and returns the new value. The row-level lock taken by the UPDATE
// serializes concurrent callers inside their transactions, so two callers
// can never observe the same number.
func nextSequence(ctx context.Context, tx pgx.Tx, userID int, kind string) (int64, error) {
	var n int64
	err := tx.QueryRow(ctx, `
		INSERT INTO sequences (user_id, kind, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, kind)
		DO UPDATE SET last_number = sequences.last_number + 1
		RETURNING last_number
	`, userID, kind).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to advance %s sequence: %w", kind, err)
	}
	return n, nil
}
