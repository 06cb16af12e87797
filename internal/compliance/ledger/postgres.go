package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"rwagate/internal/compliance/models"
	"rwagate/pkg/domain"
)

// Postgres appends entries to ledger_entries through a pgx pool. Window sums
// are served by the (user_id, occurred_at) index.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) (*Postgres, error) {
	if pool == nil {
		return nil, errors.New("pgx pool is required")
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Append(ctx context.Context, entry models.LedgerEntry) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO ledger_entries (user_id, amount, occurred_at, reference)
		VALUES ($1, $2, $3, $4)
	`, string(entry.UserID), int64(entry.Amount), entry.OccurredAt, entry.Reference)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func (p *Postgres) SumSince(ctx context.Context, userID domain.UserID, since time.Time) (domain.Amount, error) {
	var total int64
	err := p.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::BIGINT
		FROM ledger_entries
		WHERE user_id = $1 AND occurred_at >= $2
	`, string(userID), since).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum ledger window: %w", err)
	}
	return domain.Amount(total), nil
}

func (p *Postgres) History(ctx context.Context, userID domain.UserID) ([]models.LedgerEntry, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT amount, occurred_at, reference
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY occurred_at, seq
	`, string(userID))
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var out []models.LedgerEntry
	for rows.Next() {
		var (
			amount int64
			e      models.LedgerEntry
		)
		if err := rows.Scan(&amount, &e.OccurredAt, &e.Reference); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.UserID = userID
		e.Amount = domain.Amount(amount)
		out = append(out, e)
	}
	return out, rows.Err()
}
