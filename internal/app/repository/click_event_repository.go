package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/snapurl/snapurl/internal/app/model"
)

// ClickEventRepository defines the data access contract for click events.
type ClickEventRepository interface {
	// Append inserts the event and bumps the link's click_count in one
	// transaction, so concurrent appends never lose updates and the
	// counter always matches the number of rows. Returns ErrLinkNotFound
	// if the code no longer exists.
	Append(ctx context.Context, event *model.ClickEvent) error
	ListByCode(ctx context.Context, code string) ([]model.ClickEvent, error)
}

type clickEventRepository struct {
	pool *pgxpool.Pool
}

// NewClickEventRepository returns a pgx-backed ClickEventRepository.
// The hot append path talks to Postgres directly instead of going
// through the ORM.
func NewClickEventRepository(pool *pgxpool.Pool) ClickEventRepository {
	return &clickEventRepository{pool: pool}
}

func (r *clickEventRepository) Append(ctx context.Context, event *model.ClickEvent) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin click append: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The count increment is a single relative UPDATE, never a
	// read-modify-write, so two concurrent appends both land.
	tag, err := tx.Exec(ctx,
		`UPDATE links SET click_count = click_count + 1 WHERE code = $1`,
		event.LinkCode)
	if err != nil {
		return fmt.Errorf("increment click count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO click_events (id, link_code, timestamp, referrer, ip, location)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.LinkCode, event.Timestamp, event.Referrer, event.IP, event.Location); err != nil {
		return fmt.Errorf("insert click event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit click append: %w", err)
	}
	return nil
}

func (r *clickEventRepository) ListByCode(ctx context.Context, code string) ([]model.ClickEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, link_code, timestamp, referrer, ip, location
		 FROM click_events
		 WHERE link_code = $1
		 ORDER BY timestamp ASC`,
		code)
	if err != nil {
		return nil, fmt.Errorf("list click events: %w", err)
	}
	defer rows.Close()

	var events []model.ClickEvent
	for rows.Next() {
		var e model.ClickEvent
		if err := rows.Scan(&e.ID, &e.LinkCode, &e.Timestamp, &e.Referrer, &e.IP, &e.Location); err != nil {
			return nil, fmt.Errorf("scan click event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
