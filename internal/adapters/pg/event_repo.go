package pg

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mhorvath/tickethall/internal/domain"
	"github.com/mhorvath/tickethall/internal/event"
)

// price is cast to text so it round-trips through shopspring decimal without
// float conversion.
const eventColumns = `id, created_by, title, COALESCE(description, ''), starts_at,
	COALESCE(location, ''), COALESCE(category, ''), capacity, price::text,
	max_tickets_per_user, status, created_at, updated_at`

func (r *Repository) CreateEvent(ctx context.Context, e domain.Event) error {
	_, err := r.exec(ctx, `
		INSERT INTO events (id, created_by, title, description, starts_at, location,
			category, capacity, price, max_tickets_per_user, status, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11, $12, $13)
	`, e.ID, e.CreatedBy, e.Title, e.Description, e.StartsAt, e.Location,
		e.Category, e.Capacity, priceArg(e.Price), e.MaxTicketsPerUser, e.Status, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "insert event")
	}
	return nil
}

func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	row := r.queryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	return scanEvent(row)
}

// GetEventForUpdate locks the event row for the rest of the transaction. This
// is the serialization point for booking admission: concurrent requests for
// the same event queue here and each observes the state its predecessors
// committed.
func (r *Repository) GetEventForUpdate(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	row := r.queryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id)
	return scanEvent(row)
}

func (r *Repository) UpdateEvent(ctx context.Context, e domain.Event) error {
	tag, err := r.exec(ctx, `
		UPDATE events SET title = $2, description = NULLIF($3, ''), starts_at = $4,
			location = NULLIF($5, ''), category = NULLIF($6, ''), capacity = $7,
			price = $8, max_tickets_per_user = $9, status = $10, updated_at = $11
		WHERE id = $1
	`, e.ID, e.Title, e.Description, e.StartsAt, e.Location, e.Category,
		e.Capacity, priceArg(e.Price), e.MaxTicketsPerUser, e.Status, e.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "update event")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

func (r *Repository) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	tag, err := r.exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete event")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

func (r *Repository) ListEvents(ctx context.Context, f event.ListFilter) ([]domain.Event, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		visible := "status = ANY(" + arg(statuses) + ")"
		if f.DraftsBy != nil {
			visible = "(" + visible + " OR (status = 'draft' AND created_by = " + arg(*f.DraftsBy) + "))"
		}
		where = append(where, visible)
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}
	if f.Category != "" {
		where = append(where, "category = "+arg(f.Category))
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		p := arg(pattern)
		where = append(where, "(title ILIKE "+p+" OR description ILIKE "+p+" OR location ILIKE "+p+")")
	}

	sql := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY starts_at ASC LIMIT " + arg(f.Limit) + " OFFSET " + arg(f.Offset)

	rows, err := r.query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list events")
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListEventsDueReminder returns published events starting inside (now, until]
// that have not been reminded yet.
func (r *Repository) ListEventsDueReminder(ctx context.Context, now, until time.Time) ([]domain.Event, error) {
	rows, err := r.query(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE status = 'published' AND reminder_sent_at IS NULL
			AND starts_at > $1 AND starts_at <= $2
		ORDER BY starts_at ASC
	`, now, until)
	if err != nil {
		return nil, errors.Wrap(err, "list events due reminder")
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.exec(ctx, `UPDATE events SET reminder_sent_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return errors.Wrap(err, "mark reminder sent")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

func scanEvent(row pgx.Row) (domain.Event, error) {
	var (
		e         domain.Event
		capacity  *int
		priceText *string
	)
	err := row.Scan(&e.ID, &e.CreatedBy, &e.Title, &e.Description, &e.StartsAt,
		&e.Location, &e.Category, &capacity, &priceText,
		&e.MaxTicketsPerUser, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, domain.ErrEventNotFound
		}
		return domain.Event{}, errors.Wrap(err, "scan event")
	}
	e.Capacity = capacity
	if priceText != nil {
		price, err := decimal.NewFromString(*priceText)
		if err != nil {
			return domain.Event{}, errors.Wrap(err, "parse event price")
		}
		e.Price = &price
	}
	return e, nil
}

func priceArg(price *decimal.Decimal) interface{} {
	if price == nil {
		return nil
	}
	return price.StringFixed(2)
}
