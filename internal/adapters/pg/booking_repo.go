package pg

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mhorvath/tickethall/internal/domain"
)

const bookingColumns = `id, event_id, user_id, COALESCE(guest_name, ''),
	COALESCE(guest_email, ''), quantity, total_price::text, start_at, status, created_at`

func (r *Repository) CreateBooking(ctx context.Context, b domain.Booking) error {
	_, err := r.exec(ctx, `
		INSERT INTO bookings (id, event_id, user_id, guest_name, guest_email,
			quantity, total_price, start_at, status, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10)
	`, b.ID, b.EventID, b.UserID, b.GuestName, b.GuestEmail,
		b.Quantity, b.TotalPrice.StringFixed(2), b.StartAt, b.Status, b.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert booking")
	}
	return nil
}

func (r *Repository) SumConfirmedQuantity(ctx context.Context, eventID uuid.UUID) (int, error) {
	var total int
	err := r.queryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0) FROM bookings
		WHERE event_id = $1 AND status = 'confirmed'
	`, eventID).Scan(&total)
	if err != nil {
		return 0, errors.Wrap(err, "sum confirmed quantity")
	}
	return total, nil
}

func (r *Repository) SumConfirmedQuantityForIdentity(ctx context.Context, eventID uuid.UUID, identity domain.Identity) (int, error) {
	var (
		total int
		err   error
	)
	if identity.IsRegistered() {
		err = r.queryRow(ctx, `
			SELECT COALESCE(SUM(quantity), 0) FROM bookings
			WHERE event_id = $1 AND status = 'confirmed' AND user_id = $2
		`, eventID, identity.UserID()).Scan(&total)
	} else {
		err = r.queryRow(ctx, `
			SELECT COALESCE(SUM(quantity), 0) FROM bookings
			WHERE event_id = $1 AND status = 'confirmed' AND user_id IS NULL AND guest_email = $2
		`, eventID, identity.GuestEmail()).Scan(&total)
	}
	if err != nil {
		return 0, errors.Wrap(err, "sum confirmed quantity for identity")
	}
	return total, nil
}

func (r *Repository) ListBookingsByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Booking, error) {
	rows, err := r.query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE event_id = $1 ORDER BY created_at DESC
	`, eventID)
	if err != nil {
		return nil, errors.Wrap(err, "list bookings by event")
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var (
		b         domain.Booking
		userID    uuid.NullUUID
		totalText string
	)
	err := row.Scan(&b.ID, &b.EventID, &userID, &b.GuestName, &b.GuestEmail,
		&b.Quantity, &totalText, &b.StartAt, &b.Status, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Booking{}, domain.ErrBookingNotFound
		}
		return domain.Booking{}, errors.Wrap(err, "scan booking")
	}
	if userID.Valid {
		b.UserID = &userID.UUID
	}
	total, err := decimal.NewFromString(totalText)
	if err != nil {
		return domain.Booking{}, errors.Wrap(err, "parse booking total")
	}
	b.TotalPrice = total
	return b, nil
}
