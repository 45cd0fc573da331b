package pg

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mhorvath/tickethall/internal/admin"
	"github.com/mhorvath/tickethall/internal/domain"
)

const userColumns = `id, name, email, role, enabled, created_at`

func (r *Repository) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.exec(ctx, `
		INSERT INTO users (id, name, email, role, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Name, u.Email, u.Role, u.Enabled, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewValidationError("email", "email is already taken")
		}
		return errors.Wrap(err, "insert user")
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	row := r.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *Repository) ListUsers(ctx context.Context, f admin.UserFilter) ([]domain.User, int, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		p := arg(pattern)
		where = append(where, "(name ILIKE "+p+" OR email ILIKE "+p+")")
	}
	if f.Role != "" {
		where = append(where, "role = "+arg(string(f.Role)))
	}
	if f.Enabled != nil {
		where = append(where, "enabled = "+arg(*f.Enabled))
	}

	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM users`+cond, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count users")
	}

	sql := `SELECT ` + userColumns + ` FROM users` + cond +
		" ORDER BY created_at DESC LIMIT " + arg(f.Limit) + " OFFSET " + arg(f.Offset)
	rows, err := r.query(ctx, sql, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list users")
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (r *Repository) SetUserEnabled(ctx context.Context, id uuid.UUID, enabled bool) (domain.User, error) {
	row := r.queryRow(ctx, `
		UPDATE users SET enabled = $2 WHERE id = $1
		RETURNING `+userColumns, id, enabled)
	return scanUser(row)
}

func (r *Repository) CountOtherEnabledAdmins(ctx context.Context, excludeID uuid.UUID) (int, error) {
	var count int
	err := r.queryRow(ctx, `
		SELECT COUNT(*) FROM users
		WHERE role = 'admin' AND enabled = TRUE AND id != $1
	`, excludeID).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "count enabled admins")
	}
	return count, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Enabled, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, errors.Wrap(err, "scan user")
	}
	return u, nil
}
