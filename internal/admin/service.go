package admin

import (
	"context"

	"github.com/google/uuid"

	"github.com/mhorvath/tickethall/internal/domain"
	"github.com/mhorvath/tickethall/internal/observability"
)

type UserFilter struct {
	Search  string
	Role    domain.Role
	Enabled *bool
	Limit   int
	Offset  int
}

type Repository interface {
	ListUsers(ctx context.Context, f UserFilter) ([]domain.User, int, error)
	GetUser(ctx context.Context, id uuid.UUID) (domain.User, error)
	SetUserEnabled(ctx context.Context, id uuid.UUID, enabled bool) (domain.User, error)
	// CountOtherEnabledAdmins counts enabled admins excluding the given id.
	CountOtherEnabledAdmins(ctx context.Context, excludeID uuid.UUID) (int, error)
}

// AuditLogger records admin actions; a nil logger disables auditing.
type AuditLogger interface {
	LogAdminAction(ctx context.Context, action string, actorID uuid.UUID, data map[string]interface{}) error
}

type Service struct {
	repo   Repository
	audit  AuditLogger
	logger observability.Logger
}

func NewService(repo Repository, audit AuditLogger, logger observability.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

func (s *Service) ListUsers(ctx context.Context, f UserFilter) ([]domain.User, int, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 15
	}
	return s.repo.ListUsers(ctx, f)
}

// SetEnabled flips a user's enabled flag. An admin cannot disable their own
// account, and the last enabled admin cannot be disabled.
func (s *Service) SetEnabled(ctx context.Context, acting domain.User, targetID uuid.UUID, enabled bool) (domain.User, error) {
	if acting.ID == targetID && !enabled {
		return domain.User{}, domain.NewValidationError("enabled", "you cannot disable your own account")
	}

	target, err := s.repo.GetUser(ctx, targetID)
	if err != nil {
		return domain.User{}, err
	}

	if target.IsAdmin() && target.Enabled && !enabled {
		others, err := s.repo.CountOtherEnabledAdmins(ctx, target.ID)
		if err != nil {
			return domain.User{}, err
		}
		if others == 0 {
			return domain.User{}, domain.NewValidationError("enabled", "cannot disable the last enabled admin")
		}
	}

	updated, err := s.repo.SetUserEnabled(ctx, targetID, enabled)
	if err != nil {
		return domain.User{}, err
	}

	s.logger.WithField("user_id", targetID.String()).
		WithField("enabled", enabled).
		Info("user enabled flag changed")
	if s.audit != nil {
		if err := s.audit.LogAdminAction(ctx, "user.enabled_changed", acting.ID, map[string]interface{}{
			"target_id": targetID.String(),
			"enabled":   enabled,
		}); err != nil {
			s.logger.WithError(err).Warn("audit log write failed")
		}
	}
	return updated, nil
}
