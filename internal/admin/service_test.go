package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/mhorvath/tickethall/internal/domain"
	"github.com/mhorvath/tickethall/internal/observability"
)

type fakeRepo struct {
	users map[uuid.UUID]domain.User
}

func newFakeRepo(users ...domain.User) *fakeRepo {
	r := &fakeRepo{users: make(map[uuid.UUID]domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeRepo) ListUsers(_ context.Context, f UserFilter) ([]domain.User, int, error) {
	var out []domain.User
	for _, u := range r.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Enabled != nil && u.Enabled != *f.Enabled {
			continue
		}
		out = append(out, u)
	}
	return out, len(out), nil
}

func (r *fakeRepo) GetUser(_ context.Context, id uuid.UUID) (domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeRepo) SetUserEnabled(_ context.Context, id uuid.UUID, enabled bool) (domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	u.Enabled = enabled
	r.users[id] = u
	return u, nil
}

func (r *fakeRepo) CountOtherEnabledAdmins(_ context.Context, excludeID uuid.UUID) (int, error) {
	count := 0
	for _, u := range r.users {
		if u.ID != excludeID && u.IsAdmin() && u.Enabled {
			count++
		}
	}
	return count, nil
}

type fakeAudit struct {
	actions []string
}

func (a *fakeAudit) LogAdminAction(_ context.Context, action string, _ uuid.UUID, _ map[string]interface{}) error {
	a.actions = append(a.actions, action)
	return nil
}

func admin() domain.User {
	return domain.User{ID: uuid.New(), Role: domain.RoleAdmin, Enabled: true}
}

func TestService_SetEnabled(t *testing.T) {
	t.Run("disables a regular user and audits it", func(t *testing.T) {
		acting := admin()
		target := domain.User{ID: uuid.New(), Role: domain.RoleUser, Enabled: true}
		repo := newFakeRepo(acting, target)
		audit := &fakeAudit{}
		svc := NewService(repo, audit, observability.NewLogger())

		updated, err := svc.SetEnabled(context.Background(), acting, target.ID, false)
		if err != nil {
			t.Fatalf("SetEnabled: %v", err)
		}
		if updated.Enabled {
			t.Error("user still enabled")
		}
		if len(audit.actions) != 1 || audit.actions[0] != "user.enabled_changed" {
			t.Errorf("audit actions = %v", audit.actions)
		}
	})

	t.Run("re-enabling is allowed", func(t *testing.T) {
		acting := admin()
		target := domain.User{ID: uuid.New(), Role: domain.RoleUser, Enabled: false}
		repo := newFakeRepo(acting, target)
		svc := NewService(repo, nil, observability.NewLogger())

		updated, err := svc.SetEnabled(context.Background(), acting, target.ID, true)
		if err != nil {
			t.Fatalf("SetEnabled: %v", err)
		}
		if !updated.Enabled {
			t.Error("user still disabled")
		}
	})

	t.Run("admin cannot disable own account", func(t *testing.T) {
		acting := admin()
		repo := newFakeRepo(acting)
		svc := NewService(repo, nil, observability.NewLogger())

		_, err := svc.SetEnabled(context.Background(), acting, acting.ID, false)
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("err = %v, want ValidationError", err)
		}
		if _, ok := verr.Fields["enabled"]; !ok {
			t.Errorf("fields = %v, want enabled", verr.Fields)
		}
	})

	t.Run("cannot disable the last enabled admin", func(t *testing.T) {
		acting := admin()
		lastAdmin := admin()
		repo := newFakeRepo(acting, lastAdmin)
		// acting is about to be the only other admin, disable it first
		repo.users[acting.ID] = domain.User{ID: acting.ID, Role: domain.RoleAdmin, Enabled: false}
		svc := NewService(repo, nil, observability.NewLogger())

		_, err := svc.SetEnabled(context.Background(), acting, lastAdmin.ID, false)
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("err = %v, want ValidationError", err)
		}
	})

	t.Run("disabling an admin with another enabled admin left is allowed", func(t *testing.T) {
		acting := admin()
		other := admin()
		repo := newFakeRepo(acting, other)
		svc := NewService(repo, nil, observability.NewLogger())

		updated, err := svc.SetEnabled(context.Background(), acting, other.ID, false)
		if err != nil {
			t.Fatalf("SetEnabled: %v", err)
		}
		if updated.Enabled {
			t.Error("admin still enabled")
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		acting := admin()
		repo := newFakeRepo(acting)
		svc := NewService(repo, nil, observability.NewLogger())

		_, err := svc.SetEnabled(context.Background(), acting, uuid.New(), false)
		if !errors.Is(err, domain.ErrUserNotFound) {
			t.Fatalf("err = %v, want ErrUserNotFound", err)
		}
	})
}

func TestService_ListUsers(t *testing.T) {
	acting := admin()
	enabled := true
	repo := newFakeRepo(
		acting,
		domain.User{ID: uuid.New(), Role: domain.RoleUser, Enabled: true},
		domain.User{ID: uuid.New(), Role: domain.RoleUser, Enabled: false},
	)
	svc := NewService(repo, nil, observability.NewLogger())

	users, total, err := svc.ListUsers(context.Background(), UserFilter{Role: domain.RoleUser, Enabled: &enabled})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if total != 1 || len(users) != 1 {
		t.Errorf("got %d users (total %d), want 1", len(users), total)
	}
}
