package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jhoicas/goldvault-api/internal/domain"
	"github.com/jhoicas/goldvault-api/internal/domain/entity"
	"github.com/jhoicas/goldvault-api/internal/domain/repository"
)

var (
	_ repository.CompanyRepository  = (*CompanyRepo)(nil)
	_ repository.UserRepository     = (*UserRepo)(nil)
	_ repository.AuditLogRepository = (*AuditLogRepo)(nil)
)

// CompanyRepo contrapartes en memoria.
type CompanyRepo struct{ s *Store }

func (r *CompanyRepo) Create(_ context.Context, c *entity.Company) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.companies[c.ID] = *c
	return nil
}

func (r *CompanyRepo) GetByID(_ context.Context, id string) (*entity.Company, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.companies[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *CompanyRepo) Update(_ context.Context, c *entity.Company) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.companies[c.ID]; !ok {
		return fmt.Errorf("update company %s: %w", c.ID, domain.ErrNotFound)
	}
	r.s.companies[c.ID] = *c
	return nil
}

func (r *CompanyRepo) List(_ context.Context, limit, offset int) ([]*entity.Company, error) {
	r.s.mu.Lock()
	list := make([]*entity.Company, 0, len(r.s.companies))
	for _, c := range r.s.companies {
		c := c
		list = append(list, &c)
	}
	r.s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	if offset >= len(list) {
		return nil, nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

// Delete borra la contraparte y la desvincula de las operaciones (ON DELETE SET NULL).
func (r *CompanyRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.companies[id]; !ok {
		return fmt.Errorf("delete company %s: %w", id, domain.ErrNotFound)
	}
	delete(r.s.companies, id)
	for k, t := range r.s.txns {
		if t.CompanyID != nil && *t.CompanyID == id {
			t.CompanyID = nil
			r.s.txns[k] = t
		}
	}
	return nil
}

// UserRepo usuarios en memoria.
type UserRepo struct{ s *Store }

func (r *UserRepo) Create(_ context.Context, u *entity.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return fmt.Errorf("create user: %w", domain.ErrDuplicate)
		}
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) GetByUsername(_ context.Context, username string) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Username, username) {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (r *UserRepo) List(_ context.Context) ([]*entity.User, error) {
	r.s.mu.Lock()
	list := make([]*entity.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		u := u
		list = append(list, &u)
	}
	r.s.mu.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (r *UserRepo) Count(_ context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.users), nil
}

func (r *UserRepo) CountByRole(_ context.Context, role string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, u := range r.s.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (r *UserRepo) Update(_ context.Context, u *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.users[u.ID]
	if !ok {
		return fmt.Errorf("update user %s: %w", u.ID, domain.ErrNotFound)
	}
	existing.Role = u.Role
	existing.PasswordHash = u.PasswordHash
	existing.UpdatedAt = u.UpdatedAt
	r.s.users[u.ID] = existing
	return nil
}

// Delete borra el usuario y lo desvincula de operaciones y transferencias (ON DELETE SET NULL).
func (r *UserRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return fmt.Errorf("delete user %s: %w", id, domain.ErrNotFound)
	}
	delete(r.s.users, id)
	for k, t := range r.s.txns {
		if t.UserID == id {
			t.UserID = ""
			r.s.txns[k] = t
		}
	}
	for k, t := range r.s.transfers {
		if t.UserID == id {
			t.UserID = ""
			r.s.transfers[k] = t
		}
	}
	return nil
}

// AuditLogRepo registro de actividad en memoria (orden de inserción).
type AuditLogRepo struct{ s *Store }

func (r *AuditLogRepo) Create(_ context.Context, e *entity.AuditLog) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.logs = append(r.s.logs, *e)
	return nil
}

// List más recientes primero; Search sin distinguir mayúsculas.
func (r *AuditLogRepo) List(_ context.Context, f repository.AuditLogFilter) ([]*entity.AuditLog, int, error) {
	needle := strings.ToLower(f.Search)
	r.s.mu.Lock()
	var matched []*entity.AuditLog
	for i := len(r.s.logs) - 1; i >= 0; i-- {
		e := r.s.logs[i]
		if needle != "" &&
			!strings.Contains(strings.ToLower(e.Username), needle) &&
			!strings.Contains(strings.ToLower(e.Action), needle) &&
			!strings.Contains(strings.ToLower(e.Details), needle) {
			continue
		}
		matched = append(matched, &e)
	}
	r.s.mu.Unlock()

	total := len(matched)
	if f.Offset >= total {
		return nil, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}
