package memory

import (
	"context"
	"sort"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

type addressRepo struct {
	h   handle
	now func() time.Time
}

var _ repo.AddressRepository = (*addressRepo)(nil)

func (r *addressRepo) Create(ctx context.Context, a model.Address) (model.Address, error) {
	err := r.h.do(ctx, func(st *state) error {
		a.ID = st.nextID("addresses")
		now := r.now()
		a.CreatedAt, a.UpdatedAt = now, now
		st.addresses[a.ID] = a
		return nil
	})
	if err != nil {
		return model.Address{}, err
	}
	return a, nil
}

// デフォルトが先頭、あとはid昇順
func (r *addressRepo) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	out := []model.Address{}
	err := r.h.do(ctx, func(st *state) error {
		for _, a := range st.addresses {
			if a.UserID == userID {
				out = append(out, a)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].IsDefault != out[j].IsDefault {
				return out[i].IsDefault
			}
			return out[i].ID < out[j].ID
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *addressRepo) FindByID(ctx context.Context, addressID int64) (model.Address, error) {
	var out model.Address
	err := r.h.do(ctx, func(st *state) error {
		a, ok := st.addresses[addressID]
		if !ok {
			return repo.ErrNotFound
		}
		out = a
		return nil
	})
	return out, err
}

func (r *addressRepo) Update(ctx context.Context, a model.Address) error {
	return r.h.do(ctx, func(st *state) error {
		cur, ok := st.addresses[a.ID]
		if !ok {
			return repo.ErrNotFound
		}
		cur.PostalCode = a.PostalCode
		cur.Prefecture = a.Prefecture
		cur.City = a.City
		cur.Line1 = a.Line1
		cur.Line2 = a.Line2
		cur.Name = a.Name
		cur.Phone = a.Phone
		cur.UpdatedAt = r.now()
		st.addresses[a.ID] = cur
		return nil
	})
}

func (r *addressRepo) Delete(ctx context.Context, addressID int64) error {
	return r.h.do(ctx, func(st *state) error {
		if _, ok := st.addresses[addressID]; !ok {
			return repo.ErrNotFound
		}
		delete(st.addresses, addressID)
		return nil
	})
}

func (r *addressRepo) IsOwnedByUser(ctx context.Context, addressID, userID int64) (bool, error) {
	var owned bool
	err := r.h.do(ctx, func(st *state) error {
		a, ok := st.addresses[addressID]
		if !ok {
			return repo.ErrNotFound
		}
		owned = a.UserID == userID
		return nil
	})
	return owned, err
}

func (r *addressRepo) SetDefault(ctx context.Context, userID, addressID int64) error {
	return r.h.do(ctx, func(st *state) error {
		target, ok := st.addresses[addressID]
		if !ok || target.UserID != userID {
			return repo.ErrNotFound
		}
		for id, a := range st.addresses {
			if a.UserID == userID && a.IsDefault {
				a.IsDefault = false
				st.addresses[id] = a
			}
		}
		target.IsDefault = true
		st.addresses[addressID] = target
		return nil
	})
}

type userRepo struct {
	h handle
}

var _ repo.UserRepository = (*userRepo)(nil)

func (r *userRepo) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	var out *model.User
	err := r.h.do(ctx, func(st *state) error {
		if u, ok := st.users[userID]; ok {
			out = &u
		}
		return nil
	})
	return out, err
}

type auditLogRepo struct {
	h   handle
	now func() time.Time
}

var _ repo.AuditLogRepository = (*auditLogRepo)(nil)

func (r *auditLogRepo) Create(ctx context.Context, log model.AuditLog) error {
	return r.h.do(ctx, func(st *state) error {
		log.ID = st.nextID("audit_logs")
		if log.CreatedAt.IsZero() {
			log.CreatedAt = r.now()
		}
		st.auditLogs = append(st.auditLogs, log)
		return nil
	})
}

// 新しい順
func (r *auditLogRepo) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	out := []model.AuditLog{}
	err := r.h.do(ctx, func(st *state) error {
		var hits []model.AuditLog
		for i := len(st.auditLogs) - 1; i >= 0; i-- {
			l := st.auditLogs[i]
			switch {
			case f.ActorUserID != nil && l.ActorUserID != *f.ActorUserID,
				f.Action != nil && l.Action != *f.Action,
				f.ResourceType != nil && l.ResourceType != *f.ResourceType,
				f.ResourceID != nil && l.ResourceID != *f.ResourceID,
				f.CreatedFrom != nil && l.CreatedAt.Before(*f.CreatedFrom),
				f.CreatedTo != nil && l.CreatedAt.After(*f.CreatedTo):
				continue
			}
			hits = append(hits, l)
		}
		if offset < len(hits) {
			hits = hits[offset:]
			if len(hits) > limit {
				hits = hits[:limit]
			}
			out = append(out, hits...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
