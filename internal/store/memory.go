package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fintrack/auth-service/internal/models"
)

// MemoryStore keeps refresh-token records in a process-local map keyed by
// JTI. It satisfies the same validity contract as GormStore and exists for
// tests and single-process deployments. All access goes through the mutex;
// nothing escapes by reference.
type MemoryStore struct {
	mu     sync.RWMutex
	byJTI  map[string]*models.RefreshToken
	window time.Duration
	nextID uint
}

func NewMemoryStore(window time.Duration) *MemoryStore {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryStore{
		byJTI:  make(map[string]*models.RefreshToken),
		window: window,
	}
}

func (s *MemoryStore) Save(_ context.Context, jti string, userID uuid.UUID, meta Metadata) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.nextID++
	rec := &models.RefreshToken{
		ID:        s.nextID,
		JTI:       jti,
		UserID:    userID,
		Token:     meta.TokenHash,
		ExpiresAt: now.Add(s.window),
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		DeviceID:  meta.DeviceID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byJTI[jti] = rec

	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) IsValid(_ context.Context, jti string, userID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byJTI[jti]
	if !ok || rec.UserID != userID {
		return false
	}
	return !rec.Revoked && rec.ExpiresAt.After(time.Now())
}

func (s *MemoryStore) Revoke(_ context.Context, jti string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byJTI[jti]
	if !ok {
		return false
	}
	rec.Revoked = true
	rec.UpdatedAt = time.Now()
	return true
}

func (s *MemoryStore) RevokeAllByUser(_ context.Context, userID uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	now := time.Now()
	for _, rec := range s.byJTI {
		if rec.UserID == userID && !rec.Revoked {
			rec.Revoked = true
			rec.UpdatedAt = now
			n++
		}
	}
	return n
}

func (s *MemoryStore) CleanExpired(_ context.Context) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	now := time.Now()
	for jti, rec := range s.byJTI {
		if !rec.ExpiresAt.After(now) {
			delete(s.byJTI, jti)
			n++
		}
	}
	return n
}

func (s *MemoryStore) FindValidByUser(_ context.Context, userID uuid.UUID) []models.RefreshToken {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var out []models.RefreshToken
	for _, rec := range s.byJTI {
		if rec.UserID == userID && !rec.Revoked && rec.ExpiresAt.After(now) {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *MemoryStore) FindWithAudit(_ context.Context, userID uuid.UUID, limit int) []AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var recs []*models.RefreshToken
	for _, rec := range s.byJTI {
		if rec.UserID == userID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].CreatedAt.After(recs[j].CreatedAt) })
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}

	out := make([]AuditRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, AuditRecord{
			JTI:       r.JTI,
			UserAgent: r.UserAgent,
			IPAddress: r.IPAddress,
			DeviceID:  r.DeviceID,
			Revoked:   r.Revoked,
			ExpiresAt: r.ExpiresAt,
			CreatedAt: r.CreatedAt,
		})
	}
	return out
}

func (s *MemoryStore) Stats(_ context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var st Stats
	for _, rec := range s.byJTI {
		st.Total++
		switch {
		case !rec.ExpiresAt.After(now):
			st.Expired++
		case rec.Revoked:
			st.Revoked++
		default:
			st.Valid++
		}
	}
	st.ActivePercentage = activePercentage(st.Valid, st.Total)
	return st
}
