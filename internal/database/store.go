package database

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"pharmaspot/internal/models"
)

// Store is the handle every service and handler receives. A Store returned
// by WithTx is bound to that transaction; its methods must not be called
// after the callback returns.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the gorm handle for callers that need raw queries.
func (s *Store) DB() *gorm.DB { return s.db }

// WithTx runs fn inside one database transaction. The whole unit is rolled
// back when fn returns an error.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// Page selects one window of a list. Zero values mean the first page of
// the default size.
type Page struct {
	Page  int
	Limit int
}

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

func (p Page) normalize() (offset, limit int) {
	limit = p.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit, limit
}

// --- actor ---

// Actor identifies who caused a write. It rides in the request context so
// audit records can be attributed without threading it through every call.
type Actor struct {
	UserID    int64
	IP        string
	UserAgent string
}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

// --- audit ---

// Audit appends one audit record. Missing attribution is filled from the
// context's Actor.
func (s *Store) Audit(ctx context.Context, entry *models.AuditLog) error {
	if a, ok := ActorFrom(ctx); ok {
		if entry.UserID == nil && a.UserID != 0 {
			uid := a.UserID
			entry.UserID = &uid
		}
		if entry.IPAddress == "" {
			entry.IPAddress = a.IP
		}
		if entry.UserAgent == "" {
			entry.UserAgent = a.UserAgent
		}
	}
	return translate(s.conn(ctx).Create(entry).Error)
}

// ListAudit returns the newest records first.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]models.AuditLog, error) {
	_, limit = Page{Limit: limit}.normalize()
	var out []models.AuditLog
	err := s.conn(ctx).Order("id DESC").Limit(limit).Find(&out).Error
	return out, translate(err)
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func int64Ptr(v int64) *int64 { return &v }
