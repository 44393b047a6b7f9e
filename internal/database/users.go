package database

import (
	"context"
	"strconv"
	"strings"
	"time"

	"pharmaspot/internal/models"
)

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// FindUserByLogin matches either the username or the email address.
func (s *Store) FindUserByLogin(ctx context.Context, login string) (*models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, ErrNotFound
	}
	var u models.User
	err := s.conn(ctx).
		Where("username = ? OR (email <> '' AND email = ?)", login, login).
		Order("id ASC").
		First(&u).Error
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context, page Page) ([]models.User, int64, error) {
	var total int64
	if err := s.conn(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}
	offset, limit := page.normalize()
	var out []models.User
	err := s.conn(ctx).Order("id ASC").Offset(offset).Limit(limit).Find(&out).Error
	return out, total, translate(err)
}

// CreateUser inserts u. An explicit id is honoured so the administrator
// can be created as user 1.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if err := tx.conn(ctx).Create(u).Error; err != nil {
			return translate(err)
		}
		return tx.Audit(ctx, &models.AuditLog{
			Action:   models.ActionUserCreated,
			Table:    "users",
			RecordID: strconv.FormatInt(u.ID, 10),
			NewValue: toJSON(snapshotUser(u, false)),
		})
	})
}

// UpdateUser overwrites the editable columns of u. Password and permission
// changes are audited with the password masked.
func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	return s.WithTx(ctx, func(tx *Store) error {
		old, err := tx.GetUser(ctx, u.ID)
		if err != nil {
			return err
		}
		err = tx.conn(ctx).Model(&models.User{ID: u.ID}).
			Select("username", "fullname", "password", "email", "phone",
				"perm_products", "perm_categories", "perm_transactions", "perm_users", "perm_settings",
				"must_change_password").
			Updates(u).Error
		if err != nil {
			return translate(err)
		}

		pwChanged := old.PasswordHash != u.PasswordHash
		if !pwChanged && old.PermissionSet() == u.PermissionSet() {
			return nil
		}
		return tx.Audit(ctx, &models.AuditLog{
			Action:   models.ActionUserUpdated,
			Table:    "users",
			RecordID: strconv.FormatInt(u.ID, 10),
			OldValue: toJSON(snapshotUser(old, false)),
			NewValue: toJSON(snapshotUser(u, pwChanged)),
		})
	})
}

// UpdateUserColumns writes login bookkeeping (status, counters, lock)
// without the USER_UPDATED audit.
func (s *Store) UpdateUserColumns(ctx context.Context, id int64, cols map[string]any) error {
	return affected(s.conn(ctx).Model(&models.User{ID: id}).Updates(cols))
}

// DeleteUser removes the user and every session they hold. The
// administrator account cannot be deleted.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	if id == models.AdminUserID {
		return ErrProtected
	}
	return s.WithTx(ctx, func(tx *Store) error {
		if err := tx.DeleteUserSessions(ctx, id); err != nil {
			return err
		}
		if err := affected(tx.conn(ctx).Delete(&models.User{}, id)); err != nil {
			return err
		}
		return tx.Audit(ctx, &models.AuditLog{
			Action:   models.ActionUserDeleted,
			Table:    "users",
			RecordID: strconv.FormatInt(id, 10),
		})
	})
}

type userSnapshot struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	models.PermissionSet
}

func snapshotUser(u *models.User, passwordChanged bool) userSnapshot {
	snap := userSnapshot{Username: u.Username, PermissionSet: u.PermissionSet()}
	if passwordChanged {
		snap.Password = "[CHANGED]"
	}
	return snap
}

// --- sessions ---

func (s *Store) CreateSession(ctx context.Context, sess *models.Session) error {
	return translate(s.conn(ctx).Create(sess).Error)
}

func (s *Store) FindSession(ctx context.Context, token string) (*models.Session, error) {
	var sess models.Session
	if err := s.conn(ctx).Where("token = ?", token).First(&sess).Error; err != nil {
		return nil, translate(err)
	}
	return &sess, nil
}

func (s *Store) DeleteUserSessions(ctx context.Context, userID int64) error {
	return translate(s.conn(ctx).Where("user_id = ?", userID).Delete(&models.Session{}).Error)
}

// DeleteExpiredSessions purges sessions that expired before now and
// reports how many were removed.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res := s.conn(ctx).Where("expires_at < ?", now.UTC()).Delete(&models.Session{})
	return res.RowsAffected, translate(res.Error)
}
