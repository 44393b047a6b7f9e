package database

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"pharmaspot/internal/models"
)

// --- categories ---

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	err := s.conn(ctx).Order("name ASC").Find(&out).Error
	return out, translate(err)
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	var c models.Category
	if err := s.conn(ctx).First(&c, id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	c.ID = 0
	return translate(s.conn(ctx).Create(c).Error)
}

func (s *Store) UpdateCategory(ctx context.Context, c *models.Category) error {
	res := s.conn(ctx).Model(&models.Category{ID: c.ID}).
		Select("name", "description").
		Updates(c)
	return affected(res)
}

// DeleteCategory removes the category; its products become uncategorised.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	return affected(s.conn(ctx).Delete(&models.Category{}, id))
}

// --- customers ---

func (s *Store) ListCustomers(ctx context.Context, q string, page Page) ([]models.Customer, int64, error) {
	query := s.conn(ctx).Model(&models.Customer{})
	if term := strings.TrimSpace(q); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where("LOWER(name) LIKE ? OR phone LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}
	offset, limit := page.normalize()
	var out []models.Customer
	err := query.Order("name ASC").Offset(offset).Limit(limit).Find(&out).Error
	return out, total, translate(err)
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	var c models.Customer
	if err := s.conn(ctx).First(&c, id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, c *models.Customer) error {
	c.ID = 0
	return translate(s.conn(ctx).Create(c).Error)
}

func (s *Store) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	res := s.conn(ctx).Model(&models.Customer{ID: c.ID}).
		Select("name", "phone", "email", "address", "notes").
		Updates(c)
	return affected(res)
}

func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	return affected(s.conn(ctx).Delete(&models.Customer{}, id))
}

// --- settings ---

// GetSettings returns the store settings, or an empty row when none were
// saved yet.
func (s *Store) GetSettings(ctx context.Context) (*models.Settings, error) {
	var st models.Settings
	err := s.conn(ctx).First(&st, models.SettingsID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.Settings{ID: models.SettingsID}, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &st, nil
}

// SaveSettings replaces the single settings row.
func (s *Store) SaveSettings(ctx context.Context, st *models.Settings) error {
	st.ID = models.SettingsID
	return translate(s.conn(ctx).Save(st).Error)
}

// affected turns a zero-row write into ErrNotFound.
func affected(res *gorm.DB) error {
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
