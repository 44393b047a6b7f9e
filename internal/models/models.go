package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Money travels to the renderer as plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Transaction status codes.
const (
	StatusHeld      = 0 // held order or customer order awaiting fulfillment
	StatusCompleted = 1
)

// WalkInCustomer is the customer reference of a sale with no customer record.
const WalkInCustomer int64 = 0

// AdminUserID is the reserved administrator account.
const AdminUserID int64 = 1

// Category groups products on the POS screen.
type Category struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:120;uniqueIndex;not null" json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Customer struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:200;not null;index" json:"name"`
	Phone     string    `gorm:"size:40" json:"phone"`
	Email     string    `gorm:"size:120;index" json:"email"`
	Address   string    `json:"address"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product - an inventory item. Quantity is only meaningful when TracksStock is set.
type Product struct {
	ID             int64           `gorm:"primaryKey" json:"id"`
	Name           string          `gorm:"size:200;not null;index" json:"name"`
	Generic        string          `gorm:"size:200" json:"generic"`
	CategoryID     *int64          `gorm:"index" json:"category_id"`
	Category       *Category       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	Barcode        *string         `gorm:"size:64;uniqueIndex" json:"barcode"`
	Price          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	CostPrice      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"cost_price"`
	Quantity       int             `gorm:"not null;index" json:"quantity"`
	MinStock       int             `gorm:"not null" json:"min_stock"`
	ExpirationDate string          `gorm:"size:10;index" json:"expiration_date"` // YYYY-MM-DD, empty when not perishable
	TracksStock    bool            `gorm:"not null" json:"tracks_stock"`
	Strength       string          `gorm:"size:60" json:"strength"`
	Form           string          `gorm:"size:60" json:"form"`
	Manufacturer   string          `gorm:"size:120" json:"manufacturer"`
	BatchNumber    string          `gorm:"size:60" json:"batch_number"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (Product) TableName() string { return "inventory" }

// StockDisplay is what the till shows in the quantity column.
func (p Product) StockDisplay() string {
	if !p.TracksStock {
		return "N/A"
	}
	return strconv.Itoa(p.Quantity)
}

// User - an operator of the till.
type User struct {
	ID                  int64      `gorm:"primaryKey" json:"id"`
	Username            string     `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Fullname            string     `gorm:"size:100" json:"fullname"`
	PasswordHash        string     `gorm:"column:password;not null" json:"-"`
	Email               string     `gorm:"size:120;index" json:"email"`
	Phone               string     `gorm:"size:40" json:"phone"`
	PermProducts        bool       `json:"perm_products"`
	PermCategories      bool       `json:"perm_categories"`
	PermTransactions    bool       `json:"perm_transactions"`
	PermUsers           bool       `json:"perm_users"`
	PermSettings        bool       `json:"perm_settings"`
	Status              string     `gorm:"size:64;index" json:"status"`
	MustChangePassword  bool       `json:"must_change_password"`
	LastLogin           *time.Time `json:"last_login"`
	FailedLoginAttempts int        `json:"-"`
	LockedUntil         *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

const (
	statusLoggedIn  = "Logged In"
	statusLoggedOut = "Logged Out"
)

// LoggedInStatus and LoggedOutStatus encode the login state with its timestamp.
func LoggedInStatus(at time.Time) string  { return statusLoggedIn + "_" + at.UTC().Format(time.RFC3339) }
func LoggedOutStatus(at time.Time) string { return statusLoggedOut + "_" + at.UTC().Format(time.RFC3339) }

func (u *User) IsLoggedOut() bool {
	return strings.HasPrefix(u.Status, statusLoggedOut)
}

// IsLocked reports whether the lockout window is still running at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

type Session struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Token     string    `gorm:"size:512;uniqueIndex;not null" json:"-"`
	IPAddress string    `gorm:"size:64" json:"ip_address"`
	UserAgent string    `gorm:"size:255" json:"user_agent"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Transaction - a sale record. UserID and CustomerID are advisory references:
// 0 means "none" (walk-in customer), so they carry no FK constraint.
type Transaction struct {
	ID          string          `gorm:"primaryKey;size:64" json:"id"`
	Date        time.Time       `gorm:"index" json:"date"`
	UserID      int64           `gorm:"index" json:"user_id"`
	Till        int             `json:"till"`
	Status      int             `gorm:"index" json:"status"`
	Total       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	Paid        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"paid"`
	Change      decimal.Decimal `gorm:"column:change_due;type:decimal(12,2);not null" json:"change"`
	Discount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount"`
	Tax         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax"`
	CustomerID  int64           `gorm:"index" json:"customer_id"`
	RefNumber   string          `gorm:"size:64;not null" json:"ref_number"`
	PaymentType string          `gorm:"size:40" json:"payment_type"`
	PaymentInfo string          `json:"payment_info"`
	Notes       string          `json:"notes"`
	Items       LineItems       `gorm:"type:text" json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// IsSettled reports whether the amount paid covers the total.
func (t *Transaction) IsSettled() bool {
	return t.Paid.GreaterThanOrEqual(t.Total)
}

// Settings is a single-row table (id = 1) describing the store and receipts.
type Settings struct {
	ID         int64           `gorm:"primaryKey" json:"-"`
	App        string          `json:"app"`
	Store      string          `json:"store"`
	AddressOne string          `json:"address_one"`
	AddressTwo string          `json:"address_two"`
	Contact    string          `json:"contact"`
	Email      string          `json:"email"`
	Tax        decimal.Decimal `gorm:"type:decimal(6,2);not null" json:"tax"`
	Symbol     string          `gorm:"size:8" json:"symbol"`
	Percentage decimal.Decimal `gorm:"type:decimal(6,2);not null" json:"percentage"`
	ChargeTax  bool            `json:"charge_tax"`
	Footer     string          `json:"footer"`
	Img        string          `json:"img"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (Settings) TableName() string { return "settings" }

// SettingsID is the primary key of the only settings row.
const SettingsID int64 = 1

// AuditLog - append-only record of security and stock relevant changes.
type AuditLog struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    *int64    `gorm:"index" json:"user_id"`
	Action    string    `gorm:"size:40;index;not null" json:"action"`
	Table     string    `gorm:"column:table_name;size:40" json:"table_name"`
	RecordID  string    `gorm:"size:64" json:"record_id"`
	OldValue  string    `json:"old_value,omitempty"`
	NewValue  string    `json:"new_value,omitempty"`
	IPAddress string    `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent string    `gorm:"size:255" json:"user_agent,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_log" }

// Audit actions.
const (
	ActionUserUpdated        = "USER_UPDATED"
	ActionUserCreated        = "USER_CREATED"
	ActionUserDeleted        = "USER_DELETED"
	ActionUserLogin          = "USER_LOGIN"
	ActionUserLogout         = "USER_LOGOUT"
	ActionLoginFailed        = "LOGIN_FAILED"
	ActionAccountLocked      = "ACCOUNT_LOCKED"
	ActionPasswordChanged    = "PASSWORD_CHANGED"
	ActionInventoryUpdated   = "INVENTORY_UPDATED"
	ActionTransactionCreated = "TRANSACTION_CREATED"
)

// All lists every table managed by the store, in migration order.
func All() []any {
	return []any{
		&Category{},
		&Customer{},
		&Product{},
		&User{},
		&Session{},
		&Transaction{},
		&Settings{},
		&AuditLog{},
	}
}
