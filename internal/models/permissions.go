package models

// Permission names one functional area of the application. The set is
// closed: each value maps to exactly one boolean column on User.
type Permission string

const (
	PermProducts     Permission = "products"
	PermCategories   Permission = "categories"
	PermTransactions Permission = "transactions"
	PermUsers        Permission = "users"
	PermSettings     Permission = "settings"
)

// Permissions lists every known permission.
var Permissions = []Permission{PermProducts, PermCategories, PermTransactions, PermUsers, PermSettings}

// Has reports whether the user holds p. Unknown permissions are never granted.
func (u *User) Has(p Permission) bool {
	return u.PermissionSet().Has(p)
}

// PermissionSet is the wire shape of a user's permissions.
type PermissionSet struct {
	Products     bool `json:"perm_products"`
	Categories   bool `json:"perm_categories"`
	Transactions bool `json:"perm_transactions"`
	Users        bool `json:"perm_users"`
	Settings     bool `json:"perm_settings"`
}

// Has maps each permission to its flag; the mapping is fixed so request
// input never selects a column.
func (s PermissionSet) Has(p Permission) bool {
	switch p {
	case PermProducts:
		return s.Products
	case PermCategories:
		return s.Categories
	case PermTransactions:
		return s.Transactions
	case PermUsers:
		return s.Users
	case PermSettings:
		return s.Settings
	}
	return false
}

func (u *User) PermissionSet() PermissionSet {
	return PermissionSet{
		Products:     u.PermProducts,
		Categories:   u.PermCategories,
		Transactions: u.PermTransactions,
		Users:        u.PermUsers,
		Settings:     u.PermSettings,
	}
}

// Apply copies the set onto the user's permission columns.
func (s PermissionSet) Apply(u *User) {
	u.PermProducts = s.Products
	u.PermCategories = s.Categories
	u.PermTransactions = s.Transactions
	u.PermUsers = s.Users
	u.PermSettings = s.Settings
}

// AllPermissions grants every area; used for the administrator.
func AllPermissions() PermissionSet {
	return PermissionSet{Products: true, Categories: true, Transactions: true, Users: true, Settings: true}
}
