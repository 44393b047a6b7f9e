package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pharmaspot/internal/apperr"
	"pharmaspot/internal/auth"
	"pharmaspot/internal/database"
	"pharmaspot/internal/logging"
	"pharmaspot/internal/middleware"
	"pharmaspot/internal/models"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionInfo struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type loginResponse struct {
	*models.User
	Auth    bool        `json:"auth"`
	Session sessionInfo `json:"session"`
}

// --- POST: /api/users/login ---
func (h *Handler) Login(c *gin.Context) {
	var input LoginRequest
	// 1. Validate input JSON
	if err := c.ShouldBindJSON(&input); err != nil || strings.TrimSpace(input.Username) == "" || input.Password == "" {
		fail(c, apperr.New(http.StatusBadRequest, "MISSING_CREDENTIALS", "Username and password are required"))
		return
	}

	// 2. Check credentials and the lockout policy
	res, err := h.Auth.Login(c.Request.Context(), auth.LoginInput{
		Login:     input.Username,
		Password:  input.Password,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	var locked *auth.LockedError
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"auth": false, "message": "Invalid credentials"})
		return
	case errors.As(err, &locked):
		c.JSON(http.StatusForbidden, gin.H{"auth": false, "message": locked.Error()})
		return
	case err != nil:
		fail(c, err)
		return
	}

	// 3. Success: user fields plus the session
	c.JSON(http.StatusOK, loginResponse{
		User:    res.User,
		Auth:    true,
		Session: sessionInfo{Token: res.Token, ExpiresAt: res.ExpiresAt},
	})
}

// --- GET: /api/users/check ---
// Creates the default administrator on first start.
func (h *Handler) CheckAdmin(c *gin.Context) {
	temp, err := h.Auth.EnsureAdmin(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if temp != "" && !h.Production {
		logging.FromContext(c.Request.Context()).Warn("temporary admin password issued; it will not be shown again",
			"password", temp)
	}
	c.Status(http.StatusOK)
}

// --- GET: /api/users/logout/:userId ---
func (h *Handler) Logout(c *gin.Context) {
	id, valid := idParam(c, "userId")
	if !valid {
		return
	}
	caller := middleware.CurrentIdentity(c)
	if caller.UserID != id && !caller.Has(models.PermUsers) {
		fail(c, apperr.Forbidden("PERMISSION_DENIED", "You can only log out your own account"))
		return
	}
	if err := h.Auth.Logout(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, "Logged out successfully")
}

type ChangePasswordRequest struct {
	CurrentPassword string     `json:"currentPassword"`
	NewPassword     string     `json:"newPassword"`
	UserID          flexString `json:"userId"`
}

// --- POST: /api/users/change-password ---
func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if !bindJSON(c, &req, "Invalid request body") {
		return
	}
	if req.NewPassword == "" {
		fail(c, apperr.Validation("newPassword is required"))
		return
	}
	var target int64
	if req.UserID != "" {
		id, err := parseID(string(req.UserID))
		if err != nil {
			fail(c, apperr.Validation("Invalid userId"))
			return
		}
		target = id
	}

	err := h.Auth.ChangePassword(c.Request.Context(), auth.ChangePasswordInput{
		Actor:    middleware.CurrentIdentity(c),
		TargetID: target,
		Current:  req.CurrentPassword,
		New:      req.NewPassword,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Password changed successfully")
}

// --- GET: /api/users/me/permissions ---
func (h *Handler) MyPermissions(c *gin.Context) {
	u, err := h.Store.GetUser(c.Request.Context(), middleware.CurrentIdentity(c).UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u.PermissionSet())
}

// --- GET: /api/users/user/:userId ---
func (h *Handler) GetUser(c *gin.Context) {
	id, valid := idParam(c, "userId")
	if !valid {
		return
	}
	u, err := h.Store.GetUser(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// --- GET: /api/users/all ---
func (h *Handler) ListUsers(c *gin.Context) {
	users, total, err := h.Store.ListUsers(c.Request.Context(), pageQuery(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users, "total": total})
}

// --- DELETE: /api/users/user/:userId ---
func (h *Handler) DeleteUser(c *gin.Context) {
	id, valid := idParam(c, "userId")
	if !valid {
		return
	}
	if id == models.AdminUserID {
		fail(c, apperr.Forbidden("CANNOT_DELETE_ADMIN", "Cannot delete the administrator account"))
		return
	}
	if err := h.Store.DeleteUser(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, "User deleted")
}

type UserRequest struct {
	ID               flexString `json:"id"`
	Username         string     `json:"username"`
	Fullname         string     `json:"fullname"`
	Password         string     `json:"password"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone"`
	PermProducts     flag       `json:"perm_products"`
	PermCategories   flag       `json:"perm_categories"`
	PermTransactions flag       `json:"perm_transactions"`
	PermUsers        flag       `json:"perm_users"`
	PermSettings     flag       `json:"perm_settings"`
}

// --- POST: /api/users/post ---
// Creates a user when no id is given, otherwise updates it.
func (h *Handler) SaveUser(c *gin.Context) {
	var req UserRequest
	if !bindJSON(c, &req, "Invalid user data") {
		return
	}
	in := auth.UserInput{
		Username: req.Username,
		Fullname: req.Fullname,
		Password: req.Password,
		Email:    req.Email,
		Phone:    req.Phone,
		Permissions: models.PermissionSet{
			Products:     bool(req.PermProducts),
			Categories:   bool(req.PermCategories),
			Transactions: bool(req.PermTransactions),
			Users:        bool(req.PermUsers),
			Settings:     bool(req.PermSettings),
		},
	}
	if req.ID != "" {
		id, err := parseID(string(req.ID))
		if err != nil {
			fail(c, apperr.Validation("Invalid id"))
			return
		}
		in.ID = id
	}

	u, created, err := h.Auth.SaveUser(c.Request.Context(), in)
	switch {
	case errors.Is(err, database.ErrConflict):
		fail(c, apperr.Conflict("USERNAME_EXISTS", "Username already exists"))
		return
	case errors.Is(err, database.ErrNotFound):
		fail(c, apperr.NotFound("USER_NOT_FOUND", "User not found"))
		return
	case err != nil:
		fail(c, err)
		return
	}
	if created {
		c.JSON(http.StatusCreated, gin.H{"id": u.ID, "username": u.Username, "fullname": u.Fullname})
		return
	}
	ok(c, "User updated")
}
