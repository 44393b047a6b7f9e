package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pharmaspot/internal/apperr"
	"pharmaspot/internal/auth"
	"pharmaspot/internal/database"
	"pharmaspot/internal/ledger"
)

// Assistant answers free-text questions about the shop.
type Assistant interface {
	Ask(ctx context.Context, message string) (string, error)
}

// Handler serves every API route. Assistant may be nil when no model key
// is configured.
type Handler struct {
	Store     *database.Store
	Auth      *auth.Service
	Ledger    *ledger.Service
	Assistant Assistant

	AppName    string
	Version    string
	Production bool
	Now        func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

// fail hands err to the error middleware.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
}

func ok(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// bindJSON decodes the body and reports a validation error on failure.
func bindJSON(c *gin.Context, dst any, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, apperr.Validation(message))
		return false
	}
	return true
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, apperr.Validation("Invalid "+name))
		return 0, false
	}
	return id, true
}

func parseID(v string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.New("id must be positive")
	}
	return id, nil
}

func pageQuery(c *gin.Context) database.Page {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return database.Page{Page: page, Limit: limit}
}

func intQuery(c *gin.Context, name string) (int, error) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// parseTime accepts RFC 3339 timestamps or plain dates. A plain date used
// as the end of a range covers the whole day.
func parseTime(v string, endOfDay bool) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		d = d.Add(24*time.Hour - time.Second)
	}
	return d, nil
}

// flexString accepts a JSON string or number; the renderer sends ids both ways.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flag accepts true/false, 1/0 or the HTML checkbox value "on".
type flag bool

func (f *flag) UnmarshalJSON(b []byte) error {
	switch strings.Trim(string(bytes.TrimSpace(b)), `"`) {
	case "true", "1", "on":
		*f = true
	case "false", "0", "off", "", "null":
		*f = false
	default:
		return fmt.Errorf("invalid flag value %s", b)
	}
	return nil
}
