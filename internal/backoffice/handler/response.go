package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────────────────────────────────────
// Envelope
// ──────────────────────────────────────────────────────────────────────────────

func respondSuccess(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg, "code": code})
}

// ──────────────────────────────────────────────────────────────────────────────
// Paging
// ──────────────────────────────────────────────────────────────────────────────

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// pageWindow is a 1-based page of a listing.
type pageWindow struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// pageFromQuery reads ?page and ?limit. Unparsable or out-of-range values
// fall back to the first page of defaultPageSize items.
func pageFromQuery(c *gin.Context) pageWindow {
	w := pageWindow{Page: 1, Limit: defaultPageSize}
	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 1 {
		w.Page = p
	}
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l >= 1 && l <= maxPageSize {
		w.Limit = l
	}
	return w
}

// slicePage returns the items on page w. Pages past the end are empty.
func slicePage[T any](items []T, w pageWindow) []T {
	// Compare page numbers first; (Page-1)*Limit overflows for huge pages.
	if w.Page-1 > len(items)/w.Limit {
		return []T{}
	}
	start := (w.Page - 1) * w.Limit
	if start >= len(items) {
		return []T{}
	}
	return items[start:min(start+w.Limit, len(items))]
}

func respondPage[T any](c *gin.Context, items []T, w pageWindow) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    slicePage(items, w),
		"meta":    gin.H{"total": len(items), "page": w.Page, "limit": w.Limit},
	})
}
