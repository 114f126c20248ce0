package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/productif/internal/telegraph"
	"gorm.io/gorm"
)

const defaultDays = 7

var (
	errBadSince = errors.New("since must be YYYY-MM-DD or RFC 3339")
	errBadDays  = errors.New("days must be a positive number")
)

// registerRoutes sets up all routes on the Gin router.
func registerRoutes(router *gin.Engine, opts Opts) {
	router.GET("/healthz", handleHealth(opts.DB))

	api := router.Group("/api")
	api.GET("/actions", handleActions(opts.Exchanges, opts.Now))
	api.GET("/exchanges", handleExchanges(opts.Exchanges))

	if opts.Webhook != nil {
		opts.Webhook.Register(router, WebhookPath)
	}
}

func handleHealth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// handleActions summarizes executed actions since a point in time, given
// as ?since=YYYY-MM-DD or RFC 3339, or as ?days=N (default 7).
func handleActions(exchanges *telegraph.ExchangeLog, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		since, err := parseSince(c.Query("since"), c.Query("days"), now())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		counts, err := exchanges.ActionCounts(c.Request.Context(), since)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		var total int64
		for _, ac := range counts {
			total += ac.Count
		}
		if counts == nil {
			counts = []telegraph.ActionCount{}
		}
		c.JSON(http.StatusOK, gin.H{
			"since":   since.Format(time.RFC3339),
			"total":   total,
			"actions": counts,
		})
	}
}

type exchangeRow struct {
	ID         string    `json:"id"`
	ContactID  uint      `json:"contact_id"`
	Platform   string    `json:"platform"`
	Inbound    string    `json:"inbound"`
	Category   string    `json:"category"`
	Action     string    `json:"action"`
	Handled    bool      `json:"handled"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// handleExchanges lists recent exchanges, optionally for one ?contact=ID.
// Responses are omitted; they can be long and carry user data.
func handleExchanges(exchanges *telegraph.ExchangeLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var contactID uint64
		if v := c.Query("contact"); v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "contact must be a number"})
				return
			}
			contactID = id
		}
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if err != nil || limit <= 0 || limit > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}

		rows, err := exchanges.Recent(c.Request.Context(), uint(contactID), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out := make([]exchangeRow, len(rows))
		for i, ex := range rows {
			out[i] = exchangeRow{
				ID:         ex.ID,
				ContactID:  ex.ContactID,
				Platform:   ex.Platform,
				Inbound:    ex.Inbound,
				Category:   ex.Category,
				Action:     ex.ActionExecuted,
				Handled:    ex.Handled,
				DurationMS: ex.DurationMS,
				CreatedAt:  ex.CreatedAt,
			}
		}
		c.JSON(http.StatusOK, gin.H{"exchanges": out})
	}
}

func parseSince(since, days string, now time.Time) (time.Time, error) {
	if since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			return t, nil
		}
		t, err := time.ParseInLocation(time.DateOnly, since, now.Location())
		if err != nil {
			return time.Time{}, errBadSince
		}
		return t, nil
	}
	n := defaultDays
	if days != "" {
		v, err := strconv.Atoi(days)
		if err != nil || v <= 0 {
			return time.Time{}, errBadDays
		}
		n = v
	}
	return now.AddDate(0, 0, -n), nil
}
