package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"call-inbox/internal/calls"
	"call-inbox/internal/inbox"
	"call-inbox/internal/store"
	"call-inbox/internal/upstream"
	"call-inbox/internal/view"
	"call-inbox/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call the inbox service, return JSON.
type Handlers struct {
	Inbox *inbox.Service

	// Ping checks optional backing services (Postgres, Redis). Nil means none.
	Ping func(ctx context.Context) error
}

func (h Handlers) Health(c *gin.Context) {
	if h.Ping != nil {
		if err := h.Ping(c.Request.Context()); err != nil {
			logger.FromGin(c).Warn("health check failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "records": h.Inbox.Len()})
}

// --- Views ---

func (h Handlers) ListCalls(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.Inbox.View(q))
}

func (h Handlers) Days(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"days": h.Inbox.Days()})
}

func (h Handlers) Summary(c *gin.Context) {
	c.JSON(http.StatusOK, h.Inbox.Summary())
}

func (h Handlers) GetCall(c *gin.Context) {
	rec, err := h.Inbox.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h Handlers) History(c *gin.Context) {
	limit, err := intParam(c, "limit")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entries, err := h.Inbox.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// --- Mutations ---

// ToggleArchive flips the archived flag upstream.
// RBAC: agent or admin.
func (h Handlers) ToggleArchive(c *gin.Context) {
	rec, err := h.Inbox.ToggleArchive(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type addNoteRequest struct {
	Content string `json:"content"`
}

// AddNote attaches a note upstream.
// RBAC: agent or admin.
func (h Handlers) AddNote(c *gin.Context) {
	var req addNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	rec, err := h.Inbox.AddNote(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h Handlers) Refresh(c *gin.Context) {
	n, err := h.Inbox.Refresh(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loaded": n})
}

// writeError maps service errors onto status codes. Anything unrecognised
// came from the upstream round trip.
func writeError(c *gin.Context, err error) {
	var se *upstream.StatusError
	switch {
	case errors.Is(err, inbox.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
	case errors.Is(err, inbox.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, calls.ErrMalformed):
		// Request input is validated before this point, so a bad record came from upstream.
		logger.FromGin(c).Warn("upstream returned malformed record", "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "upstream returned a malformed record"})
	case errors.Is(err, store.ErrIntakeClosed):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
	case errors.As(err, &se) && se.StatusCode == http.StatusNotFound:
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found upstream"})
	default:
		logger.FromGin(c).Warn("upstream request failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "upstream request failed"})
	}
}

func parseQuery(c *gin.Context) (inbox.Query, error) {
	var q inbox.Query

	switch strings.ToLower(c.Query("grouped")) {
	case "", "false", "0":
		q.Mode = view.ModeUngrouped
	case "true", "1":
		q.Mode = view.ModeGroupedByDay
	default:
		return q, errors.New("grouped must be true or false")
	}

	for _, key := range []string{"day", "select_day"} {
		v := c.Query(key)
		if v == "" {
			continue
		}
		if _, err := calls.ParseDay(v); err != nil {
			return q, errors.New(key + " must be YYYY-MM-DD")
		}
	}
	q.Day = c.Query("day")
	q.SelectDay = c.Query("select_day")

	if v := c.Query("call_type"); v != "" {
		ct := calls.CallType(v)
		if ct != calls.ParseCallType(v) {
			return q, errors.New("call_type must be answered, missed, voicemail or unknown")
		}
		q.Filters.CallType = ct
	}
	if v := c.Query("direction"); v != "" {
		d := calls.Direction(v)
		if !d.Valid() {
			return q, errors.New("direction must be inbound or outbound")
		}
		q.Filters.Direction = d
	}

	var err error
	if q.PageSize, err = intParam(c, "page_size"); err != nil {
		return q, err
	}
	if q.Offset, err = intParam(c, "offset"); err != nil {
		return q, err
	}
	if c.Query("page") != "" {
		page, err := intParam(c, "page")
		if err != nil {
			return q, err
		}
		q.Page = &page
	}
	return q, nil
}

func intParam(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	return n, nil
}
