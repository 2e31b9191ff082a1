package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/linechat-server/internal/core"
)

// AdminHandlers exposes read-mostly views of the hub.
type AdminHandlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewAdminHandlers creates a new admin handlers instance.
func NewAdminHandlers(hub *core.Hub, logger *zerolog.Logger) *AdminHandlers {
	return &AdminHandlers{
		hub: hub,
		log: logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ChannelResponse represents a channel in API responses.
type ChannelResponse struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Live     int    `json:"live"`
	Reserved int    `json:"reserved"`
	History  int    `json:"history"`
}

// SessionResponse represents a connected session in API responses.
type SessionResponse struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Remote      string `json:"remote"`
	SignedIn    bool   `json:"signed_in"`
	ConnectedAt string `json:"connected_at"`
	Dropped     int64  `json:"dropped"`
}

// PolicyRequest is the body of a policy update.
type PolicyRequest struct {
	SeatReservation *bool `json:"seat_reservation" binding:"required"`
}

// PolicyResponse reports the current policy.
type PolicyResponse struct {
	SeatReservation bool `json:"seat_reservation"`
}

// ListChannels reports occupancy of every channel.
// GET /api/channels
func (h *AdminHandlers) ListChannels(c *gin.Context) {
	c.JSON(http.StatusOK, lo.Map(h.hub.ChannelStats(), func(st core.ChannelStats, _ int) ChannelResponse {
		return ChannelResponse{
			Name:     st.Name,
			Capacity: st.Capacity,
			Live:     st.Live,
			Reserved: st.Reserved,
			History:  st.History,
		}
	}))
}

// ListSessions reports every connected session.
// GET /api/sessions
func (h *AdminHandlers) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, lo.Map(h.hub.Sessions(), func(s *core.Session, _ int) SessionResponse {
		return SessionResponse{
			ID:          s.ID,
			Label:       s.Label(),
			Remote:      s.Remote,
			SignedIn:    s.User() != nil,
			ConnectedAt: s.ConnectedAt.UTC().Format(time.RFC3339),
			Dropped:     s.Dropped(),
		}
	}))
}

// GetPolicy reports the seat reservation policy.
// GET /api/policy
func (h *AdminHandlers) GetPolicy(c *gin.Context) {
	c.JSON(http.StatusOK, PolicyResponse{SeatReservation: h.hub.SeatReservation()})
}

// UpdatePolicy switches the seat reservation policy.
// PUT /api/policy
func (h *AdminHandlers) UpdatePolicy(c *gin.Context) {
	var req PolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid policy request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	h.hub.SetSeatReservation(*req.SeatReservation)
	c.JSON(http.StatusOK, PolicyResponse{SeatReservation: h.hub.SeatReservation()})
}
