package http

import (
	"errors"
	"net/http"

	"github.com/dkeye/voxbridge/internal/app"
	"github.com/dkeye/voxbridge/internal/app/orch"
	"github.com/dkeye/voxbridge/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Orch *orch.Orchestrator
	ICE  []webrtc.ICEServer
}

type createRoomRequest struct {
	HostLanguage       string   `json:"hostLanguage" binding:"required"`
	SupportedLanguages []string `json:"supportedLanguages"`
	MeetingName        string   `json:"meetingName"`
}

type createRoomResponse struct {
	RoomCode string `json:"roomCode"`
}

func (h *Handlers) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	code, err := h.Orch.Rooms.Create(app.CreateRoomRequest{
		HostLanguage:       req.HostLanguage,
		SupportedLanguages: req.SupportedLanguages,
		MeetingName:        req.MeetingName,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, createRoomResponse{RoomCode: string(code)})
}

func (h *Handlers) LookupRoom(c *gin.Context) {
	code := c.Param("code")
	if !h.Orch.Rooms.IsValidCode(code) {
		c.JSON(http.StatusOK, domain.RoomSummary{Exists: false})
		return
	}
	c.JSON(http.StatusOK, h.Orch.Rooms.Lookup(code))
}

func (h *Handlers) ICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.ICE})
}

func (h *Handlers) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// respondError maps domain errors to status codes.
func respondError(c *gin.Context, err error) {
	switch {
	case app.IsUnavailable(err):
		log.Error().Err(err).Str("module", "adapters.http").Msg("create room unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, app.ErrInvalidLanguage), errors.Is(err, app.ErrMeetingNameTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, app.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("module", "adapters.http").Msg("unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
