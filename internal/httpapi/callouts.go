package httpapi

import (
	"net/http"

	"callout-engine/internal/apperrors"
	"callout-engine/internal/auth"
	"callout-engine/internal/callout"
	"callout-engine/internal/reporting"
	"callout-engine/pkg/logger"

	"github.com/gin-gonic/gin"
)

type voicePayload struct {
	URL         string `json:"url" binding:"required"`
	ContentType string `json:"content_type"`
	ByteSize    int64  `json:"byte_size"`
}

type createCalloutRequest struct {
	CallFlowLogic string            `json:"call_flow_logic"`
	Voice         voicePayload      `json:"voice" binding:"required"`
	Metadata      map[string]string `json:"metadata"`
	LocationIDs   []string          `json:"location_ids" binding:"required,min=1"`
}

func (h Handlers) CreateCallout(c *gin.Context) {
	var req createCalloutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "voice and location_ids required"})
		return
	}
	co, err := h.Callouts.Create(c.Request.Context(), callout.CreateRequest{
		AccountID:     auth.AccountFromGin(c),
		CallFlowLogic: req.CallFlowLogic,
		Voice: callout.Voice{
			URL:         req.Voice.URL,
			ContentType: req.Voice.ContentType,
			ByteSize:    req.Voice.ByteSize,
		},
		Metadata:    req.Metadata,
		LocationIDs: req.LocationIDs,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, co)
}

func (h Handlers) ListCallouts(c *gin.Context) {
	rows, err := h.Callouts.List(c.Request.Context(), auth.AccountFromGin(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"callouts": rows})
}

// ownCallout loads a callout and hides it from foreign accounts.
func (h Handlers) ownCallout(c *gin.Context, id string) (callout.Callout, bool) {
	co, err := h.Callouts.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return callout.Callout{}, false
	}
	if co.AccountID != auth.AccountFromGin(c) {
		respondError(c, apperrors.ErrNotFound)
		return callout.Callout{}, false
	}
	return co, true
}

func (h Handlers) GetCallout(c *gin.Context) {
	co, ok := h.ownCallout(c, c.Param("callout_id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, co)
}

type updateCalloutRequest struct {
	CallFlowLogic *string           `json:"call_flow_logic"`
	Voice         *voicePayload     `json:"voice"`
	Metadata      map[string]string `json:"metadata"`
	LocationIDs   []string          `json:"location_ids"`
}

func (h Handlers) UpdateCallout(c *gin.Context) {
	co, ok := h.ownCallout(c, c.Param("callout_id"))
	if !ok {
		return
	}
	var req updateCalloutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	upd := callout.UpdateRequest{
		CallFlowLogic: req.CallFlowLogic,
		Metadata:      req.Metadata,
		LocationIDs:   req.LocationIDs,
	}
	if req.Voice != nil {
		upd.Voice = &callout.Voice{
			URL:         req.Voice.URL,
			ContentType: req.Voice.ContentType,
			ByteSize:    req.Voice.ByteSize,
		}
	}
	out, err := h.Callouts.Update(c.Request.Context(), co.ID, upd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) DeleteCallout(c *gin.Context) {
	co, ok := h.ownCallout(c, c.Param("callout_id"))
	if !ok {
		return
	}
	if err := h.Callouts.Delete(c.Request.Context(), co.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type calloutEventRequest struct {
	Event string `json:"event" binding:"required"`
}

// CalloutEvent drives the campaign state machine. An inapplicable event is
// not an error: the callout is returned unchanged with applied=false.
func (h Handlers) CalloutEvent(c *gin.Context) {
	co, ok := h.ownCallout(c, c.Param("callout_id"))
	if !ok {
		return
	}
	var req calloutEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "event required"})
		return
	}
	ev, ok := callout.ParseEvent(req.Event)
	if !ok {
		respondError(c, apperrors.NewValidation("event", "must be one of start, pause, resume, stop"))
		return
	}
	out, applied, err := h.Callouts.ApplyEvent(c.Request.Context(), co.ID, ev)
	if err != nil {
		respondError(c, err)
		return
	}
	if h.Audit != nil {
		if err := h.Audit.LogCalloutEvent(c.Request.Context(), out.AccountID, out.ID, c.ClientIP(), req.Event, applied); err != nil {
			logger.FromGin(c).Warn("audit append failed", "error", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"callout": out, "applied": applied})
}

func (h Handlers) CalloutCallsSummary(c *gin.Context) {
	co, ok := h.ownCallout(c, c.Param("callout_id"))
	if !ok {
		return
	}
	out, err := h.Reporting.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		AccountID: auth.AccountFromGin(c),
		CalloutID: co.ID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
