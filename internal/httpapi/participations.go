package httpapi

import (
	"errors"
	"net/http"

	"callout-engine/internal/apperrors"
	"callout-engine/internal/auth"
	"callout-engine/internal/participation"

	"github.com/gin-gonic/gin"
)

type createParticipationRequest struct {
	ContactID     string            `json:"contact_id" binding:"required"`
	Msisdn        string            `json:"msisdn"`
	CallFlowLogic string            `json:"call_flow_logic"`
	Metadata      map[string]string `json:"metadata"`
}

// CreateParticipation enrolls one contact into a callout. Bulk enrollment
// belongs to the callout_population batch operation.
func (h Handlers) CreateParticipation(c *gin.Context) {
	co, ok := h.ownCallout(c, c.Param("callout_id"))
	if !ok {
		return
	}
	var req createParticipationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "contact_id required"})
		return
	}

	contact, err := h.Contacts.Find(c.Request.Context(), req.ContactID)
	if err != nil {
		respondError(c, err)
		return
	}
	if contact.AccountID != auth.AccountFromGin(c) {
		respondError(c, apperrors.ErrNotFound)
		return
	}

	p, err := h.Participations.Enroll(c.Request.Context(), participation.CalloutParticipation{
		CalloutID:     co.ID,
		Msisdn:        req.Msisdn,
		CallFlowLogic: req.CallFlowLogic,
		Metadata:      req.Metadata,
	}, contact)
	if err != nil {
		if errors.Is(err, participation.ErrDuplicate) {
			respondError(c, apperrors.Conflictf("contact is already enrolled in this callout"))
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h Handlers) ListParticipations(c *gin.Context) {
	co, ok := h.ownCallout(c, c.Param("callout_id"))
	if !ok {
		return
	}
	rows, err := h.Participations.List(c.Request.Context(), participation.Filter{CalloutID: co.ID})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"callout_participations": rows})
}

// ownParticipation resolves ownership through the parent callout.
func (h Handlers) ownParticipation(c *gin.Context, id string) (participation.CalloutParticipation, bool) {
	p, err := h.Participations.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return participation.CalloutParticipation{}, false
	}
	co, err := h.Callouts.Get(c.Request.Context(), p.CalloutID)
	if err != nil || co.AccountID != auth.AccountFromGin(c) {
		respondError(c, apperrors.ErrNotFound)
		return participation.CalloutParticipation{}, false
	}
	return p, true
}

func (h Handlers) GetParticipation(c *gin.Context) {
	p, ok := h.ownParticipation(c, c.Param("participation_id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h Handlers) DeleteParticipation(c *gin.Context) {
	p, ok := h.ownParticipation(c, c.Param("participation_id"))
	if !ok {
		return
	}
	if err := h.Participations.Delete(c.Request.Context(), p.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
