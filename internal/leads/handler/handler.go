package handler

import (
	"net/http"
	"time"

	"github.com/iwanfadzly/call/internal/leads/repository"
	"github.com/iwanfadzly/call/internal/leads/service"
	"github.com/iwanfadzly/call/internal/leads/transport"
	"github.com/iwanfadzly/call/internal/scheduler"
	"github.com/iwanfadzly/call/platform/httpkit"
	"github.com/iwanfadzly/call/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler exposes lead management endpoints.
type Handler struct {
	svc      *service.Service
	enqueuer scheduler.Enqueuer
	val      *validator.Validator
}

// New creates a new leads handler.
func New(svc *service.Service, enqueuer scheduler.Enqueuer, val *validator.Validator) *Handler {
	return &Handler{svc: svc, enqueuer: enqueuer, val: val}
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	lead, err := h.svc.Create(c.Request.Context(), repository.CreateParams{
		Phone:    req.Phone,
		Name:     req.Name,
		Email:    req.Email,
		Priority: req.Priority,
		Source:   req.Source,
		Tags:     req.Tags,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, transport.ToLeadResponse(lead))
}

func (h *Handler) List(c *gin.Context) {
	params := repository.ListParams{
		Status: repository.LeadStatus(c.Query("status")),
		Source: c.Query("source"),
		Search: c.Query("search"),
	}
	if params.Status != "" && !params.Status.Valid() {
		httpkit.Error(c, http.StatusBadRequest, "unknown lead status", nil)
		return
	}

	leads, total, err := h.svc.List(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]transport.LeadResponse, len(leads))
	for i, lead := range leads {
		result[i] = transport.ToLeadResponse(lead)
	}

	httpkit.OK(c, transport.ListResponse{Leads: result, Total: total})
}

func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	lead, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) Timeline(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	activities, err := h.svc.Timeline(c.Request.Context(), id, 100)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]transport.ActivityResponse, len(activities))
	for i, a := range activities {
		result[i] = transport.ToActivityResponse(a)
	}

	httpkit.OK(c, result)
}

// Call enqueues an outbound call job for the lead. The DNC check happens at
// dequeue time as well, but refusing early gives the operator a direct error.
func (h *Handler) Call(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.CallLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	lead, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	if lead.Status == repository.StatusDNC {
		httpkit.Error(c, http.StatusConflict, "lead is on the do-not-call list", nil)
		return
	}

	callType := req.CallType
	if callType == "" {
		callType = "SALES"
	}

	handle, err := h.enqueuer.EnqueueCall(c.Request.Context(), scheduler.CallLeadPayload{
		LeadID:   lead.ID.String(),
		UserID:   req.UserID,
		CallType: callType,
	}, scheduler.EnqueueOptions{Delay: time.Duration(req.DelaySec) * time.Second})
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusAccepted, handle)
}

func (h *Handler) MarkDNC(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.DNCRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "Lead requested to be added to the do-not-call list"
	}

	if err := h.svc.MarkDNC(c.Request.Context(), id, reason); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "DNC"})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return uuid.Nil, false
	}
	return id, true
}
