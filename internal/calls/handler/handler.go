package handler

import (
	"io"
	"net/http"

	"github.com/iwanfadzly/call/internal/calls/provider"
	"github.com/iwanfadzly/call/internal/calls/service"
	"github.com/iwanfadzly/call/internal/calls/transport"
	"github.com/iwanfadzly/call/platform/httpkit"
	"github.com/iwanfadzly/call/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxWebhookBody caps webhook payload reads.
const maxWebhookBody = 1 << 20

// Handler exposes call log reads and the provider webhook endpoint.
type Handler struct {
	svc       *service.Service
	providers map[string]provider.CallProvider
	log       *logger.Logger
}

// New creates a new calls handler. providers holds every configured adapter
// keyed by name, so a webhook is verified by the adapter it belongs to even
// when it is not the active one.
func New(svc *service.Service, providers map[string]provider.CallProvider, log *logger.Logger) *Handler {
	return &Handler{svc: svc, providers: providers, log: log}
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid call id", nil)
		return
	}

	log, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToCallResponse(log))
}

func (h *Handler) ListForLead(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	logs, err := h.svc.ListForLead(c.Request.Context(), leadID, 50)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]transport.CallResponse, len(logs))
	for i, log := range logs {
		result[i] = transport.ToCallResponse(log)
	}
	httpkit.OK(c, result)
}

// Webhook receives provider lifecycle callbacks. Verification failures answer
// 401 without touching state; events for unknown calls are acked with 200 so
// the provider stops redelivering them.
func (h *Handler) Webhook(c *gin.Context) {
	name := c.Param("provider")
	adapter, ok := h.providers[name]
	if !ok {
		h.log.WebhookRejected(name, "unknown call provider")
		httpkit.Error(c, http.StatusNotFound, "unknown call provider", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unreadable webhook body", nil)
		return
	}

	event, err := adapter.HandleCallback(provider.Callback{
		Header: c.Request.Header,
		Body:   body,
		URL:    requestURL(c.Request),
	})
	if err != nil {
		h.log.WebhookRejected(name, err.Error())
		if httpkit.HandleError(c, err) {
			return
		}
	}

	if err := h.svc.ApplyEvent(c.Request.Context(), name, event); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"received": true})
}

// requestURL rebuilds the absolute URL the provider signed. Behind a proxy the
// forwarded header carries the original scheme.
func requestURL(r *http.Request) string {
	scheme := "https"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
