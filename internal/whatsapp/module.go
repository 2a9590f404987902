package whatsapp

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	apphttp "github.com/iwanfadzly/call/internal/http"
	"github.com/iwanfadzly/call/internal/scheduler"
	"github.com/iwanfadzly/call/platform/httpkit"
	"github.com/iwanfadzly/call/platform/logger"
	"github.com/iwanfadzly/call/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the WhatsApp module implementing http.Module.
type Module struct {
	service    *Service
	enqueuer   scheduler.Enqueuer
	val        *validator.Validator
	webhookKey string
	log        *logger.Logger
}

// NewModule creates the WhatsApp module. webhookKey authenticates inbound
// gateway webhooks.
func NewModule(pool *pgxpool.Pool, gateway Gateway, leads LeadDirectory, orders OrderActions,
	enqueuer scheduler.Enqueuer, webhookKey string, val *validator.Validator, log *logger.Logger) *Module {

	repo := NewRepository(pool)
	svc := NewService(repo, gateway, leads, orders, log)

	return &Module{service: svc, enqueuer: enqueuer, val: val, webhookKey: webhookKey, log: log}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "whatsapp"
}

// Service returns the service layer for the worker binary.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts message routes and the inbound webhook.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/whatsapp/send", m.send)
	ctx.V1.GET("/leads/:id/whatsapp", m.history)
	ctx.Webhooks.POST("/whatsapp", m.inbound)
}

type sendMessageRequest struct {
	LeadID   string `json:"leadId" validate:"required,uuid"`
	Message  string `json:"message" validate:"required,max=4096"`
	DelaySec int    `json:"delaySec,omitempty" validate:"omitempty,min=0,max=86400"`
}

// send enqueues an outbound message instead of calling the gateway inline, so
// the HTTP path shares the retry budget with every other message.
func (m *Module) send(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := m.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	handle, err := m.enqueuer.EnqueueWhatsApp(c.Request.Context(), scheduler.WhatsAppSendPayload{
		LeadID:  req.LeadID,
		Message: req.Message,
	}, scheduler.EnqueueOptions{Delay: time.Duration(req.DelaySec) * time.Second})
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusAccepted, handle)
}

func (m *Module) history(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	logs, err := m.service.History(c.Request.Context(), leadID, 50)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, logs)
}

type inboundMessage struct {
	Phone     string `json:"phone"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// inbound receives gateway webhooks for customer replies. The gateway
// authenticates with the shared API key as a bearer token.
func (m *Module) inbound(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if m.webhookKey == "" || subtle.ConstantTimeCompare([]byte(token), []byte(m.webhookKey)) != 1 {
		m.log.WebhookRejected("whatsapp", "invalid gateway token")
		httpkit.Error(c, http.StatusUnauthorized, "invalid gateway token", nil)
		return
	}

	var msg inboundMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid webhook body", err.Error())
		return
	}

	// A malformed timestamp does not reject the message; the log entry just
	// carries no gateway time.
	var receivedAt *time.Time
	if msg.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, msg.Timestamp); err == nil {
			receivedAt = &ts
		}
	}

	if err := m.service.HandleInbound(c.Request.Context(), msg.Phone, msg.Message, receivedAt); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"received": true})
}

var _ apphttp.Module = (*Module)(nil)
