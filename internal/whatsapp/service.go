package whatsapp

import (
	"context"
	"strings"
	"time"

	"github.com/iwanfadzly/call/internal/scheduler"
	"github.com/iwanfadzly/call/platform/apperr"
	"github.com/iwanfadzly/call/platform/logger"
	"github.com/iwanfadzly/call/platform/phone"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// LeadInfo is the slice of a lead the WhatsApp service needs.
type LeadInfo struct {
	ID    uuid.UUID
	Phone string
	Name  string
	DNC   bool
}

// LeadDirectory resolves leads owned by another module.
type LeadDirectory interface {
	LeadByID(ctx context.Context, id uuid.UUID) (LeadInfo, error)
	LeadByPhone(ctx context.Context, phone string) (LeadInfo, error)
}

// OrderActions are the keyword shortcuts applied to a lead's newest order.
type OrderActions interface {
	ConfirmCODLatest(ctx context.Context, leadID uuid.UUID) error
	MarkPaidLatest(ctx context.Context, leadID uuid.UUID) error
}

// Service sends outbound messages and routes inbound replies.
type Service struct {
	repo    MessageLog
	gateway Gateway
	leads   LeadDirectory
	orders  OrderActions
	log     *logger.Logger
}

// NewService creates a new WhatsApp service.
func NewService(repo MessageLog, gateway Gateway, leads LeadDirectory, orders OrderActions, log *logger.Logger) *Service {
	return &Service{repo: repo, gateway: gateway, leads: leads, orders: orders, log: log}
}

// Send delivers one message to a lead and records the outcome. Leads on the
// do-not-call list are never messaged.
func (s *Service) Send(ctx context.Context, leadID uuid.UUID, message, templateName string) error {
	lead, err := s.leads.LeadByID(ctx, leadID)
	if err != nil {
		return err
	}
	if lead.DNC {
		return apperr.Conflict("lead is on the do-not-call list")
	}

	sendErr := s.gateway.Send(ctx, phone.Digits(lead.Phone), message)

	status := StatusSent
	errText := ""
	if sendErr != nil {
		status = StatusFailed
		errText = sendErr.Error()
	}
	if _, logErr := s.repo.Append(ctx, LogParams{
		LeadID:       &lead.ID,
		Phone:        lead.Phone,
		Direction:    DirectionOutbound,
		Message:      message,
		TemplateName: templateName,
		Status:       status,
		Error:        errText,
	}); logErr != nil {
		s.log.Error("record whatsapp message", "lead_id", lead.ID, "error", logErr)
	}

	if sendErr != nil {
		return sendErr
	}

	s.log.Info("whatsapp message sent", "lead_id", lead.ID, "template", templateName)
	return nil
}

// HandleSendTask is the queue handler for outbound message jobs. Registered
// on the whatsapp lane by the worker binary.
func (s *Service) HandleSendTask(ctx context.Context, task *asynq.Task) error {
	payload, err := scheduler.ParseWhatsAppSendPayload(task)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "malformed whatsapp job payload", err)
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return apperr.Validation("whatsapp job carries an invalid lead id")
	}

	message := payload.Message
	if payload.TemplateName != "" {
		message, err = RenderTemplate(payload.TemplateName, payload.TemplateData)
		if err != nil {
			return err
		}
	}
	if message == "" {
		return apperr.Validation("whatsapp job carries no message or template")
	}

	return s.Send(ctx, leadID, message, payload.TemplateName)
}

// HandleInbound routes a customer reply. Messages from unknown numbers are
// logged and dropped. COD and PAID keywords act on the lead's newest order;
// everything else is recorded on the message log only. receivedAt is the
// gateway's message timestamp, nil when the gateway sent none.
func (s *Service) HandleInbound(ctx context.Context, rawPhone, message string, receivedAt *time.Time) error {
	normalized := phone.NormalizeE164(rawPhone)
	if normalized == "" {
		return apperr.Validation("inbound message without a phone number")
	}

	lead, err := s.leads.LeadByPhone(ctx, normalized)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.log.Warn("inbound whatsapp from unknown number", "phone", normalized)
			if _, logErr := s.repo.Append(ctx, LogParams{
				Phone:      normalized,
				Direction:  DirectionInbound,
				Message:    message,
				Status:     StatusReceived,
				ReceivedAt: receivedAt,
			}); logErr != nil {
				s.log.Error("record inbound whatsapp", "phone", normalized, "error", logErr)
			}
			return nil
		}
		return err
	}

	if _, logErr := s.repo.Append(ctx, LogParams{
		LeadID:     &lead.ID,
		Phone:      normalized,
		Direction:  DirectionInbound,
		Message:    message,
		Status:     StatusReceived,
		ReceivedAt: receivedAt,
	}); logErr != nil {
		s.log.Error("record inbound whatsapp", "lead_id", lead.ID, "error", logErr)
	}

	switch strings.ToUpper(strings.TrimSpace(message)) {
	case "COD":
		if err := s.orders.ConfirmCODLatest(ctx, lead.ID); err != nil {
			// No order or an order past confirmation is a customer-side
			// mistake, not a system failure.
			if !apperr.Retryable(err) {
				s.log.Warn("cod keyword not applicable", "lead_id", lead.ID, "error", err)
				return nil
			}
			return err
		}
	case "PAID":
		if err := s.orders.MarkPaidLatest(ctx, lead.ID); err != nil {
			if !apperr.Retryable(err) {
				s.log.Warn("paid keyword not applicable", "lead_id", lead.ID, "error", err)
				return nil
			}
			return err
		}
	}

	return nil
}

// History returns the most recent messages exchanged with a lead.
func (s *Service) History(ctx context.Context, leadID uuid.UUID, limit int) ([]Log, error) {
	return s.repo.ListForLead(ctx, leadID, limit)
}
