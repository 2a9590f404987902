// Package service orchestrates outbound calls and reconciles provider
// webhooks against the call log state machine.
package service

import (
	"context"
	"fmt"

	"github.com/iwanfadzly/call/internal/calls/provider"
	"github.com/iwanfadzly/call/internal/calls/repository"
	"github.com/iwanfadzly/call/platform/apperr"
	"github.com/iwanfadzly/call/platform/logger"

	"github.com/google/uuid"
)

// LeadInfo is the slice of a lead the calls service needs.
type LeadInfo struct {
	ID    uuid.UUID
	Phone string
	Name  string
	DNC   bool
}

// LeadDirectory resolves leads owned by another module.
type LeadDirectory interface {
	LeadByID(ctx context.Context, id uuid.UUID) (LeadInfo, error)
}

// TimelineWriter appends call entries to a lead's activity timeline.
type TimelineWriter interface {
	AppendCallActivity(ctx context.Context, leadID uuid.UUID, title, content string, metadata map[string]any) error
}

// Service places calls through the configured provider and applies lifecycle
// events coming back from webhooks.
type Service struct {
	repo     repository.Repository
	caller   provider.CallProvider
	leads    LeadDirectory
	timeline TimelineWriter
	log      *logger.Logger
}

// New creates a new calls service.
func New(repo repository.Repository, caller provider.CallProvider, leads LeadDirectory, timeline TimelineWriter, log *logger.Logger) *Service {
	return &Service{repo: repo, caller: caller, leads: leads, timeline: timeline, log: log}
}

// MakeCallParams identify the lead to call and who asked for it.
type MakeCallParams struct {
	LeadID   uuid.UUID
	UserID   string
	CallType string
}

// MakeCall schedules a call log and asks the provider to dial. A lead on the
// do-not-call list is refused with a conflict before the provider is touched.
// Provider failures mark the log FAILED and bubble up so the queue retries
// with a fresh attempt.
func (s *Service) MakeCall(ctx context.Context, params MakeCallParams) (repository.CallLog, error) {
	lead, err := s.leads.LeadByID(ctx, params.LeadID)
	if err != nil {
		return repository.CallLog{}, err
	}
	if lead.DNC {
		return repository.CallLog{}, apperr.Conflict("lead is on the do-not-call list")
	}

	callType := params.CallType
	if callType == "" {
		callType = "SALES"
	}

	log, err := s.repo.Create(ctx, repository.CreateParams{
		LeadID:   params.LeadID,
		UserID:   params.UserID,
		CallType: callType,
		Provider: s.caller.Name(),
	})
	if err != nil {
		return repository.CallLog{}, err
	}

	handle, err := s.caller.InitiateCall(ctx, provider.InitiateRequest{
		LeadID:   params.LeadID.String(),
		ToNumber: lead.Phone,
		LeadName: lead.Name,
		CallType: callType,
	})
	if err != nil {
		if _, ferr := s.repo.TransitionFailed(ctx, log.ID, err.Error()); ferr != nil {
			s.log.Error("mark call failed after initiate error", "call_id", log.ID, "error", ferr)
		}
		return repository.CallLog{}, err
	}

	if err := s.repo.SetProviderCallID(ctx, log.ID, handle.Provider, handle.ProviderCallID); err != nil {
		return repository.CallLog{}, err
	}

	// The provider accepted the call, so the log moves to IN_PROGRESS now; a
	// later started webhook is a no-op.
	applied, err := s.repo.TransitionInProgress(ctx, log.ID)
	if err != nil {
		return repository.CallLog{}, err
	}
	if applied {
		log.Status = repository.StatusInProgress
	}

	s.appendActivity(ctx, params.LeadID, "Call Initiated",
		fmt.Sprintf("Outbound %s call via %s", callType, handle.Provider),
		map[string]any{"callId": log.ID.String(), "provider": handle.Provider})

	s.log.Info("call initiated",
		"call_id", log.ID, "lead_id", params.LeadID,
		"provider", handle.Provider, "provider_call_id", handle.ProviderCallID)

	log.Provider = handle.Provider
	log.ProviderCallID = &handle.ProviderCallID
	return log, nil
}

// ApplyEvent reconciles a normalized provider event with the call log. It is
// idempotent: duplicates and events for already-terminal calls are dropped,
// and an event for an unknown call id is logged and acked rather than errored
// so the provider stops resending it.
func (s *Service) ApplyEvent(ctx context.Context, providerName string, ev provider.Event) error {
	if ev.Kind == provider.EventIgnored {
		return nil
	}

	log, err := s.repo.FindByProviderCallID(ctx, providerName, ev.ProviderCallID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.log.Warn("call event for unknown call id",
				"provider", providerName, "provider_call_id", ev.ProviderCallID, "event", string(ev.Kind))
			return nil
		}
		return err
	}

	switch ev.Kind {
	case provider.EventStarted:
		applied, err := s.repo.TransitionInProgress(ctx, log.ID)
		if err != nil {
			return err
		}
		if !applied {
			s.log.Debug("start event dropped", "call_id", log.ID, "status", string(log.Status))
		}
		return nil

	case provider.EventEnded:
		applied, err := s.repo.TransitionCompleted(ctx, log.ID, repository.CompleteParams{
			DurationSec:  ev.Duration,
			Transcript:   ev.Transcript,
			RecordingURL: ev.RecordingURL,
		})
		if err != nil {
			return err
		}
		if !applied {
			s.log.Debug("end event dropped", "call_id", log.ID, "status", string(log.Status))
			return nil
		}
		s.appendActivity(ctx, log.LeadID, "Call Completed",
			fmt.Sprintf("Call finished after %ds", ev.Duration),
			map[string]any{"callId": log.ID.String(), "durationSec": ev.Duration})
		return nil

	case provider.EventFailed:
		applied, err := s.repo.TransitionFailed(ctx, log.ID, ev.Error)
		if err != nil {
			return err
		}
		if !applied {
			s.log.Debug("fail event dropped", "call_id", log.ID, "status", string(log.Status))
			return nil
		}
		s.appendActivity(ctx, log.LeadID, "Call Failed", ev.Error,
			map[string]any{"callId": log.ID.String()})
		return nil

	default:
		return apperr.Validation(fmt.Sprintf("unknown call event kind %q", ev.Kind))
	}
}

// GetByID retrieves a call log.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (repository.CallLog, error) {
	return s.repo.GetByID(ctx, id)
}

// ListForLead returns the most recent calls for a lead.
func (s *Service) ListForLead(ctx context.Context, leadID uuid.UUID, limit int) ([]repository.CallLog, error) {
	return s.repo.ListForLead(ctx, leadID, limit)
}

// appendActivity records a timeline entry; failure to do so never fails the
// call flow.
func (s *Service) appendActivity(ctx context.Context, leadID uuid.UUID, title, content string, metadata map[string]any) {
	if s.timeline == nil {
		return
	}
	if err := s.timeline.AppendCallActivity(ctx, leadID, title, content, metadata); err != nil {
		s.log.Error("append call activity", "lead_id", leadID, "error", err)
	}
}
