// Package service implements lead lifecycle operations. Funnel status changes
// go through here so every transition lands on the activity timeline.
package service

import (
	"context"

	"github.com/iwanfadzly/call/internal/leads/repository"
	"github.com/iwanfadzly/call/platform/apperr"
	"github.com/iwanfadzly/call/platform/logger"
	"github.com/iwanfadzly/call/platform/phone"

	"github.com/google/uuid"
)

// Service coordinates lead persistence and the activity timeline.
type Service struct {
	repo repository.Repository
	log  *logger.Logger
}

// New creates a new leads service.
func New(repo repository.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Create registers a new lead with a normalized E.164 phone number.
func (s *Service) Create(ctx context.Context, params repository.CreateParams) (repository.Lead, error) {
	params.Phone = phone.NormalizeE164(params.Phone)
	if params.Phone == "" {
		return repository.Lead{}, apperr.Validation("phone number is required")
	}
	if params.Priority == "" {
		params.Priority = "MEDIUM"
	}

	lead, err := s.repo.Create(ctx, params)
	if err != nil {
		return repository.Lead{}, err
	}

	s.log.Info("lead created", "lead_id", lead.ID, "source", lead.Source)
	return lead, nil
}

// GetByID retrieves a lead.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	return s.repo.GetByID(ctx, id)
}

// FindByPhone retrieves a lead by phone, normalizing the input first.
func (s *Service) FindByPhone(ctx context.Context, rawPhone string) (repository.Lead, error) {
	return s.repo.FindByPhone(ctx, phone.NormalizeE164(rawPhone))
}

// List retrieves leads matching the filters.
func (s *Service) List(ctx context.Context, params repository.ListParams) ([]repository.Lead, int, error) {
	return s.repo.List(ctx, params)
}

// Timeline returns the most recent activity entries for a lead.
func (s *Service) Timeline(ctx context.Context, leadID uuid.UUID, limit int) ([]repository.Activity, error) {
	return s.repo.ListActivities(ctx, leadID, limit)
}

// TransitionStatus moves a lead to a new funnel status and records the
// transition on the timeline. A DNC lead never leaves DNC.
func (s *Service) TransitionStatus(ctx context.Context, id uuid.UUID, status repository.LeadStatus, reason string) error {
	if !status.Valid() {
		return apperr.Validation("unknown lead status")
	}

	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if lead.Status == repository.StatusDNC {
		return apperr.Conflict("lead is on the do-not-call list")
	}
	if lead.Status == status {
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return err
	}

	_, err = s.repo.AppendActivity(ctx, repository.ActivityParams{
		LeadID:  id,
		Type:    repository.ActivityNote,
		Title:   "Status Changed",
		Content: reason,
		Metadata: map[string]any{
			"from": string(lead.Status),
			"to":   string(status),
		},
	})
	return err
}

// MarkDNC puts a lead on the do-not-call list. The transition is allowed from
// any status and is terminal.
func (s *Service) MarkDNC(ctx context.Context, id uuid.UUID, reason string) error {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if lead.Status == repository.StatusDNC {
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, id, repository.StatusDNC); err != nil {
		return err
	}

	_, err = s.repo.AppendActivity(ctx, repository.ActivityParams{
		LeadID:  id,
		Type:    repository.ActivityDNC,
		Title:   "Added to DNC",
		Content: reason,
	})
	return err
}
