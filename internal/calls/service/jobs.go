package service

import (
	"context"

	"github.com/iwanfadzly/call/internal/scheduler"
	"github.com/iwanfadzly/call/platform/apperr"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// HandleCallLeadTask is the queue handler for outbound call jobs. Registered
// on the calls lane by the worker binary.
func (s *Service) HandleCallLeadTask(ctx context.Context, task *asynq.Task) error {
	payload, err := scheduler.ParseCallLeadPayload(task)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "malformed call job payload", err)
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return apperr.Validation("call job carries an invalid lead id")
	}

	_, err = s.MakeCall(ctx, MakeCallParams{
		LeadID:   leadID,
		UserID:   payload.UserID,
		CallType: payload.CallType,
	})
	return err
}
