package adapters

import (
	"context"

	callsvc "github.com/iwanfadzly/call/internal/calls/service"
	leadrepo "github.com/iwanfadzly/call/internal/leads/repository"
	ordersvc "github.com/iwanfadzly/call/internal/orders/service"

	"github.com/google/uuid"
)

// TimelineAdapter writes other modules' events onto the lead activity
// timeline.
type TimelineAdapter struct {
	log leadrepo.ActivityLog
}

// NewTimelineAdapter creates a timeline adapter.
func NewTimelineAdapter(log leadrepo.ActivityLog) *TimelineAdapter {
	return &TimelineAdapter{log: log}
}

func (t *TimelineAdapter) AppendCallActivity(ctx context.Context, leadID uuid.UUID, title, content string, metadata map[string]any) error {
	return t.append(ctx, leadID, leadrepo.ActivityCall, title, content, metadata)
}

func (t *TimelineAdapter) AppendOrderActivity(ctx context.Context, leadID uuid.UUID, title, content string, metadata map[string]any) error {
	return t.append(ctx, leadID, leadrepo.ActivityOrder, title, content, metadata)
}

func (t *TimelineAdapter) AppendPaymentActivity(ctx context.Context, leadID uuid.UUID, title, content string, metadata map[string]any) error {
	return t.append(ctx, leadID, leadrepo.ActivityPayment, title, content, metadata)
}

func (t *TimelineAdapter) append(ctx context.Context, leadID uuid.UUID, activityType, title, content string, metadata map[string]any) error {
	_, err := t.log.AppendActivity(ctx, leadrepo.ActivityParams{
		LeadID:   leadID,
		Type:     activityType,
		Title:    title,
		Content:  content,
		Metadata: metadata,
	})
	return err
}

var (
	_ callsvc.TimelineWriter  = (*TimelineAdapter)(nil)
	_ ordersvc.TimelineWriter = (*TimelineAdapter)(nil)
)
