package whatsapp

import (
	"context"
	"testing"
	"time"

	"github.com/iwanfadzly/call/platform/apperr"
	"github.com/iwanfadzly/call/platform/logger"

	"github.com/google/uuid"
)

type fakeMessageLog struct {
	entries []Log
}

func (f *fakeMessageLog) Append(ctx context.Context, params LogParams) (Log, error) {
	log := Log{
		ID:           uuid.New(),
		LeadID:       params.LeadID,
		Phone:        params.Phone,
		Direction:    params.Direction,
		Message:      params.Message,
		TemplateName: params.TemplateName,
		Status:       params.Status,
		Error:        params.Error,
		ReceivedAt:   params.ReceivedAt,
	}
	f.entries = append(f.entries, log)
	return log, nil
}

func (f *fakeMessageLog) ListForLead(ctx context.Context, leadID uuid.UUID, limit int) ([]Log, error) {
	var out []Log
	for _, log := range f.entries {
		if log.LeadID != nil && *log.LeadID == leadID {
			out = append(out, log)
		}
	}
	return out, nil
}

type fakeWAGateway struct {
	sent     []string
	phones   []string
	failWith error
}

func (f *fakeWAGateway) Send(ctx context.Context, phone, message string) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.phones = append(f.phones, phone)
	f.sent = append(f.sent, message)
	return nil
}

type fakeWADirectory struct {
	leads map[uuid.UUID]LeadInfo
}

func (f *fakeWADirectory) LeadByID(ctx context.Context, id uuid.UUID) (LeadInfo, error) {
	if lead, ok := f.leads[id]; ok {
		return lead, nil
	}
	return LeadInfo{}, apperr.NotFound("lead not found")
}

func (f *fakeWADirectory) LeadByPhone(ctx context.Context, phone string) (LeadInfo, error) {
	for _, lead := range f.leads {
		if lead.Phone == phone {
			return lead, nil
		}
	}
	return LeadInfo{}, apperr.NotFound("no lead with that phone")
}

type fakeOrderActions struct {
	codCalls  []uuid.UUID
	paidCalls []uuid.UUID
	codErr    error
	paidErr   error
}

func (f *fakeOrderActions) ConfirmCODLatest(ctx context.Context, leadID uuid.UUID) error {
	f.codCalls = append(f.codCalls, leadID)
	return f.codErr
}

func (f *fakeOrderActions) MarkPaidLatest(ctx context.Context, leadID uuid.UUID) error {
	f.paidCalls = append(f.paidCalls, leadID)
	return f.paidErr
}

func newWATestService(t *testing.T) (*Service, *fakeMessageLog, *fakeWAGateway, *fakeWADirectory, *fakeOrderActions) {
	t.Helper()
	repo := &fakeMessageLog{}
	gateway := &fakeWAGateway{}
	dir := &fakeWADirectory{leads: map[uuid.UUID]LeadInfo{}}
	orders := &fakeOrderActions{}
	svc := NewService(repo, gateway, dir, orders, logger.New("development"))
	return svc, repo, gateway, dir, orders
}

func seedWALead(dir *fakeWADirectory, dnc bool) uuid.UUID {
	id := uuid.New()
	dir.leads[id] = LeadInfo{ID: id, Phone: "+60123456789", Name: "Aisyah", DNC: dnc}
	return id
}

func TestSendRecordsOutboundMessage(t *testing.T) {
	svc, repo, gateway, dir, _ := newWATestService(t)
	leadID := seedWALead(dir, false)

	if err := svc.Send(context.Background(), leadID, "hello", ""); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(gateway.phones) != 1 || gateway.phones[0] != "60123456789" {
		t.Errorf("gateway phone = %v, want digits without plus", gateway.phones)
	}
	if len(repo.entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.Direction != DirectionOutbound || entry.Status != StatusSent {
		t.Errorf("entry = %+v", entry)
	}
}

func TestSendRefusesDNCLead(t *testing.T) {
	svc, repo, gateway, dir, _ := newWATestService(t)
	leadID := seedWALead(dir, true)

	err := svc.Send(context.Background(), leadID, "hello", "")
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(gateway.sent) != 0 {
		t.Errorf("gateway was used for a DNC lead")
	}
	if len(repo.entries) != 0 {
		t.Errorf("log entries = %d, want 0", len(repo.entries))
	}
}

func TestSendFailureIsLoggedAndBubbled(t *testing.T) {
	svc, repo, _, dir, _ := newWATestService(t)
	leadID := seedWALead(dir, false)

	svc.gateway = &fakeWAGateway{failWith: apperr.Provider("gateway down")}

	err := svc.Send(context.Background(), leadID, "hello", "")
	if apperr.GetKind(err) != apperr.KindProvider {
		t.Fatalf("expected provider error, got %v", err)
	}
	if len(repo.entries) != 1 || repo.entries[0].Status != StatusFailed {
		t.Errorf("entries = %+v", repo.entries)
	}
}

func TestHandleInboundCODKeyword(t *testing.T) {
	svc, repo, _, dir, orders := newWATestService(t)
	leadID := seedWALead(dir, false)

	if err := svc.HandleInbound(context.Background(), "0123456789", " cod ", nil); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}

	if len(orders.codCalls) != 1 || orders.codCalls[0] != leadID {
		t.Errorf("cod calls = %v", orders.codCalls)
	}
	if len(repo.entries) != 1 || repo.entries[0].Status != StatusReceived {
		t.Errorf("entries = %+v", repo.entries)
	}
}

func TestHandleInboundPaidKeyword(t *testing.T) {
	svc, _, _, dir, orders := newWATestService(t)
	leadID := seedWALead(dir, false)

	if err := svc.HandleInbound(context.Background(), "+60123456789", "PAID", nil); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if len(orders.paidCalls) != 1 || orders.paidCalls[0] != leadID {
		t.Errorf("paid calls = %v", orders.paidCalls)
	}
}

func TestHandleInboundPlainMessage(t *testing.T) {
	svc, repo, _, dir, orders := newWATestService(t)
	seedWALead(dir, false)

	if err := svc.HandleInbound(context.Background(), "+60123456789", "is my order shipped yet?", nil); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if len(orders.codCalls)+len(orders.paidCalls) != 0 {
		t.Errorf("keyword action triggered for a plain message")
	}
	if len(repo.entries) != 1 {
		t.Errorf("entries = %d, want 1", len(repo.entries))
	}
}

func TestHandleInboundRecordsGatewayTimestamp(t *testing.T) {
	svc, repo, _, dir, _ := newWATestService(t)
	seedWALead(dir, false)

	sent := time.Date(2026, 8, 30, 9, 15, 0, 0, time.UTC)
	if err := svc.HandleInbound(context.Background(), "+60123456789", "thanks!", &sent); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}

	if len(repo.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.ReceivedAt == nil || !entry.ReceivedAt.Equal(sent) {
		t.Errorf("received at = %v, want %v", entry.ReceivedAt, sent)
	}
}

func TestHandleInboundUnknownNumberIsLoggedOnly(t *testing.T) {
	svc, repo, _, _, orders := newWATestService(t)

	if err := svc.HandleInbound(context.Background(), "+60199999999", "COD", nil); err != nil {
		t.Fatalf("unknown sender must be acked, got %v", err)
	}
	if len(orders.codCalls) != 0 {
		t.Errorf("keyword action triggered for an unknown sender")
	}
	if len(repo.entries) != 1 || repo.entries[0].LeadID != nil {
		t.Errorf("entries = %+v", repo.entries)
	}
}

func TestHandleInboundKeywordNotApplicableIsAcked(t *testing.T) {
	svc, _, _, dir, orders := newWATestService(t)
	seedWALead(dir, false)

	// No orders for the lead; the webhook must not be retried for that.
	orders.codErr = apperr.NotFound("lead has no orders")
	if err := svc.HandleInbound(context.Background(), "+60123456789", "COD", nil); err != nil {
		t.Fatalf("expected ack for inapplicable keyword, got %v", err)
	}

	orders.paidErr = apperr.Conflict("cannot mark a CANCELLED order paid")
	if err := svc.HandleInbound(context.Background(), "+60123456789", "PAID", nil); err != nil {
		t.Fatalf("expected ack for conflicting keyword, got %v", err)
	}
}

func TestHandleInboundRetryableKeywordErrorBubbles(t *testing.T) {
	svc, _, _, dir, orders := newWATestService(t)
	seedWALead(dir, false)

	orders.codErr = apperr.Internal("database unavailable")
	if err := svc.HandleInbound(context.Background(), "+60123456789", "COD", nil); err == nil {
		t.Fatal("retryable failure swallowed")
	}
}
