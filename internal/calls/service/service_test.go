package service

import (
	"context"
	"testing"

	"github.com/iwanfadzly/call/internal/calls/provider"
	"github.com/iwanfadzly/call/internal/calls/repository"
	"github.com/iwanfadzly/call/platform/apperr"
	"github.com/iwanfadzly/call/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	logs map[uuid.UUID]*repository.CallLog
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{logs: map[uuid.UUID]*repository.CallLog{}}
}

func (f *fakeRepo) Create(ctx context.Context, params repository.CreateParams) (repository.CallLog, error) {
	log := repository.CallLog{
		ID:       uuid.New(),
		LeadID:   params.LeadID,
		UserID:   params.UserID,
		CallType: params.CallType,
		Provider: params.Provider,
		Status:   repository.StatusScheduled,
	}
	f.logs[log.ID] = &log
	return log, nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (repository.CallLog, error) {
	if log, ok := f.logs[id]; ok {
		return *log, nil
	}
	return repository.CallLog{}, apperr.NotFound("call log not found")
}

func (f *fakeRepo) FindByProviderCallID(ctx context.Context, prov, providerCallID string) (repository.CallLog, error) {
	for _, log := range f.logs {
		if log.Provider == prov && log.ProviderCallID != nil && *log.ProviderCallID == providerCallID {
			return *log, nil
		}
	}
	return repository.CallLog{}, apperr.NotFound("call log not found for provider call id")
}

func (f *fakeRepo) ListForLead(ctx context.Context, leadID uuid.UUID, limit int) ([]repository.CallLog, error) {
	var out []repository.CallLog
	for _, log := range f.logs {
		if log.LeadID == leadID {
			out = append(out, *log)
		}
	}
	return out, nil
}

func (f *fakeRepo) SetProviderCallID(ctx context.Context, id uuid.UUID, prov, providerCallID string) error {
	log, ok := f.logs[id]
	if !ok {
		return apperr.NotFound("call log not found")
	}
	log.Provider = prov
	log.ProviderCallID = &providerCallID
	return nil
}

func (f *fakeRepo) TransitionInProgress(ctx context.Context, id uuid.UUID) (bool, error) {
	log, ok := f.logs[id]
	if !ok || log.Status != repository.StatusScheduled {
		return false, nil
	}
	log.Status = repository.StatusInProgress
	return true, nil
}

func (f *fakeRepo) TransitionCompleted(ctx context.Context, id uuid.UUID, params repository.CompleteParams) (bool, error) {
	log, ok := f.logs[id]
	if !ok || log.Status.Terminal() {
		return false, nil
	}
	log.Status = repository.StatusCompleted
	log.DurationSec = params.DurationSec
	log.Transcript = params.Transcript
	log.RecordingURL = params.RecordingURL
	return true, nil
}

func (f *fakeRepo) TransitionFailed(ctx context.Context, id uuid.UUID, callError string) (bool, error) {
	log, ok := f.logs[id]
	if !ok || log.Status.Terminal() {
		return false, nil
	}
	log.Status = repository.StatusFailed
	log.Error = callError
	return true, nil
}

type fakeDirectory struct {
	leads map[uuid.UUID]LeadInfo
}

func (f *fakeDirectory) LeadByID(ctx context.Context, id uuid.UUID) (LeadInfo, error) {
	if lead, ok := f.leads[id]; ok {
		return lead, nil
	}
	return LeadInfo{}, apperr.NotFound("lead not found")
}

type fakeTimeline struct {
	entries []string
}

func (f *fakeTimeline) AppendCallActivity(ctx context.Context, leadID uuid.UUID, title, content string, metadata map[string]any) error {
	f.entries = append(f.entries, title)
	return nil
}

type fakeProvider struct {
	nextCallID string
	failWith   error
	calls      int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) InitiateCall(ctx context.Context, req provider.InitiateRequest) (provider.CallHandle, error) {
	f.calls++
	if f.failWith != nil {
		return provider.CallHandle{}, f.failWith
	}
	return provider.CallHandle{Provider: "fake", ProviderCallID: f.nextCallID}, nil
}

func (f *fakeProvider) HandleCallback(cb provider.Callback) (provider.Event, error) {
	return provider.Event{}, nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakeDirectory, *fakeTimeline, *fakeProvider) {
	t.Helper()
	repo := newFakeRepo()
	dir := &fakeDirectory{leads: map[uuid.UUID]LeadInfo{}}
	timeline := &fakeTimeline{}
	prov := &fakeProvider{nextCallID: "call_1"}
	svc := New(repo, prov, dir, timeline, logger.New("development"))
	return svc, repo, dir, timeline, prov
}

func TestMakeCallRefusesDNCLead(t *testing.T) {
	svc, _, dir, _, prov := newTestService(t)

	leadID := uuid.New()
	dir.leads[leadID] = LeadInfo{ID: leadID, Phone: "+60123456789", DNC: true}

	_, err := svc.MakeCall(context.Background(), MakeCallParams{LeadID: leadID})
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if prov.calls != 0 {
		t.Fatalf("provider was called %d times for a DNC lead", prov.calls)
	}
}

func TestMakeCallSchedulesAndDials(t *testing.T) {
	svc, repo, dir, timeline, _ := newTestService(t)

	leadID := uuid.New()
	dir.leads[leadID] = LeadInfo{ID: leadID, Phone: "+60123456789", Name: "Aisyah"}

	log, err := svc.MakeCall(context.Background(), MakeCallParams{LeadID: leadID, UserID: "u1"})
	if err != nil {
		t.Fatalf("MakeCall: %v", err)
	}

	if log.ProviderCallID == nil || *log.ProviderCallID != "call_1" {
		t.Fatalf("provider call id not recorded: %+v", log)
	}

	// The provider accepted the call, so the log is live immediately rather
	// than waiting for the started webhook.
	stored := repo.logs[log.ID]
	if stored.Status != repository.StatusInProgress {
		t.Errorf("status = %q, want IN_PROGRESS", stored.Status)
	}
	if log.Status != repository.StatusInProgress {
		t.Errorf("returned status = %q, want IN_PROGRESS", log.Status)
	}
	if len(timeline.entries) != 1 || timeline.entries[0] != "Call Initiated" {
		t.Errorf("timeline = %v", timeline.entries)
	}
}

func TestMakeCallProviderFailureMarksLogFailed(t *testing.T) {
	svc, repo, dir, _, prov := newTestService(t)
	prov.failWith = apperr.Provider("gateway timeout")

	leadID := uuid.New()
	dir.leads[leadID] = LeadInfo{ID: leadID, Phone: "+60123456789"}

	_, err := svc.MakeCall(context.Background(), MakeCallParams{LeadID: leadID})
	if apperr.GetKind(err) != apperr.KindProvider {
		t.Fatalf("expected provider error, got %v", err)
	}

	var failed int
	for _, log := range repo.logs {
		if log.Status == repository.StatusFailed {
			failed++
		}
	}
	if failed != 1 {
		t.Fatalf("failed logs = %d, want 1", failed)
	}
}

func applyEvents(t *testing.T, svc *Service, events ...provider.Event) {
	t.Helper()
	for _, ev := range events {
		if err := svc.ApplyEvent(context.Background(), "fake", ev); err != nil {
			t.Fatalf("ApplyEvent(%+v): %v", ev, err)
		}
	}
}

func TestApplyEventLifecycle(t *testing.T) {
	svc, repo, dir, timeline, _ := newTestService(t)

	leadID := uuid.New()
	dir.leads[leadID] = LeadInfo{ID: leadID, Phone: "+60123456789"}

	log, err := svc.MakeCall(context.Background(), MakeCallParams{LeadID: leadID})
	if err != nil {
		t.Fatalf("MakeCall: %v", err)
	}

	applyEvents(t, svc,
		// Redundant once the initiate call moved the log to IN_PROGRESS.
		provider.Event{ProviderCallID: "call_1", Kind: provider.EventStarted},
		provider.Event{ProviderCallID: "call_1", Kind: provider.EventEnded, Duration: 90, Transcript: "hi"},
	)

	stored := repo.logs[log.ID]
	if stored.Status != repository.StatusCompleted {
		t.Fatalf("status = %q, want COMPLETED", stored.Status)
	}
	if stored.DurationSec != 90 || stored.Transcript != "hi" {
		t.Errorf("outcome not recorded: %+v", stored)
	}
	// Call Initiated + Call Completed.
	if len(timeline.entries) != 2 {
		t.Errorf("timeline = %v", timeline.entries)
	}
}

func TestApplyEventEndedBeforeStarted(t *testing.T) {
	svc, repo, dir, _, _ := newTestService(t)

	leadID := uuid.New()
	dir.leads[leadID] = LeadInfo{ID: leadID, Phone: "+60123456789"}

	log, _ := svc.MakeCall(context.Background(), MakeCallParams{LeadID: leadID})

	applyEvents(t, svc,
		provider.Event{ProviderCallID: "call_1", Kind: provider.EventEnded, Duration: 30},
		provider.Event{ProviderCallID: "call_1", Kind: provider.EventStarted},
	)

	stored := repo.logs[log.ID]
	if stored.Status != repository.StatusCompleted {
		t.Fatalf("status = %q, want COMPLETED (end before start, late start dropped)", stored.Status)
	}
}

func TestApplyEventDuplicateEndIsNoOp(t *testing.T) {
	svc, _, dir, timeline, _ := newTestService(t)

	leadID := uuid.New()
	dir.leads[leadID] = LeadInfo{ID: leadID, Phone: "+60123456789"}

	if _, err := svc.MakeCall(context.Background(), MakeCallParams{LeadID: leadID}); err != nil {
		t.Fatalf("MakeCall: %v", err)
	}

	end := provider.Event{ProviderCallID: "call_1", Kind: provider.EventEnded, Duration: 30}
	applyEvents(t, svc, end, end, end)

	// Call Initiated plus exactly one Call Completed despite three deliveries.
	var completed int
	for _, title := range timeline.entries {
		if title == "Call Completed" {
			completed++
		}
	}
	if completed != 1 {
		t.Fatalf("completed activities = %d, want 1", completed)
	}
}

func TestApplyEventFailedNeverOverwritesCompleted(t *testing.T) {
	svc, repo, dir, _, _ := newTestService(t)

	leadID := uuid.New()
	dir.leads[leadID] = LeadInfo{ID: leadID, Phone: "+60123456789"}

	log, _ := svc.MakeCall(context.Background(), MakeCallParams{LeadID: leadID})

	applyEvents(t, svc,
		provider.Event{ProviderCallID: "call_1", Kind: provider.EventEnded, Duration: 60},
		provider.Event{ProviderCallID: "call_1", Kind: provider.EventFailed, Error: "late failure"},
	)

	stored := repo.logs[log.ID]
	if stored.Status != repository.StatusCompleted {
		t.Fatalf("status = %q, terminal COMPLETED was overwritten", stored.Status)
	}
}

func TestApplyEventUnknownCallIsAcked(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	err := svc.ApplyEvent(context.Background(), "fake",
		provider.Event{ProviderCallID: "never-seen", Kind: provider.EventEnded})
	if err != nil {
		t.Fatalf("unknown call id must be acked, got %v", err)
	}
}

func TestApplyEventIgnoredKind(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	err := svc.ApplyEvent(context.Background(), "fake",
		provider.Event{ProviderCallID: "whatever", Kind: provider.EventIgnored})
	if err != nil {
		t.Fatalf("ignored event must be acked, got %v", err)
	}
}
