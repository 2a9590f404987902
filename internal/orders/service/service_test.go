package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/iwanfadzly/call/internal/orders/payment"
	"github.com/iwanfadzly/call/internal/orders/repository"
	"github.com/iwanfadzly/call/internal/scheduler"
	"github.com/iwanfadzly/call/platform/apperr"
	"github.com/iwanfadzly/call/platform/logger"

	"github.com/google/uuid"
)

type fakeOrderRepo struct {
	orders   map[uuid.UUID]*repository.Order
	payments map[uuid.UUID]*repository.Payment
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:   map[uuid.UUID]*repository.Order{},
		payments: map[uuid.UUID]*repository.Payment{},
	}
}

func (f *fakeOrderRepo) CreateOrder(ctx context.Context, params repository.CreateOrderParams) (repository.Order, error) {
	order := repository.Order{
		ID:       uuid.New(),
		LeadID:   params.LeadID,
		Status:   repository.OrderPending,
		Currency: params.Currency,
		Notes:    params.Notes,
	}
	for _, item := range params.Items {
		order.Items = append(order.Items, repository.OrderItem{
			ID:             uuid.New(),
			OrderID:        order.ID,
			ProductID:      item.ProductID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
		order.TotalCents += int64(item.Quantity) * item.UnitPriceCents
	}
	order.CreatedAt = time.Now()
	f.orders[order.ID] = &order
	return order, nil
}

func (f *fakeOrderRepo) GetOrder(ctx context.Context, id uuid.UUID) (repository.Order, error) {
	if order, ok := f.orders[id]; ok {
		return *order, nil
	}
	return repository.Order{}, apperr.NotFound("order not found")
}

func (f *fakeOrderRepo) ListOrdersForLead(ctx context.Context, leadID uuid.UUID, limit int) ([]repository.Order, error) {
	var out []repository.Order
	for _, order := range f.orders {
		if order.LeadID == leadID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) LatestOrderForLead(ctx context.Context, leadID uuid.UUID) (repository.Order, error) {
	var latest *repository.Order
	for _, order := range f.orders {
		if order.LeadID != leadID {
			continue
		}
		if latest == nil || order.CreatedAt.After(latest.CreatedAt) {
			latest = order
		}
	}
	if latest == nil {
		return repository.Order{}, apperr.NotFound("lead has no orders")
	}
	return *latest, nil
}

func (f *fakeOrderRepo) CreatePayment(ctx context.Context, params repository.CreatePaymentParams) (repository.Payment, error) {
	pay := repository.Payment{
		ID:            uuid.New(),
		OrderID:       params.OrderID,
		Provider:      params.Provider,
		ProviderTxnID: params.ProviderTxnID,
		AmountCents:   params.AmountCents,
		Currency:      params.Currency,
		Status:        repository.PaymentPending,
		PaymentURL:    params.PaymentURL,
	}
	f.payments[pay.ID] = &pay
	return pay, nil
}

func (f *fakeOrderRepo) FindPaymentByTxnID(ctx context.Context, provider, providerTxnID string) (repository.Payment, error) {
	for _, pay := range f.payments {
		if pay.Provider == provider && pay.ProviderTxnID == providerTxnID {
			return *pay, nil
		}
	}
	return repository.Payment{}, apperr.NotFound("payment not found for transaction")
}

func (f *fakeOrderRepo) ListPaymentsForOrder(ctx context.Context, orderID uuid.UUID) ([]repository.Payment, error) {
	var out []repository.Payment
	for _, pay := range f.payments {
		if pay.OrderID == orderID {
			out = append(out, *pay)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) CompletePayment(ctx context.Context, id uuid.UUID) (bool, error) {
	pay, ok := f.payments[id]
	if !ok || pay.Status != repository.PaymentPending {
		return false, nil
	}
	pay.Status = repository.PaymentCompleted
	return true, nil
}

func (f *fakeOrderRepo) FailPayment(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	pay, ok := f.payments[id]
	if !ok || pay.Status != repository.PaymentPending {
		return false, nil
	}
	pay.Status = repository.PaymentFailed
	pay.Error = reason
	return true, nil
}

func (f *fakeOrderRepo) SupersedePendingPayments(ctx context.Context, orderID uuid.UUID) error {
	for _, pay := range f.payments {
		if pay.OrderID == orderID && pay.Status == repository.PaymentPending {
			pay.Status = repository.PaymentFailed
			pay.Error = "superseded by a newer payment link"
		}
	}
	return nil
}

func (f *fakeOrderRepo) MarkOrderPaid(ctx context.Context, id uuid.UUID) (bool, error) {
	order, ok := f.orders[id]
	if !ok || (order.Status != repository.OrderPending && order.Status != repository.OrderCODConfirmed) {
		return false, nil
	}
	order.Status = repository.OrderPaid
	return true, nil
}

func (f *fakeOrderRepo) ConfirmOrderCOD(ctx context.Context, id uuid.UUID) (bool, error) {
	order, ok := f.orders[id]
	if !ok || order.Status != repository.OrderPending {
		return false, nil
	}
	order.Status = repository.OrderCODConfirmed
	return true, nil
}

func (f *fakeOrderRepo) CancelOrder(ctx context.Context, id uuid.UUID) (bool, error) {
	order, ok := f.orders[id]
	if !ok || (order.Status != repository.OrderPending && order.Status != repository.OrderCODConfirmed) {
		return false, nil
	}
	order.Status = repository.OrderCancelled
	return true, nil
}

func (f *fakeOrderRepo) UpdateOrderStatus(ctx context.Context, id uuid.UUID, to repository.OrderStatus, from ...repository.OrderStatus) (bool, error) {
	order, ok := f.orders[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if order.Status == s {
			order.Status = to
			return true, nil
		}
	}
	return false, nil
}

type fakeGateway struct {
	links       []payment.LinkRequest
	verifyCalls int
	verifyPaid  bool
}

func (f *fakeGateway) Name() string { return "fakegateway" }

func (f *fakeGateway) CreatePaymentLink(ctx context.Context, req payment.LinkRequest) (payment.Link, error) {
	f.links = append(f.links, req)
	txn := fmt.Sprintf("txn_%d", len(f.links))
	return payment.Link{URL: "https://pay.example.com/" + txn, ProviderTxnID: txn}, nil
}

func (f *fakeGateway) ParseWebhook(cb payment.Callback) (payment.Notification, error) {
	return payment.Notification{}, nil
}

func (f *fakeGateway) VerifyPayment(ctx context.Context, providerTxnID string) (bool, error) {
	f.verifyCalls++
	return f.verifyPaid, nil
}

type fakeLeadDir struct {
	leads map[uuid.UUID]LeadInfo
}

func (f *fakeLeadDir) LeadByID(ctx context.Context, id uuid.UUID) (LeadInfo, error) {
	if lead, ok := f.leads[id]; ok {
		return lead, nil
	}
	return LeadInfo{}, apperr.NotFound("lead not found")
}

type fakeCatalog struct {
	products map[uuid.UUID]ProductInfo
}

func (f *fakeCatalog) ProductByID(ctx context.Context, id uuid.UUID) (ProductInfo, error) {
	if p, ok := f.products[id]; ok {
		return p, nil
	}
	return ProductInfo{}, apperr.NotFound("product not found")
}

type fakeOrderTimeline struct {
	titles []string
}

func (f *fakeOrderTimeline) AppendOrderActivity(ctx context.Context, leadID uuid.UUID, title, content string, metadata map[string]any) error {
	f.titles = append(f.titles, title)
	return nil
}

func (f *fakeOrderTimeline) AppendPaymentActivity(ctx context.Context, leadID uuid.UUID, title, content string, metadata map[string]any) error {
	f.titles = append(f.titles, title)
	return nil
}

func (f *fakeOrderTimeline) count(title string) int {
	var n int
	for _, t := range f.titles {
		if t == title {
			n++
		}
	}
	return n
}

type fakeEnqueuer struct {
	whatsapp []scheduler.WhatsAppSendPayload
}

func (f *fakeEnqueuer) EnqueueCall(ctx context.Context, payload scheduler.CallLeadPayload, opts scheduler.EnqueueOptions) (scheduler.JobHandle, error) {
	return scheduler.JobHandle{ID: "job", Lane: scheduler.LaneCalls}, nil
}

func (f *fakeEnqueuer) EnqueueWhatsApp(ctx context.Context, payload scheduler.WhatsAppSendPayload, opts scheduler.EnqueueOptions) (scheduler.JobHandle, error) {
	f.whatsapp = append(f.whatsapp, payload)
	return scheduler.JobHandle{ID: "job", Lane: scheduler.LaneWhatsApp}, nil
}

func (f *fakeEnqueuer) EnqueueExport(ctx context.Context, payload scheduler.ExportDataPayload, opts scheduler.EnqueueOptions) (scheduler.JobHandle, error) {
	return scheduler.JobHandle{ID: "job", Lane: scheduler.LaneExports}, nil
}

type fixture struct {
	svc      *Service
	repo     *fakeOrderRepo
	gateway  *fakeGateway
	leads    *fakeLeadDir
	catalog  *fakeCatalog
	timeline *fakeOrderTimeline
	enqueuer *fakeEnqueuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     newFakeOrderRepo(),
		gateway:  &fakeGateway{},
		leads:    &fakeLeadDir{leads: map[uuid.UUID]LeadInfo{}},
		catalog:  &fakeCatalog{products: map[uuid.UUID]ProductInfo{}},
		timeline: &fakeOrderTimeline{},
		enqueuer: &fakeEnqueuer{},
	}
	f.svc = New(f.repo, f.gateway, f.leads, f.catalog, f.timeline, f.enqueuer,
		"https://app.example.com", logger.New("development"))
	return f
}

func (f *fixture) seedLead() uuid.UUID {
	id := uuid.New()
	f.leads.leads[id] = LeadInfo{ID: id, Phone: "+60123456789", Name: "Aisyah", Email: "a@example.com"}
	return id
}

func (f *fixture) seedProduct(price int64) uuid.UUID {
	id := uuid.New()
	f.catalog.products[id] = ProductInfo{ID: id, Name: "Widget", PriceCents: price, Currency: "MYR"}
	return id
}

func (f *fixture) seedOrder(t *testing.T, leadID uuid.UUID) repository.Order {
	t.Helper()
	productID := f.seedProduct(4990)
	order, err := f.svc.CreateOrder(context.Background(), CreateOrderParams{
		LeadID: leadID,
		Items:  []ItemRequest{{ProductID: productID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return order
}

func (f *fixture) seedPayment(t *testing.T, orderID uuid.UUID) repository.Payment {
	t.Helper()
	pay, err := f.svc.CreatePaymentLink(context.Background(), orderID)
	if err != nil {
		t.Fatalf("CreatePaymentLink: %v", err)
	}
	return pay
}

func TestCreateOrderSnapshotsPrices(t *testing.T) {
	f := newFixture(t)
	leadID := f.seedLead()
	productID := f.seedProduct(2500)

	order, err := f.svc.CreateOrder(context.Background(), CreateOrderParams{
		LeadID: leadID,
		Items:  []ItemRequest{{ProductID: productID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if order.TotalCents != 7500 {
		t.Errorf("total = %d, want 7500", order.TotalCents)
	}
	if order.Currency != "MYR" {
		t.Errorf("currency = %q", order.Currency)
	}
	if len(order.Items) != 1 || order.Items[0].UnitPriceCents != 2500 {
		t.Errorf("items = %+v", order.Items)
	}
	if order.Status != repository.OrderPending {
		t.Errorf("status = %q, want PENDING", order.Status)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	leadID := f.seedLead()
	productID := f.seedProduct(2500)

	usdProduct := uuid.New()
	f.catalog.products[usdProduct] = ProductInfo{ID: usdProduct, Name: "Import", PriceCents: 900, Currency: "USD"}

	cases := []struct {
		name  string
		items []ItemRequest
	}{
		{"no items", nil},
		{"zero quantity", []ItemRequest{{ProductID: productID, Quantity: 0}}},
		{"mixed currencies", []ItemRequest{
			{ProductID: productID, Quantity: 1},
			{ProductID: usdProduct, Quantity: 1},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateOrder(context.Background(), CreateOrderParams{LeadID: leadID, Items: tc.items})
			if apperr.GetKind(err) != apperr.KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreatePaymentLinkRequiresPendingOrder(t *testing.T) {
	f := newFixture(t)
	leadID := f.seedLead()
	order := f.seedOrder(t, leadID)

	pay := f.seedPayment(t, order.ID)
	if pay.ProviderTxnID != "txn_1" || pay.AmountCents != order.TotalCents {
		t.Errorf("payment = %+v", pay)
	}
	if len(f.gateway.links) != 1 {
		t.Fatalf("gateway calls = %d", len(f.gateway.links))
	}
	if got := f.gateway.links[0].CallbackURL; got != "https://app.example.com/api/v1/webhooks/payments/fakegateway" {
		t.Errorf("callback url = %q", got)
	}

	if _, err := f.svc.ConfirmCOD(context.Background(), order.ID); err != nil {
		t.Fatalf("ConfirmCOD: %v", err)
	}
	if _, err := f.svc.CreatePaymentLink(context.Background(), order.ID); apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("expected conflict for COD order, got %v", err)
	}
}

func TestReconcilePaymentCompletesOrderOnce(t *testing.T) {
	f := newFixture(t)
	leadID := f.seedLead()
	order := f.seedOrder(t, leadID)
	f.seedPayment(t, order.ID)

	notif := payment.Notification{ProviderTxnID: "txn_1", Paid: true, Verified: true}

	// First delivery wins, the two redeliveries are no-ops.
	for i := 0; i < 3; i++ {
		if err := f.svc.ReconcilePayment(context.Background(), f.gateway, notif); err != nil {
			t.Fatalf("ReconcilePayment #%d: %v", i+1, err)
		}
	}

	got, _ := f.repo.GetOrder(context.Background(), order.ID)
	if got.Status != repository.OrderPaid {
		t.Fatalf("order status = %q, want PAID", got.Status)
	}
	if n := f.timeline.count("Payment Received"); n != 1 {
		t.Errorf("payment activities = %d, want 1", n)
	}
	if len(f.enqueuer.whatsapp) != 1 {
		t.Fatalf("whatsapp enqueues = %d, want 1", len(f.enqueuer.whatsapp))
	}
	if msg := f.enqueuer.whatsapp[0]; msg.TemplateName != "payment_received" || msg.OrderID != order.ID.String() {
		t.Errorf("confirmation payload = %+v", msg)
	}
}

func TestReconcilePaymentRetryAfterPartialCompletion(t *testing.T) {
	f := newFixture(t)
	leadID := f.seedLead()
	order := f.seedOrder(t, leadID)
	pay := f.seedPayment(t, order.ID)

	// The payment flipped to COMPLETED but the process died before the order
	// moved. The webhook redelivery must finish the job.
	if applied, err := f.repo.CompletePayment(context.Background(), pay.ID); err != nil || !applied {
		t.Fatalf("CompletePayment: applied=%v err=%v", applied, err)
	}

	notif := payment.Notification{ProviderTxnID: "txn_1", Paid: true, Verified: true}
	if err := f.svc.ReconcilePayment(context.Background(), f.gateway, notif); err != nil {
		t.Fatalf("ReconcilePayment: %v", err)
	}

	got, _ := f.repo.GetOrder(context.Background(), order.ID)
	if got.Status != repository.OrderPaid {
		t.Fatalf("order status = %q, want PAID", got.Status)
	}
	if n := f.timeline.count("Payment Received"); n != 1 {
		t.Errorf("payment activities = %d, want 1", n)
	}
	if len(f.enqueuer.whatsapp) != 1 {
		t.Errorf("whatsapp enqueues = %d, want 1", len(f.enqueuer.whatsapp))
	}

	// Once the order moved too, further redeliveries stay silent.
	if err := f.svc.ReconcilePayment(context.Background(), f.gateway, notif); err != nil {
		t.Fatalf("ReconcilePayment redelivery: %v", err)
	}
	if n := f.timeline.count("Payment Received"); n != 1 {
		t.Errorf("payment activities after redelivery = %d, want 1", n)
	}
}

func TestReconcilePaymentPendingKeepsAttemptOpen(t *testing.T) {
	f := newFixture(t)
	leadID := f.seedLead()
	order := f.seedOrder(t, leadID)
	pay := f.seedPayment(t, order.ID)

	// A gateway pending callback carries neither a paid flag nor a failure
	// reason. The attempt must stay open for the real outcome.
	pending := payment.Notification{ProviderTxnID: "txn_1", Paid: false, Verified: false}
	if err := f.svc.ReconcilePayment(context.Background(), f.gateway, pending); err != nil {
		t.Fatalf("ReconcilePayment pending: %v", err)
	}
	if f.repo.payments[pay.ID].Status != repository.PaymentPending {
		t.Fatalf("payment status = %q, want PENDING", f.repo.payments[pay.ID].Status)
	}

	paid := payment.Notification{ProviderTxnID: "txn_1", Paid: true, Verified: true}
	if err := f.svc.ReconcilePayment(context.Background(), f.gateway, paid); err != nil {
		t.Fatalf("ReconcilePayment paid: %v", err)
	}
	if f.repo.payments[pay.ID].Status != repository.PaymentCompleted {
		t.Errorf("payment status = %q, want COMPLETED", f.repo.payments[pay.ID].Status)
	}
	got, _ := f.repo.GetOrder(context.Background(), order.ID)
	if got.Status != repository.OrderPaid {
		t.Errorf("order status = %q, want PAID", got.Status)
	}
}

func TestReconcilePaymentUnknownTransactionIsAcked(t *testing.T) {
	f := newFixture(t)

	err := f.svc.ReconcilePayment(context.Background(), f.gateway,
		payment.Notification{ProviderTxnID: "never-seen", Paid: true, Verified: true})
	if err != nil {
		t.Fatalf("unknown transaction must be acked, got %v", err)
	}
}

func TestReconcilePaymentUnverifiedIsConfirmedFirst(t *testing.T) {
	f := newFixture(t)
	leadID := f.seedLead()
	order := f.seedOrder(t, leadID)
	f.seedPayment(t, order.ID)

	f.gateway.verifyPaid = true
	notif := payment.Notification{ProviderTxnID: "txn_1", Paid: true, Verified: false}

	if err := f.svc.ReconcilePayment(context.Background(), f.gateway, notif); err != nil {
		t.Fatalf("ReconcilePayment: %v", err)
	}
	if f.gateway.verifyCalls != 1 {
		t.Errorf("verify calls = %d, want 1", f.gateway.verifyCalls)
	}

	got, _ := f.repo.GetOrder(context.Background(), order.ID)
	if got.Status != repository.OrderPaid {
		t.Errorf("order status = %q, want PAID", got.Status)
	}
}

func TestReconcilePaymentUnverifiedContradictedDoesNothing(t *testing.T) {
	f := newFixture(t)
	leadID := f.seedLead()
	order := f.seedOrder(t, leadID)
	pay := f.seedPayment(t, order.ID)

	f.gateway.verifyPaid = false
	notif := payment.Notification{ProviderTxnID: "txn_1", Paid: true, Verified: false}

	if err := f.svc.ReconcilePayment(context.Background(), f.gateway, notif); err != nil {
		t.Fatalf("ReconcilePayment: %v", err)
	}

	if f.repo.payments[pay.ID].Status != repository.PaymentPending {
		t.Errorf("payment status = %q, want PENDING", f.repo.payments[pay.ID].Status)
	}
	got, _ := f.repo.GetOrder(context.Background(), order.ID)
	if got.Status != repository.OrderPending {
		t.Errorf("order status = %q, want PENDING", got.Status)
	}
	if len(f.enqueuer.whatsapp) != 0 {
		t.Errorf("whatsapp enqueues = %d, want 0", len(f.enqueuer.whatsapp))
	}
}

func TestReconcilePaymentFailure(t *testing.T) {
	f := newFixture(t)
	leadID := f.seedLead()
	order := f.seedOrder(t, leadID)
	pay := f.seedPayment(t, order.ID)

	notif := payment.Notification{ProviderTxnID: "txn_1", Paid: false, Verified: true, FailureReason: "expired"}

	if err := f.svc.ReconcilePayment(context.Background(), f.gateway, notif); err != nil {
		t.Fatalf("ReconcilePayment: %v", err)
	}
	if f.repo.payments[pay.ID].Status != repository.PaymentFailed {
		t.Errorf("payment status = %q, want FAILED", f.repo.payments[pay.ID].Status)
	}
	got, _ := f.repo.GetOrder(context.Background(), order.ID)
	if got.Status != repository.OrderPending {
		t.Errorf("order status = %q, order must stay open for another attempt", got.Status)
	}
}

func TestConfirmCOD(t *testing.T) {
	f := newFixture(t)
	leadID := f.seedLead()
	order := f.seedOrder(t, leadID)

	got, err := f.svc.ConfirmCOD(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("ConfirmCOD: %v", err)
	}
	if got.Status != repository.OrderCODConfirmed {
		t.Fatalf("status = %q, want COD_CONFIRMED", got.Status)
	}
	if len(f.enqueuer.whatsapp) != 1 || f.enqueuer.whatsapp[0].TemplateName != "cod_confirmed" {
		t.Errorf("whatsapp enqueues = %+v", f.enqueuer.whatsapp)
	}

	// Confirming again is a quiet no-op, no second message.
	if _, err := f.svc.ConfirmCOD(context.Background(), order.ID); err != nil {
		t.Fatalf("repeat ConfirmCOD: %v", err)
	}
	if len(f.enqueuer.whatsapp) != 1 {
		t.Errorf("whatsapp enqueues after repeat = %d, want 1", len(f.enqueuer.whatsapp))
	}
}

func TestConfirmCODNeverDowngradesPaid(t *testing.T) {
	f := newFixture(t)
	leadID := f.seedLead()
	order := f.seedOrder(t, leadID)

	if _, err := f.svc.MarkPaid(context.Background(), order.ID, "operator"); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}

	if _, err := f.svc.ConfirmCOD(context.Background(), order.ID); apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	got, _ := f.repo.GetOrder(context.Background(), order.ID)
	if got.Status != repository.OrderPaid {
		t.Fatalf("status = %q, PAID was downgraded", got.Status)
	}
}

func TestMarkPaidFromCOD(t *testing.T) {
	f := newFixture(t)
	leadID := f.seedLead()
	order := f.seedOrder(t, leadID)

	if _, err := f.svc.ConfirmCOD(context.Background(), order.ID); err != nil {
		t.Fatalf("ConfirmCOD: %v", err)
	}

	// COD order settled in cash on delivery.
	got, err := f.svc.MarkPaid(context.Background(), order.ID, "driver")
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if got.Status != repository.OrderPaid {
		t.Fatalf("status = %q, want PAID", got.Status)
	}
}

func TestMarkPaidIdempotent(t *testing.T) {
	f := newFixture(t)
	leadID := f.seedLead()
	order := f.seedOrder(t, leadID)

	if _, err := f.svc.MarkPaid(context.Background(), order.ID, "operator"); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if _, err := f.svc.MarkPaid(context.Background(), order.ID, "operator"); err != nil {
		t.Fatalf("repeat MarkPaid: %v", err)
	}
	if n := f.timeline.count("Payment Received"); n != 1 {
		t.Errorf("payment activities = %d, want 1", n)
	}
}

func TestKeywordShortcutsTargetLatestOrder(t *testing.T) {
	f := newFixture(t)
	leadID := f.seedLead()

	old := f.seedOrder(t, leadID)
	f.repo.orders[old.ID].CreatedAt = time.Now().Add(-time.Hour)
	latest := f.seedOrder(t, leadID)

	got, err := f.svc.ConfirmCODLatest(context.Background(), leadID)
	if err != nil {
		t.Fatalf("ConfirmCODLatest: %v", err)
	}
	if got.ID != latest.ID {
		t.Fatalf("shortcut hit order %s, want latest %s", got.ID, latest.ID)
	}

	oldOrder, _ := f.repo.GetOrder(context.Background(), old.ID)
	if oldOrder.Status != repository.OrderPending {
		t.Errorf("old order status = %q, want untouched PENDING", oldOrder.Status)
	}
}

func TestCreatePaymentLinkSupersedesPriorAttempt(t *testing.T) {
	f := newFixture(t)
	leadID := f.seedLead()
	order := f.seedOrder(t, leadID)

	first := f.seedPayment(t, order.ID)
	second := f.seedPayment(t, order.ID)

	if f.repo.payments[first.ID].Status != repository.PaymentFailed {
		t.Fatalf("first attempt status = %q, want FAILED", f.repo.payments[first.ID].Status)
	}
	if f.repo.payments[second.ID].Status != repository.PaymentPending {
		t.Fatalf("second attempt status = %q, want PENDING", f.repo.payments[second.ID].Status)
	}

	// A late webhook for the superseded link must not settle the order.
	stale := payment.Notification{ProviderTxnID: first.ProviderTxnID, Paid: true, Verified: true}
	if err := f.svc.ReconcilePayment(context.Background(), f.gateway, stale); err != nil {
		t.Fatalf("ReconcilePayment stale: %v", err)
	}
	got, _ := f.repo.GetOrder(context.Background(), order.ID)
	if got.Status != repository.OrderPending {
		t.Errorf("order status = %q, want PENDING", got.Status)
	}

	live := payment.Notification{ProviderTxnID: second.ProviderTxnID, Paid: true, Verified: true}
	if err := f.svc.ReconcilePayment(context.Background(), f.gateway, live); err != nil {
		t.Fatalf("ReconcilePayment live: %v", err)
	}
	got, _ = f.repo.GetOrder(context.Background(), order.ID)
	if got.Status != repository.OrderPaid {
		t.Errorf("order status = %q, want PAID", got.Status)
	}
}

func TestUpdateStatusFulfillmentFlow(t *testing.T) {
	f := newFixture(t)
	leadID := f.seedLead()
	order := f.seedOrder(t, leadID)

	if _, err := f.svc.MarkPaid(context.Background(), order.ID, "operator"); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}

	steps := []repository.OrderStatus{
		repository.OrderShipped,
		repository.OrderDelivered,
		repository.OrderRefunded,
	}
	for _, to := range steps {
		got, err := f.svc.UpdateStatus(context.Background(), order.ID, to)
		if err != nil {
			t.Fatalf("UpdateStatus(%s): %v", to, err)
		}
		if got.Status != to {
			t.Fatalf("status = %q, want %s", got.Status, to)
		}
	}

	if n := f.timeline.count("Order Shipped"); n != 1 {
		t.Errorf("shipped activities = %d, want 1", n)
	}
	if n := f.timeline.count("Order Delivered"); n != 1 {
		t.Errorf("delivered activities = %d, want 1", n)
	}
	if n := f.timeline.count("Order Refunded"); n != 1 {
		t.Errorf("refunded activities = %d, want 1", n)
	}
}

func TestUpdateStatusFromCODConfirmed(t *testing.T) {
	f := newFixture(t)
	leadID := f.seedLead()
	order := f.seedOrder(t, leadID)

	if _, err := f.svc.ConfirmCOD(context.Background(), order.ID); err != nil {
		t.Fatalf("ConfirmCOD: %v", err)
	}

	got, err := f.svc.UpdateStatus(context.Background(), order.ID, repository.OrderShipped)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got.Status != repository.OrderShipped {
		t.Fatalf("status = %q, want SHIPPED", got.Status)
	}
}

func TestUpdateStatusRejectsInvalidTransitions(t *testing.T) {
	f := newFixture(t)
	leadID := f.seedLead()
	order := f.seedOrder(t, leadID)

	// PENDING never ships; the order has to settle first.
	if _, err := f.svc.UpdateStatus(context.Background(), order.ID, repository.OrderShipped); apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("expected conflict shipping a pending order, got %v", err)
	}
	// DELIVERED is only reachable from SHIPPED.
	if _, err := f.svc.MarkPaid(context.Background(), order.ID, "operator"); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if _, err := f.svc.UpdateStatus(context.Background(), order.ID, repository.OrderDelivered); apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("expected conflict delivering an unshipped order, got %v", err)
	}
	// Settlement statuses are not reachable through a direct update.
	if _, err := f.svc.UpdateStatus(context.Background(), order.ID, repository.OrderPaid); apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for a direct PAID update, got %v", err)
	}

	// Repeating an already-applied step is a quiet no-op.
	if _, err := f.svc.UpdateStatus(context.Background(), order.ID, repository.OrderShipped); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got, err := f.svc.UpdateStatus(context.Background(), order.ID, repository.OrderShipped); err != nil || got.Status != repository.OrderShipped {
		t.Fatalf("repeat UpdateStatus: status=%q err=%v", got.Status, err)
	}
	if n := f.timeline.count("Order Shipped"); n != 1 {
		t.Errorf("shipped activities = %d, want 1", n)
	}
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	leadID := f.seedLead()
	order := f.seedOrder(t, leadID)

	if err := f.svc.CancelOrder(context.Background(), order.ID); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	got, _ := f.repo.GetOrder(context.Background(), order.ID)
	if got.Status != repository.OrderCancelled {
		t.Fatalf("status = %q, want CANCELLED", got.Status)
	}

	paid := f.seedOrder(t, leadID)
	if _, err := f.svc.MarkPaid(context.Background(), paid.ID, "operator"); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if err := f.svc.CancelOrder(context.Background(), paid.ID); apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("expected conflict cancelling a paid order, got %v", err)
	}
}
