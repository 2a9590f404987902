// Package adapters wires module ports to the services that own the data.
// Each consumer declares the narrow interface it needs; the adapters here are
// the only place the modules touch each other.
package adapters

import (
	"context"

	callsvc "github.com/iwanfadzly/call/internal/calls/service"
	leadrepo "github.com/iwanfadzly/call/internal/leads/repository"
	leadsvc "github.com/iwanfadzly/call/internal/leads/service"
	ordersvc "github.com/iwanfadzly/call/internal/orders/service"
	"github.com/iwanfadzly/call/internal/whatsapp"

	"github.com/google/uuid"
)

// LeadAdapter exposes the leads module to the calls, orders and whatsapp
// modules.
type LeadAdapter struct {
	svc  *leadsvc.Service
	repo leadrepo.Repository
}

// NewLeadAdapter creates a lead adapter.
func NewLeadAdapter(svc *leadsvc.Service, repo leadrepo.Repository) *LeadAdapter {
	return &LeadAdapter{svc: svc, repo: repo}
}

// Calls returns the adapter as the calls module's lead directory.
func (a *LeadAdapter) Calls() *CallLeadDirectory { return &CallLeadDirectory{a} }

// Orders returns the adapter as the orders module's lead directory.
func (a *LeadAdapter) Orders() *OrderLeadDirectory { return &OrderLeadDirectory{a} }

// WhatsApp returns the adapter as the whatsapp module's lead directory.
func (a *LeadAdapter) WhatsApp() *WhatsAppLeadDirectory { return &WhatsAppLeadDirectory{a} }

// CallLeadDirectory implements the calls service lead port.
type CallLeadDirectory struct{ a *LeadAdapter }

func (d *CallLeadDirectory) LeadByID(ctx context.Context, id uuid.UUID) (callsvc.LeadInfo, error) {
	lead, err := d.a.svc.GetByID(ctx, id)
	if err != nil {
		return callsvc.LeadInfo{}, err
	}
	return callsvc.LeadInfo{
		ID:    lead.ID,
		Phone: lead.Phone,
		Name:  lead.Name,
		DNC:   lead.Status == leadrepo.StatusDNC,
	}, nil
}

var _ callsvc.LeadDirectory = (*CallLeadDirectory)(nil)

// OrderLeadDirectory implements the orders service lead port.
type OrderLeadDirectory struct{ a *LeadAdapter }

func (d *OrderLeadDirectory) LeadByID(ctx context.Context, id uuid.UUID) (ordersvc.LeadInfo, error) {
	lead, err := d.a.svc.GetByID(ctx, id)
	if err != nil {
		return ordersvc.LeadInfo{}, err
	}
	email := ""
	if lead.Email != nil {
		email = *lead.Email
	}
	return ordersvc.LeadInfo{
		ID:    lead.ID,
		Phone: lead.Phone,
		Name:  lead.Name,
		Email: email,
	}, nil
}

var _ ordersvc.LeadDirectory = (*OrderLeadDirectory)(nil)

// WhatsAppLeadDirectory implements the whatsapp service lead port.
type WhatsAppLeadDirectory struct{ a *LeadAdapter }

func (d *WhatsAppLeadDirectory) LeadByID(ctx context.Context, id uuid.UUID) (whatsapp.LeadInfo, error) {
	lead, err := d.a.svc.GetByID(ctx, id)
	if err != nil {
		return whatsapp.LeadInfo{}, err
	}
	return toWhatsAppLead(lead), nil
}

func (d *WhatsAppLeadDirectory) LeadByPhone(ctx context.Context, phone string) (whatsapp.LeadInfo, error) {
	lead, err := d.a.svc.FindByPhone(ctx, phone)
	if err != nil {
		return whatsapp.LeadInfo{}, err
	}
	return toWhatsAppLead(lead), nil
}

func toWhatsAppLead(lead leadrepo.Lead) whatsapp.LeadInfo {
	return whatsapp.LeadInfo{
		ID:    lead.ID,
		Phone: lead.Phone,
		Name:  lead.Name,
		DNC:   lead.Status == leadrepo.StatusDNC,
	}
}

var _ whatsapp.LeadDirectory = (*WhatsAppLeadDirectory)(nil)
