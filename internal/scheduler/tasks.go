package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Queue lanes. Each lane has its own workers; ordering is FIFO within a lane
// modulo explicit delay, with no guarantee across lanes.
const (
	LaneCalls    = "calls"
	LaneWhatsApp = "whatsapp"
	LaneExports  = "exports"
)

// Task type identifiers, one per job kind.
const (
	TaskCallLead     = "calls.lead"
	TaskWhatsAppSend = "whatsapp.send"
	TaskExportData   = "exports.generate"
)

// CallLeadPayload enqueues an outbound AI call for a lead.
type CallLeadPayload struct {
	LeadID   string `json:"leadId"`
	UserID   string `json:"userId"`
	CallType string `json:"callType"`
}

// WhatsAppSendPayload enqueues an outbound WhatsApp message. Either Message or
// TemplateName must be set.
type WhatsAppSendPayload struct {
	LeadID       string            `json:"leadId"`
	OrderID      string            `json:"orderId,omitempty"`
	Message      string            `json:"message,omitempty"`
	TemplateName string            `json:"templateName,omitempty"`
	TemplateData map[string]string `json:"templateData,omitempty"`
}

// ExportDataPayload enqueues a data export. ExportID references the
// export_jobs row created before enqueueing, so a re-delivered job updates the
// same record instead of creating a second artifact entry.
type ExportDataPayload struct {
	ExportID string            `json:"exportId"`
	Type     string            `json:"type"`
	Filters  map[string]string `json:"filters,omitempty"`
	UserID   string            `json:"userId"`
}

func NewCallLeadTask(payload CallLeadPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCallLead, data), nil
}

func ParseCallLeadPayload(task *asynq.Task) (CallLeadPayload, error) {
	var payload CallLeadPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CallLeadPayload{}, err
	}
	return payload, nil
}

func NewWhatsAppSendTask(payload WhatsAppSendPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWhatsAppSend, data), nil
}

func ParseWhatsAppSendPayload(task *asynq.Task) (WhatsAppSendPayload, error) {
	var payload WhatsAppSendPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return WhatsAppSendPayload{}, err
	}
	return payload, nil
}

func NewExportDataTask(payload ExportDataPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExportData, data), nil
}

func ParseExportDataPayload(task *asynq.Task) (ExportDataPayload, error) {
	var payload ExportDataPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ExportDataPayload{}, err
	}
	return payload, nil
}
