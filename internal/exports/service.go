package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/iwanfadzly/call/internal/scheduler"
	"github.com/iwanfadzly/call/platform/apperr"
	"github.com/iwanfadzly/call/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Service creates export jobs and generates their artifacts on the exports
// lane.
type Service struct {
	repo     *Repository
	uploader Uploader
	enqueuer scheduler.Enqueuer
	log      *logger.Logger
}

// NewService creates a new exports service.
func NewService(repo *Repository, uploader Uploader, enqueuer scheduler.Enqueuer, log *logger.Logger) *Service {
	return &Service{repo: repo, uploader: uploader, enqueuer: enqueuer, log: log}
}

// Request records an export job and queues its generation. The queue payload
// carries the job id, so a redelivered task updates the same row instead of
// producing a second artifact entry.
func (s *Service) Request(ctx context.Context, exportType, requestedBy string, filters map[string]string) (Job, error) {
	exportType = strings.ToUpper(exportType)
	if !ValidType(exportType) {
		return Job{}, apperr.Validation(fmt.Sprintf("unknown export type %q", exportType))
	}

	job, err := s.repo.CreateJob(ctx, exportType, requestedBy, filters)
	if err != nil {
		return Job{}, err
	}

	if _, err := s.enqueuer.EnqueueExport(ctx, scheduler.ExportDataPayload{
		ExportID: job.ID.String(),
		Type:     exportType,
		Filters:  filters,
		UserID:   requestedBy,
	}, scheduler.EnqueueOptions{}); err != nil {
		if ferr := s.repo.FailJob(ctx, job.ID, "failed to enqueue"); ferr != nil {
			s.log.Error("fail unenqueued export", "export_id", job.ID, "error", ferr)
		}
		return Job{}, err
	}

	s.log.Info("export requested", "export_id", job.ID, "type", exportType, "requested_by", requestedBy)
	return job, nil
}

// Get retrieves an export job.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Job, error) {
	return s.repo.GetJob(ctx, id)
}

// HandleExportTask is the queue handler for export jobs. Registered on the
// exports lane by the worker binary.
func (s *Service) HandleExportTask(ctx context.Context, task *asynq.Task) error {
	payload, err := scheduler.ParseExportDataPayload(task)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "malformed export job payload", err)
	}

	exportID, err := uuid.Parse(payload.ExportID)
	if err != nil {
		return apperr.Validation("export job carries an invalid export id")
	}

	claimed, err := s.repo.ClaimJob(ctx, exportID)
	if err != nil {
		return err
	}
	if !claimed {
		s.log.Debug("export task dropped, job already completed", "export_id", exportID)
		return nil
	}

	if err := s.generate(ctx, exportID, payload); err != nil {
		if ferr := s.repo.FailJob(ctx, exportID, err.Error()); ferr != nil {
			s.log.Error("record export failure", "export_id", exportID, "error", ferr)
		}
		return err
	}
	return nil
}

func (s *Service) generate(ctx context.Context, exportID uuid.UUID, payload scheduler.ExportDataPayload) error {
	filters := payload.Filters
	if filters == nil {
		filters = map[string]string{}
	}

	var header []string
	var rows [][]string
	var err error
	switch payload.Type {
	case TypeLeads:
		header, rows, err = s.repo.LeadRows(ctx, filters)
	case TypeCalls:
		header, rows, err = s.repo.CallRows(ctx, filters)
	case TypeOrders:
		header, rows, err = s.repo.OrderRows(ctx, filters)
	default:
		return apperr.Validation(fmt.Sprintf("unknown export type %q", payload.Type))
	}
	if err != nil {
		return err
	}

	data, err := writeCSV(header, rows)
	if err != nil {
		return err
	}

	if s.uploader == nil {
		return apperr.Provider("export artifact store is not configured")
	}

	key := fmt.Sprintf("%s/%s-%s.csv",
		strings.ToLower(payload.Type), time.Now().UTC().Format("20060102-150405"), exportID)

	url, err := s.uploader.Upload(ctx, key, data, "text/csv")
	if err != nil {
		return err
	}

	if err := s.repo.CompleteJob(ctx, exportID, key, url, len(rows)); err != nil {
		return err
	}

	s.log.Info("export completed", "export_id", exportID, "type", payload.Type, "rows", len(rows))
	return nil
}

func writeCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
