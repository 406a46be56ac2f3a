package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/snt-portal/snt-portal/internal/jobs"
	"github.com/snt-portal/snt-portal/internal/notify"
	"github.com/snt-portal/snt-portal/internal/qa"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeQAFullRun executes the full QA suite and persists the report.
	TaskTypeQAFullRun = "qa:full_run"
	// TaskTypeOverdueNotify sends overdue-dues reminders to residents.
	TaskTypeOverdueNotify = "billing:overdue_notify"
)

// QAFullRunPayload carries the report id the run persists under.
type QAFullRunPayload struct {
	ReportID string `json:"reportId"`
}

// NewQAFullRunTask constructs the asynq task for a full QA run.
func NewQAFullRunTask(reportID string) (*asynq.Task, error) {
	data, err := json.Marshal(QAFullRunPayload{ReportID: reportID})
	if err != nil {
		return nil, err
	}
	// A second run for the same report id is pointless; dedupe on it.
	return asynq.NewTask(TaskTypeQAFullRun, data, asynq.TaskID("qa-run-"+reportID)), nil
}

// NewQAFullRunHandler processes TaskTypeQAFullRun tasks through the report
// builder. The run drives the portal over HTTP and can take minutes; asynq
// owns the timeout.
func NewQAFullRunHandler(builder *qa.Builder, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskTypeQAFullRun)
		// An empty payload is a scheduled run; the builder picks the report id.
		var payload QAFullRunPayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return tracker.End(asynq.SkipRetry)
			}
		}
		started := time.Now()
		report, err := builder.Run(ctx, payload.ReportID)
		if err != nil {
			logger.Error("qa full run failed",
				slog.String("report_id", payload.ReportID),
				slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("qa full run finished",
			slog.String("report_id", report.ID),
			slog.Bool("pass", report.Pass),
			slog.Duration("took", time.Since(started)))
		return tracker.End(nil)
	}
}

// NewOverdueNotifyHandler processes TaskTypeOverdueNotify tasks.
func NewOverdueNotifyHandler(svc *notify.Service, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskTypeOverdueNotify)
		sent, err := svc.NotifyOverdue(ctx)
		if err != nil {
			return tracker.End(err)
		}
		logger.Info("overdue reminders processed", slog.Int("sent", sent))
		return tracker.End(nil)
	}
}
