package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/course-enrollment/model"
	"gorm.io/datatypes"
)

const (
	jobFinishDueEnrollments = "finish_due_enrollments"
	jobCleanupCronLogs      = "cleanup_cron_logs"
)

// FinishDueEnrollments closes enrollment for every open course that starts
// within the configured lead time and publishes its roster.
func (m *CronManager) FinishDueEnrollments() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	run := m.logJobStart(jobFinishDueEnrollments)
	cutoff := m.now().Add(m.config.FinishLead)

	summary, err := m.finisher.FinishDueEnrollments(ctx, cutoff)

	var metadata datatypes.JSON
	if raw, mErr := sonic.Marshal(summary); mErr == nil {
		metadata = datatypes.JSON(raw)
	}

	if err != nil {
		m.logJobError(run, fmt.Errorf("finished %d of %d due courses: %w", summary.Finished, summary.Checked, err), metadata)
		return
	}

	m.logJobComplete(run, fmt.Sprintf("Checked %d open courses, finished %d, published %d",
		summary.Checked, summary.Finished, summary.Published), metadata)
}

// CleanupCronLogs removes job logs older than the retention period
// Runs daily at 2 AM
func (m *CronManager) CleanupCronLogs() {
	if m.db == nil {
		return
	}

	run := m.logJobStart(jobCleanupCronLogs)

	cutoff := m.now().Add(-m.config.LogRetention)
	result := m.db.Where("created_at < ?", cutoff).Delete(&model.CronJobLog{})
	if result.Error != nil {
		m.logJobError(run, fmt.Errorf("failed to clean cron logs: %w", result.Error), nil)
		return
	}

	log.Infof("[CRON] Cleaned %d old cron logs", result.RowsAffected)
	m.logJobComplete(run, fmt.Sprintf("Removed %d cron logs older than %s", result.RowsAffected, cutoff.Format(time.RFC3339)), nil)
}
