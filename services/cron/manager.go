package cron

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"
	"github.com/sahilchouksey/course-enrollment/model"
	"github.com/sahilchouksey/course-enrollment/services"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EnrollmentFinisher closes enrollment for courses that are about to start
type EnrollmentFinisher interface {
	FinishDueEnrollments(ctx context.Context, cutoff time.Time) (services.FinishSummary, error)
}

// Config holds the schedules of the enrollment jobs
type Config struct {
	// FinishSchedule is a six-field cron spec (seconds first)
	FinishSchedule string
	// FinishLead is how long before its start a course stops taking enrollments
	FinishLead time.Duration
	// LogRetention is how long cron_job_logs rows are kept
	LogRetention time.Duration
}

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron     *cron.Cron
	db       *gorm.DB
	finisher EnrollmentFinisher
	config   Config
	now      func() time.Time
}

// NewCronManager creates a new cron manager. db may be nil, in which case
// job runs are only logged, not recorded.
func NewCronManager(db *gorm.DB, finisher EnrollmentFinisher, config Config) *CronManager {
	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	if config.LogRetention <= 0 {
		config.LogRetention = 90 * 24 * time.Hour
	}

	return &CronManager{
		cron:     c,
		db:       db,
		finisher: finisher,
		config:   config,
		now:      time.Now,
	}
}

// Start starts all cron jobs
func (m *CronManager) Start() error {
	log.Info("Starting cron jobs...")

	// Register all jobs
	if err := m.registerJobs(); err != nil {
		return err
	}

	// Start the cron scheduler
	m.cron.Start()

	log.Info("Cron jobs started successfully")
	return nil
}

// Stop stops all cron jobs and waits for running ones
func (m *CronManager) Stop() {
	log.Info("Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Info("Cron jobs stopped")
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	// 1. Close enrollment for courses starting soon
	_, err := m.cron.AddFunc(m.config.FinishSchedule, m.FinishDueEnrollments)
	if err != nil {
		return err
	}

	// 2. Daily at 2 AM: Cleanup old job logs
	if m.db != nil {
		_, err = m.cron.AddFunc("0 0 2 * * *", m.CleanupCronLogs)
		if err != nil {
			return err
		}
	}

	log.Info("All cron jobs registered successfully")
	return nil
}

// jobRun tracks one execution of a job
type jobRun struct {
	name    string
	started time.Time
	logID   uint
}

// logJobStart logs the start of a cron job
func (m *CronManager) logJobStart(jobName string) *jobRun {
	run := &jobRun{name: jobName, started: m.now()}
	log.Infof("[CRON] Starting job: %s at %s", jobName, run.started.Format(time.RFC3339))

	if m.db == nil {
		return run
	}

	// Log to database
	cronLog := model.CronJobLog{
		JobName:   jobName,
		Status:    model.CronJobStatusRunning,
		StartedAt: run.started,
		Metadata:  datatypes.JSON("{}"),
	}
	if err := m.db.Create(&cronLog).Error; err != nil {
		log.Warnf("[CRON] Failed to record start of %s: %v", jobName, err)
		return run
	}
	run.logID = cronLog.ID
	return run
}

// logJobComplete logs successful completion of a cron job
func (m *CronManager) logJobComplete(run *jobRun, message string, metadata datatypes.JSON) {
	log.Infof("[CRON] Completed job: %s - %s", run.name, message)

	updates := map[string]interface{}{
		"status":  model.CronJobStatusCompleted,
		"message": message,
	}
	if metadata != nil {
		updates["metadata"] = metadata
	}
	m.finishLog(run, updates)
}

// logJobError logs a cron job error
func (m *CronManager) logJobError(run *jobRun, err error, metadata datatypes.JSON) {
	log.Errorf("[CRON] Error in job: %s - %v", run.name, err)

	updates := map[string]interface{}{
		"status":    model.CronJobStatusFailed,
		"error_msg": err.Error(),
	}
	if metadata != nil {
		updates["metadata"] = metadata
	}
	m.finishLog(run, updates)
}

func (m *CronManager) finishLog(run *jobRun, updates map[string]interface{}) {
	if m.db == nil || run.logID == 0 {
		return
	}

	completed := m.now()
	updates["completed_at"] = completed
	updates["duration"] = completed.Sub(run.started).Milliseconds()

	// Update database log
	err := m.db.Model(&model.CronJobLog{}).
		Where("id = ?", run.logID).
		Updates(updates).Error
	if err != nil {
		log.Warnf("[CRON] Failed to record end of %s: %v", run.name, err)
	}
}
