package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sahilchouksey/course-enrollment/services"
)

type fakeFinisher struct {
	cutoffs []time.Time
	summary services.FinishSummary
	err     error
}

func (f *fakeFinisher) FinishDueEnrollments(ctx context.Context, cutoff time.Time) (services.FinishSummary, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.summary, f.err
}

func TestFinishDueEnrollmentsUsesLead(t *testing.T) {
	now := time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)
	finisher := &fakeFinisher{summary: services.FinishSummary{Checked: 3, Finished: 1, Published: 1}}
	m := NewCronManager(nil, finisher, Config{FinishSchedule: "0 */5 * * * *", FinishLead: 24 * time.Hour})
	m.now = func() time.Time { return now }

	m.FinishDueEnrollments()

	if len(finisher.cutoffs) != 1 {
		t.Fatalf("finisher called %d times, want 1", len(finisher.cutoffs))
	}
	if want := now.Add(24 * time.Hour); !finisher.cutoffs[0].Equal(want) {
		t.Errorf("cutoff = %v, want %v", finisher.cutoffs[0], want)
	}
}

func TestFinishDueEnrollmentsSurvivesErrors(t *testing.T) {
	finisher := &fakeFinisher{err: errors.New("store down")}
	m := NewCronManager(nil, finisher, Config{FinishSchedule: "0 */5 * * * *"})

	// must not panic without a database
	m.FinishDueEnrollments()
	m.CleanupCronLogs()

	if len(finisher.cutoffs) != 1 {
		t.Errorf("finisher called %d times, want 1", len(finisher.cutoffs))
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	m := NewCronManager(nil, &fakeFinisher{}, Config{FinishSchedule: "every five minutes"})
	if err := m.Start(); err == nil {
		m.Stop()
		t.Fatal("Start() with invalid schedule succeeded, want error")
	}
}

func TestStartAndStop(t *testing.T) {
	m := NewCronManager(nil, &fakeFinisher{}, Config{FinishSchedule: "0 */5 * * * *"})
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n := len(m.cron.Entries()); n != 1 {
		t.Errorf("registered entries = %d, want 1 without a database", n)
	}
	m.Stop()
}
