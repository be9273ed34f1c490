package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sahilchouksey/course-enrollment/database"
	"github.com/sahilchouksey/course-enrollment/model"
	"github.com/sahilchouksey/course-enrollment/services/lock"
	"github.com/sahilchouksey/course-enrollment/services/students"
)

var testNow = time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)

type fakeDirectory struct {
	mu       sync.Mutex
	students map[int64]model.Student
	err      error
	delay    time.Duration
	hook     func(ctx context.Context)
	calls    int32
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{students: make(map[int64]model.Student)}
}

func (d *fakeDirectory) add(id int64, email string, status model.StudentStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.students[id] = model.Student{ID: id, Email: email, Status: status}
}

func (d *fakeDirectory) GetStudentByID(ctx context.Context, id int64) (*model.Student, error) {
	atomic.AddInt32(&d.calls, 1)
	if d.hook != nil {
		d.hook(ctx)
	}
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("do request: %w", ctx.Err())
		}
	}
	if d.err != nil {
		return nil, d.err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.students[id]
	if !ok {
		return nil, &students.HTTPError{StatusCode: http.StatusNotFound, Message: "Student not found"}
	}
	return &s, nil
}

func (d *fakeDirectory) GetStudentsByEmails(ctx context.Context, emails []string) ([]model.Student, error) {
	atomic.AddInt32(&d.calls, 1)
	if d.err != nil {
		return nil, d.err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []model.Student{}
	for _, e := range emails {
		for _, s := range d.students {
			if s.Email == e {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.NotificationInfo
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, info model.NotificationInfo) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, info)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// noLock lets every caller through so only the version check guards writes
type noLock struct{}

func (noLock) Lock(ctx context.Context, key string) (func(), error) { return func() {}, nil }

type enrollFixture struct {
	store     *database.MemoryStore
	directory *fakeDirectory
	publisher *recordingPublisher
	svc       *EnrollmentService
}

func newEnrollFixture(t *testing.T, locker lock.Locker, opts ServiceOptions) *enrollFixture {
	t.Helper()
	f := &enrollFixture{
		store:     database.NewMemoryStore(),
		directory: newFakeDirectory(),
		publisher: &recordingPublisher{},
	}
	f.svc = NewEnrollmentService(f.store, locker, f.directory, NewNotificationService(f.publisher, "enroll_finish"), opts)
	f.svc.now = func() time.Time { return testNow }
	return f
}

func (f *enrollFixture) createCourse(t *testing.T, code string, limit, number int64, status model.CourseStatus) {
	t.Helper()
	c := &model.Course{
		Code:               code,
		Name:               "Course " + code,
		Description:        "About " + code,
		StartDate:          testNow.Add(72 * time.Hour),
		EndDate:            testNow.Add(96 * time.Hour),
		ParticipantsLimit:  limit,
		ParticipantsNumber: number,
		Status:             status,
	}
	if err := f.store.CreateCourse(context.Background(), c); err != nil {
		t.Fatalf("CreateCourse(%s): %v", code, err)
	}
}

func (f *enrollFixture) course(t *testing.T, code string) *model.Course {
	t.Helper()
	c, err := f.store.GetCourse(context.Background(), code)
	if err != nil {
		t.Fatalf("GetCourse(%s): %v", code, err)
	}
	return c
}

func TestEnrollFillsCourse(t *testing.T) {
	f := newEnrollFixture(t, lock.NewKeyedMutex(0), ServiceOptions{})
	f.createCourse(t, "CS101", 2, 1, model.CourseStatusActive)
	f.directory.add(1, "a@x.com", model.StudentStatusActive)
	f.directory.add(2, "b@x.com", model.StudentStatusActive)
	ctx := context.Background()

	if err := f.svc.Enroll(ctx, "CS101", 1); err != nil {
		t.Fatalf("Enroll(a@x.com): %v", err)
	}
	c := f.course(t, "CS101")
	if c.ParticipantsNumber != 2 || c.Status != model.CourseStatusFull {
		t.Errorf("after first enroll = %d/%s, want 2/FULL", c.ParticipantsNumber, c.Status)
	}
	if len(c.Members) != 1 || c.Members[0].Email != "a@x.com" || !c.Members[0].EnrollmentDate.Equal(testNow) {
		t.Errorf("members = %+v, want a@x.com enrolled at %v", c.Members, testNow)
	}

	err := f.svc.Enroll(ctx, "CS101", 2)
	if !errors.Is(err, model.ErrCapacityExceeded) {
		t.Errorf("Enroll(b@x.com) error = %v, want ErrCapacityExceeded", err)
	}
	if !errors.Is(err, model.ErrCourseNotActive) {
		t.Errorf("Enroll(b@x.com) error = %v, want it to also match ErrCourseNotActive", err)
	}
	if c := f.course(t, "CS101"); c.ParticipantsNumber != 2 || len(c.Members) != 1 {
		t.Errorf("course changed after rejected enroll: %d participants, %d members", c.ParticipantsNumber, len(c.Members))
	}
}

func TestEnrollConcurrentLastSeat(t *testing.T) {
	lockers := map[string]lock.Locker{
		"keyed mutex":  lock.NewKeyedMutex(0),
		"version only": noLock{},
	}

	for name, locker := range lockers {
		t.Run(name, func(t *testing.T) {
			f := newEnrollFixture(t, locker, ServiceOptions{MaxAttempts: 5})
			f.createCourse(t, "CS101", 1, 0, model.CourseStatusActive)
			f.directory.add(1, "a@x.com", model.StudentStatusActive)
			f.directory.add(2, "b@x.com", model.StudentStatusActive)
			// both requests pass the status gate before either commits
			f.directory.delay = 20 * time.Millisecond

			var (
				wg    sync.WaitGroup
				start = make(chan struct{})
				errs  = make([]error, 2)
			)
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					errs[i] = f.svc.Enroll(context.Background(), "CS101", int64(i+1))
				}(i)
			}
			close(start)
			wg.Wait()

			succeeded := 0
			for _, err := range errs {
				switch {
				case err == nil:
					succeeded++
				case !errors.Is(err, model.ErrCapacityExceeded):
					t.Errorf("losing enroll error = %v, want ErrCapacityExceeded", err)
				}
			}
			if succeeded != 1 {
				t.Errorf("successful enrollments = %d, want 1", succeeded)
			}

			c := f.course(t, "CS101")
			if c.ParticipantsNumber != 1 || c.Status != model.CourseStatusFull || len(c.Members) != 1 {
				t.Errorf("final course = %d participants, %s, %d members; want 1, FULL, 1",
					c.ParticipantsNumber, c.Status, len(c.Members))
			}
		})
	}
}

func TestEnrollNeverOversells(t *testing.T) {
	const (
		limit      = 3
		applicants = 12
	)
	lockers := map[string]lock.Locker{
		"keyed mutex":  lock.NewKeyedMutex(0),
		"version only": noLock{},
	}

	for name, locker := range lockers {
		t.Run(name, func(t *testing.T) {
			f := newEnrollFixture(t, locker, ServiceOptions{MaxAttempts: limit + 2})
			f.createCourse(t, "CS200", limit, 0, model.CourseStatusActive)
			for i := 1; i <= applicants; i++ {
				f.directory.add(int64(i), fmt.Sprintf("s%d@x.com", i), model.StudentStatusActive)
			}

			var (
				wg        sync.WaitGroup
				succeeded int32
			)
			for i := 1; i <= applicants; i++ {
				wg.Add(1)
				go func(id int64) {
					defer wg.Done()
					err := f.svc.Enroll(context.Background(), "CS200", id)
					if err == nil {
						atomic.AddInt32(&succeeded, 1)
						return
					}
					if !errors.Is(err, model.ErrCapacityExceeded) {
						t.Errorf("Enroll(%d) error = %v, want ErrCapacityExceeded", id, err)
					}
				}(int64(i))
			}
			wg.Wait()

			if succeeded != limit {
				t.Errorf("successful enrollments = %d, want %d", succeeded, limit)
			}
			c := f.course(t, "CS200")
			if c.ParticipantsNumber != limit || len(c.Members) != limit || c.Status != model.CourseStatusFull {
				t.Errorf("final course = %d participants, %d members, %s; want %d, %d, FULL",
					c.ParticipantsNumber, len(c.Members), c.Status, limit, limit)
			}
		})
	}
}

func TestEnrollSameStudentTwice(t *testing.T) {
	f := newEnrollFixture(t, lock.NewKeyedMutex(0), ServiceOptions{})
	f.createCourse(t, "CS101", 5, 0, model.CourseStatusActive)
	f.directory.add(1, "a@x.com", model.StudentStatusActive)

	if err := f.svc.Enroll(context.Background(), "CS101", 1); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Enroll(context.Background(), "CS101", 1); !errors.Is(err, model.ErrAlreadyEnrolled) {
		t.Errorf("second Enroll error = %v, want ErrAlreadyEnrolled", err)
	}
	if c := f.course(t, "CS101"); len(c.Members) != 1 || c.ParticipantsNumber != 1 {
		t.Errorf("course = %d members, %d participants; want 1, 1", len(c.Members), c.ParticipantsNumber)
	}
}

func TestEnrollClosedCourseSkipsDirectory(t *testing.T) {
	tests := []struct {
		name   string
		limit  int64
		number int64
		status model.CourseStatus
	}{
		{"inactive", 5, 2, model.CourseStatusInactive},
		{"full", 2, 2, model.CourseStatusFull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEnrollFixture(t, lock.NewKeyedMutex(0), ServiceOptions{})
			f.createCourse(t, "CS101", tt.limit, tt.number, tt.status)
			f.directory.add(1, "a@x.com", model.StudentStatusActive)

			err := f.svc.Enroll(context.Background(), "CS101", 1)
			if !errors.Is(err, model.ErrCourseNotActive) {
				t.Errorf("Enroll error = %v, want ErrCourseNotActive", err)
			}
			if calls := atomic.LoadInt32(&f.directory.calls); calls != 0 {
				t.Errorf("directory calls = %d, want 0", calls)
			}
		})
	}
}

func TestEnrollUnknownCourse(t *testing.T) {
	f := newEnrollFixture(t, lock.NewKeyedMutex(0), ServiceOptions{})
	if err := f.svc.Enroll(context.Background(), "NOPE", 1); !errors.Is(err, model.ErrCourseNotFound) {
		t.Errorf("Enroll error = %v, want ErrCourseNotFound", err)
	}
}

func TestEnrollInactiveStudent(t *testing.T) {
	f := newEnrollFixture(t, lock.NewKeyedMutex(0), ServiceOptions{})
	f.createCourse(t, "CS101", 5, 0, model.CourseStatusActive)
	f.directory.add(1, "a@x.com", model.StudentStatusInactive)

	if err := f.svc.Enroll(context.Background(), "CS101", 1); !errors.Is(err, model.ErrStudentNotActive) {
		t.Errorf("Enroll error = %v, want ErrStudentNotActive", err)
	}
}

func TestEnrollDirectoryFailures(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		delay       time.Duration
		unavailable bool
	}{
		{"not found", nil, 0, false},
		{"decode failure", fmt.Errorf("students.GetStudentByID: %w", students.ErrDecode), 0, false},
		{"server error", &students.HTTPError{StatusCode: http.StatusBadGateway, Message: "bad gateway"}, 0, true},
		{"timeout", nil, time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEnrollFixture(t, lock.NewKeyedMutex(0), ServiceOptions{LookupTimeout: 20 * time.Millisecond})
			f.createCourse(t, "CS101", 5, 0, model.CourseStatusActive)
			f.directory.err = tt.err
			f.directory.delay = tt.delay
			if tt.delay > 0 {
				f.directory.add(1, "a@x.com", model.StudentStatusActive)
			}

			err := f.svc.Enroll(context.Background(), "CS101", 1)
			if !errors.Is(err, model.ErrStudentNotEligible) {
				t.Errorf("Enroll error = %v, want it to match ErrStudentNotEligible", err)
			}
			if got := errors.Is(err, model.ErrDirectoryUnavailable); got != tt.unavailable {
				t.Errorf("errors.Is(err, ErrDirectoryUnavailable) = %v, want %v", got, tt.unavailable)
			}
			if c := f.course(t, "CS101"); c.ParticipantsNumber != 0 || c.Version != 0 {
				t.Errorf("course mutated after failed lookup: %+v", c)
			}
		})
	}
}

func TestEnrollCancelledBeforeCommit(t *testing.T) {
	f := newEnrollFixture(t, lock.NewKeyedMutex(0), ServiceOptions{})
	f.createCourse(t, "CS101", 5, 0, model.CourseStatusActive)
	f.directory.add(1, "a@x.com", model.StudentStatusActive)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// the client goes away while the directory answers
	f.directory.hook = func(context.Context) { cancel() }

	if err := f.svc.Enroll(ctx, "CS101", 1); !errors.Is(err, context.Canceled) {
		t.Errorf("Enroll error = %v, want context.Canceled", err)
	}
	if c := f.course(t, "CS101"); c.ParticipantsNumber != 0 || len(c.Members) != 0 {
		t.Errorf("cancelled enroll was applied: %+v", c)
	}
}

func TestFinishEnroll(t *testing.T) {
	f := newEnrollFixture(t, lock.NewKeyedMutex(0), ServiceOptions{})
	f.createCourse(t, "CS101", 5, 0, model.CourseStatusActive)
	f.directory.add(1, "a@x.com", model.StudentStatusActive)
	f.directory.add(2, "b@x.com", model.StudentStatusActive)
	ctx := context.Background()
	for _, id := range []int64{1, 2} {
		if err := f.svc.Enroll(ctx, "CS101", id); err != nil {
			t.Fatal(err)
		}
	}

	if err := f.svc.FinishEnroll(ctx, "CS101"); err != nil {
		t.Fatalf("FinishEnroll: %v", err)
	}
	c := f.course(t, "CS101")
	if c.Status != model.CourseStatusInactive || c.ClosedReason != model.CloseReasonFinished {
		t.Errorf("course = %s/%s, want INACTIVE/FINISHED", c.Status, c.ClosedReason)
	}
	if c.ParticipantsNumber != 2 {
		t.Errorf("ParticipantsNumber = %d, want 2 kept after close", c.ParticipantsNumber)
	}

	if f.publisher.count() != 1 {
		t.Fatalf("published %d events, want 1", f.publisher.count())
	}
	ev := f.publisher.events[0]
	if ev.CourseCode != "CS101" || ev.CourseDescription != "About CS101" || len(ev.Emails) != 2 || ev.Emails[0] != "a@x.com" {
		t.Errorf("event = %+v, want CS101 roster [a@x.com b@x.com]", ev)
	}

	if err := f.svc.FinishEnroll(ctx, "CS101"); !errors.Is(err, model.ErrCourseAlreadyClosed) {
		t.Errorf("second FinishEnroll error = %v, want ErrCourseAlreadyClosed", err)
	}
	if f.publisher.count() != 1 {
		t.Errorf("published %d events after second finish, want 1", f.publisher.count())
	}
}

func TestFinishEnrollDeletedCourse(t *testing.T) {
	f := newEnrollFixture(t, lock.NewKeyedMutex(0), ServiceOptions{})
	f.createCourse(t, "CS101", 5, 0, model.CourseStatusInactive)

	if err := f.svc.FinishEnroll(context.Background(), "CS101"); !errors.Is(err, model.ErrCourseAlreadyClosed) {
		t.Errorf("FinishEnroll error = %v, want ErrCourseAlreadyClosed", err)
	}
	if f.publisher.count() != 0 {
		t.Errorf("published %d events, want 0", f.publisher.count())
	}
}

func TestFinishEnrollPublishFailureKeepsClose(t *testing.T) {
	f := newEnrollFixture(t, lock.NewKeyedMutex(0), ServiceOptions{})
	f.publisher.err = errors.New("broker unreachable")
	f.createCourse(t, "CS101", 5, 0, model.CourseStatusActive)

	if err := f.svc.FinishEnroll(context.Background(), "CS101"); err != nil {
		t.Fatalf("FinishEnroll error = %v, want nil despite publish failure", err)
	}
	if c := f.course(t, "CS101"); c.Status != model.CourseStatusInactive {
		t.Errorf("Status = %s, want INACTIVE", c.Status)
	}
}

func TestFinishDueEnrollments(t *testing.T) {
	f := newEnrollFixture(t, lock.NewKeyedMutex(0), ServiceOptions{})
	f.createCourse(t, "DUE", 5, 0, model.CourseStatusActive)
	f.createCourse(t, "FULL", 1, 1, model.CourseStatusFull)
	f.createCourse(t, "CLOSED", 5, 0, model.CourseStatusInactive)

	later := &model.Course{
		Code:              "LATER",
		Name:              "Later",
		StartDate:         testNow.Add(30 * 24 * time.Hour),
		EndDate:           testNow.Add(31 * 24 * time.Hour),
		ParticipantsLimit: 5,
		Status:            model.CourseStatusActive,
	}
	if err := f.store.CreateCourse(context.Background(), later); err != nil {
		t.Fatal(err)
	}

	summary, err := f.svc.FinishDueEnrollments(context.Background(), testNow.Add(7*24*time.Hour))
	if err != nil {
		t.Fatalf("FinishDueEnrollments: %v", err)
	}
	want := FinishSummary{Checked: 3, Finished: 2, Published: 2}
	if summary != want {
		t.Errorf("summary = %+v, want %+v", summary, want)
	}
	if c := f.course(t, "LATER"); c.Status != model.CourseStatusActive {
		t.Errorf("LATER status = %s, want ACTIVE", c.Status)
	}
	for _, code := range []string{"DUE", "FULL"} {
		if c := f.course(t, code); c.Status != model.CourseStatusInactive {
			t.Errorf("%s status = %s, want INACTIVE", code, c.Status)
		}
	}
}

func TestEnrollGivesUpOnHeldLock(t *testing.T) {
	locker := lock.NewKeyedMutex(50 * time.Millisecond)
	f := newEnrollFixture(t, locker, ServiceOptions{})
	f.createCourse(t, "CS101", 5, 0, model.CourseStatusActive)
	f.directory.add(1, "a@x.com", model.StudentStatusActive)

	unlock, err := locker.Lock(context.Background(), "CS101")
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	done := make(chan error, 1)
	go func() { done <- f.svc.Enroll(context.Background(), "CS101", 1) }()

	select {
	case err := <-done:
		if !errors.Is(err, model.ErrConcurrencyConflict) {
			t.Errorf("Enroll error = %v, want ErrConcurrencyConflict", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Enroll still blocked on a held course lock")
	}
	if c := f.course(t, "CS101"); c.ParticipantsNumber != 0 || len(c.Members) != 0 {
		t.Errorf("course changed: %d participants, %d members", c.ParticipantsNumber, len(c.Members))
	}
}
