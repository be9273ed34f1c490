package model

import (
	"strings"
	"time"
)

// CourseStatus is the enrollment status of a course
type CourseStatus string

const (
	CourseStatusActive   CourseStatus = "ACTIVE"
	CourseStatusInactive CourseStatus = "INACTIVE"
	CourseStatusFull     CourseStatus = "FULL"
)

// IsValid reports whether s is one of the known statuses
func (s CourseStatus) IsValid() bool {
	switch s {
	case CourseStatusActive, CourseStatusInactive, CourseStatusFull:
		return true
	}
	return false
}

// ParseCourseStatus parses a status name case-insensitively
func ParseCourseStatus(raw string) (CourseStatus, error) {
	s := CourseStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// CloseReason tells why a course became INACTIVE
type CloseReason string

const (
	CloseReasonDeleted  CloseReason = "DELETED"
	CloseReasonFinished CloseReason = "FINISHED"
)

// Course is an enrollable unit with a capacity and an active window
type Course struct {
	ID                 uint         `gorm:"primaryKey" json:"-"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
	Code               string       `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name               string       `gorm:"not null" json:"name"`
	Description        string       `gorm:"type:text" json:"description"`
	StartDate          time.Time    `gorm:"not null;index" json:"start_date"`
	EndDate            time.Time    `gorm:"not null" json:"end_date"`
	ParticipantsLimit  int64        `gorm:"not null;default:0" json:"participants_limit"`
	ParticipantsNumber int64        `gorm:"not null;default:0" json:"participants_number"`
	Status             CourseStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	ClosedReason       CloseReason  `gorm:"type:varchar(20)" json:"closed_reason,omitempty"`
	// Version is bumped by every successful store write
	Version int64 `gorm:"not null;default:0" json:"version"`

	// Relationships
	Members []CourseMember `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course_members"`
}

// CourseMember records one enrollment. Members are append-only.
type CourseMember struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	CourseID       uint      `gorm:"not null;uniqueIndex:idx_course_members_course_email" json:"-"`
	Email          string    `gorm:"not null;uniqueIndex:idx_course_members_course_email" json:"email"`
	EnrollmentDate time.Time `gorm:"not null" json:"enrollment_date"`
}

// Validate checks the invariants that must hold whenever a course is written
func (c *Course) Validate() error {
	if c.StartDate.After(c.EndDate) {
		return ErrStartDateAfterEndDate
	}
	if c.ParticipantsLimit < 0 || c.ParticipantsNumber < 0 {
		return ErrNegativeParticipants
	}
	if c.ParticipantsNumber > c.ParticipantsLimit {
		return ErrParticipantsLimitExceeded
	}
	if int64(len(c.Members)) > c.ParticipantsNumber {
		return ErrParticipantsBelowMembers
	}
	return c.validateStatus()
}

func (c *Course) validateStatus() error {
	switch c.Status {
	case CourseStatusFull:
		if c.ParticipantsNumber != c.ParticipantsLimit {
			return ErrCannotSetFullStatus
		}
	case CourseStatusActive:
		if c.ParticipantsNumber == c.ParticipantsLimit {
			return ErrCannotSetActiveStatus
		}
	case CourseStatusInactive:
	default:
		return ErrInvalidStatus
	}
	return nil
}

// ValidateSchedule checks that both dates lie after now
func (c *Course) ValidateSchedule(now time.Time) error {
	if !c.StartDate.After(now) || !c.EndDate.After(now) {
		return ErrCourseDateNotInFuture
	}
	return nil
}

// HasMember reports whether email is already enrolled
func (c *Course) HasMember(email string) bool {
	for _, m := range c.Members {
		if strings.EqualFold(m.Email, email) {
			return true
		}
	}
	return false
}

// MemberEmails returns member emails in enrollment order
func (c *Course) MemberEmails() []string {
	emails := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		emails = append(emails, m.Email)
	}
	return emails
}

// HasFreePlace reports whether one more participant fits
func (c *Course) HasFreePlace() bool {
	return c.ParticipantsNumber < c.ParticipantsLimit
}

// ApplyEnrollment appends a member and bumps the participant count. When the
// count reaches the limit the course becomes FULL in the same call.
// Capacity must already have been confirmed under the course lock; the call only
// refuses mutations that would break the aggregate's invariants.
func (c *Course) ApplyEnrollment(email string, at time.Time) error {
	if !c.HasFreePlace() {
		return ErrParticipantsLimitExceeded
	}
	if c.HasMember(email) {
		return ErrAlreadyEnrolled
	}

	c.Members = append(c.Members, CourseMember{
		CourseID:       c.ID,
		Email:          email,
		EnrollmentDate: at.UTC(),
	})
	c.ParticipantsNumber++
	if c.ParticipantsNumber == c.ParticipantsLimit {
		c.Status = CourseStatusFull
	}
	return nil
}

// Close marks the course INACTIVE. Closing an inactive course is a no-op and
// keeps the earlier reason. Returns true when the status changed.
func (c *Course) Close(reason CloseReason) bool {
	if c.Status == CourseStatusInactive {
		return false
	}
	c.Status = CourseStatusInactive
	c.ClosedReason = reason
	return true
}

// Clone returns a deep copy of the course
func (c *Course) Clone() *Course {
	cp := *c
	if c.Members != nil {
		cp.Members = make([]CourseMember, len(c.Members))
		copy(cp.Members, c.Members)
	}
	return &cp
}

// CoursePatch holds the fields of a partial update; nil fields are left untouched
type CoursePatch struct {
	Name               *string
	Description        *string
	StartDate          *time.Time
	EndDate            *time.Time
	ParticipantsLimit  *int64
	ParticipantsNumber *int64
	Status             *CourseStatus
}

// Apply merges the supplied fields into c
func (p CoursePatch) Apply(c *Course) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.StartDate != nil {
		c.StartDate = p.StartDate.UTC()
	}
	if p.EndDate != nil {
		c.EndDate = p.EndDate.UTC()
	}
	if p.ParticipantsLimit != nil {
		c.ParticipantsLimit = *p.ParticipantsLimit
	}
	if p.ParticipantsNumber != nil {
		c.ParticipantsNumber = *p.ParticipantsNumber
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if c.Status != CourseStatusInactive {
		c.ClosedReason = ""
	}
}

// ValidateSchedule checks that the supplied dates lie after now
func (p CoursePatch) ValidateSchedule(now time.Time) error {
	if p.StartDate != nil && !p.StartDate.After(now) {
		return ErrCourseDateNotInFuture
	}
	if p.EndDate != nil && !p.EndDate.After(now) {
		return ErrCourseDateNotInFuture
	}
	return nil
}
