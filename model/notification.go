package model

import "time"

// NotificationInfo is the event published when enrollment for a course is finished
type NotificationInfo struct {
	CourseCode        string    `json:"course_code"`
	CourseName        string    `json:"course_name"`
	CourseDescription string    `json:"course_description"`
	CourseStartDate   time.Time `json:"course_start_date"`
	CourseEndDate     time.Time `json:"course_end_date"`
	Emails            []string  `json:"emails"`
}

// NewNotificationInfo snapshots the course and its roster
func NewNotificationInfo(c *Course) NotificationInfo {
	return NotificationInfo{
		CourseCode:        c.Code,
		CourseName:        c.Name,
		CourseDescription: c.Description,
		CourseStartDate:   c.StartDate,
		CourseEndDate:     c.EndDate,
		Emails:            c.MemberEmails(),
	}
}
