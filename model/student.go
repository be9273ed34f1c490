package model

// StudentStatus is the status reported by the student directory
type StudentStatus string

const (
	StudentStatusActive   StudentStatus = "ACTIVE"
	StudentStatusInactive StudentStatus = "INACTIVE"
)

// Student is the directory's view of a student. Field names follow the
// directory's wire format.
type Student struct {
	ID        int64         `json:"id"`
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	Email     string        `json:"email"`
	Status    StudentStatus `json:"status"`
}

// IsActive reports whether the student may take part in courses
func (s *Student) IsActive() bool {
	return s.Status == StudentStatusActive
}
