package validation

import (
	"strings"
	"testing"
)

type sampleRequest struct {
	Code   string `json:"code" validate:"required,course_code,max=50"`
	Status string `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE FULL"`
	Email  string `json:"email" validate:"omitempty,email"`
}

func TestValidateStructUsesJSONNames(t *testing.T) {
	v := NewValidator()

	err := v.ValidateStruct(sampleRequest{Code: "CS 101", Status: "OPEN"})
	if err == nil {
		t.Fatal("ValidateStruct() succeeded, want errors")
	}

	formatted := FormatValidationErrors(err)
	if _, ok := formatted["code"]; !ok {
		t.Errorf("FormatValidationErrors() = %v, want key code", formatted)
	}
	if msg := formatted["status"]; !strings.Contains(msg, "ACTIVE INACTIVE FULL") {
		t.Errorf("status message = %q", msg)
	}

	if got := Describe(err); !strings.HasPrefix(got, "code ") {
		t.Errorf("Describe() = %q, want fields sorted by name", got)
	}
}

func TestValidateStructAcceptsValid(t *testing.T) {
	v := NewValidator()
	if err := v.ValidateStruct(sampleRequest{Code: "MATH-2", Status: "FULL", Email: "a@x.com"}); err != nil {
		t.Errorf("ValidateStruct() = %v, want nil", err)
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  CS\x00101 \n"); got != "CS101" {
		t.Errorf("SanitizeString() = %q, want CS101", got)
	}
}
