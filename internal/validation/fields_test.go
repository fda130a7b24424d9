package validation

import (
	"testing"
	"time"
)

func TestValidateReferenceNumber(t *testing.T) {
	valid := []string{"POL-2026-0001", "CLM-2026-0001", "ABC", "A1-B2-C3"}
	for _, v := range valid {
		if err := ValidateReferenceNumber("policy_number", v); err != nil {
			t.Errorf("%q rejected: %v", v, err)
		}
	}

	invalid := []string{"", "po", "pol-2026", "-LEADING", "HAS SPACE", "lower-case"}
	for _, v := range invalid {
		if err := ValidateReferenceNumber("policy_number", v); err == nil {
			t.Errorf("%q accepted, want error", v)
		}
	}
}

func TestValidateAmountCents(t *testing.T) {
	if err := ValidateAmountCents("amount_cents", 0); err != nil {
		t.Errorf("zero rejected: %v", err)
	}
	if err := ValidateAmountCents("amount_cents", 125000); err != nil {
		t.Errorf("positive rejected: %v", err)
	}
	if err := ValidateAmountCents("amount_cents", -1); err == nil {
		t.Error("negative accepted")
	}
	if err := ValidateAmountCents("amount_cents", maxAmountCents+1); err == nil {
		t.Error("over-limit accepted")
	}
}

func TestValidateDate(t *testing.T) {
	if err := ValidateDate("start_date", "2026-08-30"); err != nil {
		t.Errorf("valid date rejected: %v", err)
	}
	for _, v := range []string{"", "2026-13-01", "30-08-2026", "2026-08-30T00:00:00Z"} {
		if err := ValidateDate("start_date", v); err == nil {
			t.Errorf("%q accepted, want error", v)
		}
	}
}

func TestValidateDateNotFuture(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if err := ValidateDateNotFuture("incident_date", "2026-08-29", now); err != nil {
		t.Errorf("past date rejected: %v", err)
	}
	if err := ValidateDateNotFuture("incident_date", "2026-09-01", now); err == nil {
		t.Error("future date accepted")
	}
}

func TestValidateDateRange(t *testing.T) {
	if err := ValidateDateRange("start_date", "2026-01-01", "end_date", "2026-12-31"); err != nil {
		t.Errorf("valid range rejected: %v", err)
	}
	if err := ValidateDateRange("start_date", "2026-01-01", "end_date", ""); err != nil {
		t.Errorf("open range rejected: %v", err)
	}
	if err := ValidateDateRange("start_date", "2026-12-31", "end_date", "2026-01-01"); err == nil {
		t.Error("inverted range accepted")
	}
}

func TestValidateEmail(t *testing.T) {
	if err := ValidateEmail("email", "ana@acme.test"); err != nil {
		t.Errorf("valid email rejected: %v", err)
	}
	for _, v := range []string{"", "no-at-sign", "a@b", "two@@at.test"} {
		if err := ValidateEmail("email", v); err == nil {
			t.Errorf("%q accepted, want error", v)
		}
	}
}

func TestValidateName(t *testing.T) {
	if err := ValidateName("name", "Acme Corp", 120); err != nil {
		t.Errorf("valid name rejected: %v", err)
	}
	if err := ValidateName("name", "   ", 120); err == nil {
		t.Error("blank name accepted")
	}
	long := make([]byte, 130)
	for i := range long {
		long[i] = 'x'
	}
	if err := ValidateName("name", string(long), 120); err == nil {
		t.Error("over-length name accepted")
	}
}
