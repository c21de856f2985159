package geoselect

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRequired(t *testing.T) {
	for _, v := range []string{"", "   ", "\t\n"} {
		err := Required("name", v)
		if !errors.Is(err, ErrRequired) {
			t.Errorf("Required(%q) = %v, want %v", v, err, ErrRequired)
		}
	}
	if err := Required("name", "Kabila"); err != nil {
		t.Errorf("Required() = %v, want nil", err)
	}
}

func TestEmail(t *testing.T) {
	tests := []struct {
		value string
		valid bool
	}{
		{"", true},
		{"agent@consulat.example", true},
		{"  agent@consulat.example  ", true},
		{"agent", false},
		{"agent@", false},
		{"@consulat.example", false},
	}
	for _, tt := range tests {
		err := Email("email", tt.value)
		if tt.valid && err != nil {
			t.Errorf("Email(%q) = %v, want nil", tt.value, err)
		}
		if !tt.valid {
			var fe *FieldError
			if !errors.As(err, &fe) || !errors.Is(err, ErrInvalidEmail) {
				t.Errorf("Email(%q) = %v, want %v", tt.value, err, ErrInvalidEmail)
				continue
			}
			if fe.Field != "email" {
				t.Errorf("Field = %q, want email", fe.Field)
			}
		}
	}
}

func TestPasswordConfirmation(t *testing.T) {
	if err := PasswordConfirmation("s3cret", "s3cret"); err != nil {
		t.Errorf("PasswordConfirmation() = %v, want nil", err)
	}
	err := PasswordConfirmation("s3cret", "secret")
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("PasswordConfirmation() = %v, want %v", err, ErrPasswordMismatch)
	}
	if !strings.HasPrefix(err.Error(), "password_confirm: ") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestFormatPhone(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"243812345678", "+243 81 234 5678"},
		{"+243 81 234 5678", "+243 81 234 5678"},
		{"0812345678", "081 234 5678"},
		{"081-234-5678", "081 234 5678"},
		{"12345", "12345"},
		{"abc", ""},
	}
	for _, tt := range tests {
		if got := FormatPhone(tt.in); got != tt.want {
			t.Errorf("FormatPhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateDate(t *testing.T) {
	now := time.Date(2024, time.March, 15, 17, 30, 0, 0, time.UTC)
	tests := []struct {
		field   string
		value   string
		wantErr error
	}{
		{"birth_date", "1990-06-01", nil},
		{"birth_date", "2008-03-15", nil},
		{"birth_date", "2008-03-16", ErrDateTooLate},
		{"birth_date", "1924-03-15", nil},
		{"birth_date", "1924-03-14", ErrDateTooEarly},
		{"preferred_date", "2024-03-15", ErrDateTooEarly},
		{"preferred_date", "2024-03-16", nil},
		{"appointment_day", "2030-01-01", nil},
		{"issue_date", "1900-01-01", nil},
		{"birth_date", "15/03/1990", ErrInvalidDate},
		{"birth_date", "", ErrInvalidDate},
	}
	for _, tt := range tests {
		err := ValidateDate(tt.field, tt.value, now)
		if tt.wantErr == nil {
			if err != nil {
				t.Errorf("ValidateDate(%q, %q) = %v, want nil", tt.field, tt.value, err)
			}
			continue
		}
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("ValidateDate(%q, %q) = %v, want %v", tt.field, tt.value, err, tt.wantErr)
		}
	}
}

func TestDateBounds_Message(t *testing.T) {
	now := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	err := BoundsFor("preferred_date", now).Validate("preferred_date", now)
	if err == nil {
		t.Fatal("expected an error for today")
	}
	if want := "16/03/2024"; !strings.Contains(err.Error(), want) {
		t.Errorf("Error() = %q, want it to contain %q", err.Error(), want)
	}
}

func TestRemainingChars(t *testing.T) {
	tests := []struct {
		value string
		max   int
		want  int
	}{
		{"", 500, 500},
		{"hello", 10, 5},
		{"élève", 5, 0},
		{"trop long", 4, -5},
	}
	for _, tt := range tests {
		if got := RemainingChars(tt.value, tt.max); got != tt.want {
			t.Errorf("RemainingChars(%q, %d) = %d, want %d", tt.value, tt.max, got, tt.want)
		}
	}
}
