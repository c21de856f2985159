package geoselect

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var (
	ErrRequired         = errors.New("required")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrInvalidDate      = errors.New("invalid date")
	ErrDateTooEarly     = errors.New("date too early")
	ErrDateTooLate      = errors.New("date too late")
)

// FieldError reports an invalid form field.
type FieldError struct {
	Field   string
	Message string
	Err     error
}

func (e *FieldError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// fieldValidator is built once; validator instances cache struct metadata
// and are safe for concurrent use.
var fieldValidator = sync.OnceValue(func() *validator.Validate {
	return validator.New()
})

// Required rejects a value that is empty after trimming.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &FieldError{Field: field, Message: "Ce champ est obligatoire.", Err: ErrRequired}
	}
	return nil
}

// Email rejects a non-empty value that is not an email address.
func Email(field, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if err := fieldValidator().Var(value, "email"); err != nil {
		return &FieldError{Field: field, Message: "Veuillez entrer une adresse email valide.", Err: ErrInvalidEmail}
	}
	return nil
}

// PasswordConfirmation rejects a confirmation that differs from password.
func PasswordConfirmation(password, confirmation string) error {
	if password != confirmation {
		return &FieldError{Field: "password_confirm", Message: "Les mots de passe ne correspondent pas.", Err: ErrPasswordMismatch}
	}
	return nil
}

var (
	nonDigits     = regexp.MustCompile(`\D`)
	intlPhone     = regexp.MustCompile(`^(243)(\d{2})(\d{3})(\d{4})$`)
	domesticPhone = regexp.MustCompile(`^(0)(\d{2})(\d{3})(\d{4})$`)
)

// FormatPhone strips everything but digits and groups Congolese numbers:
// "243812345678" becomes "+243 81 234 5678" and "0812345678" becomes
// "081 234 5678". Other numbers are returned as bare digits.
func FormatPhone(value string) string {
	digits := nonDigits.ReplaceAllString(value, "")
	switch {
	case intlPhone.MatchString(digits):
		return intlPhone.ReplaceAllString(digits, "+$1 $2 $3 $4")
	case domesticPhone.MatchString(digits):
		return domesticPhone.ReplaceAllString(digits, "$1$2 $3 $4")
	}
	return digits
}

// DateLayout is the wire format of date inputs.
const DateLayout = "2006-01-02"

// displayLayout formats dates in error messages (fr-FR).
const displayLayout = "02/01/2006"

// DateBounds is an inclusive date range. A zero bound is open.
type DateBounds struct {
	Min time.Time
	Max time.Time
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BoundsFor returns the default range for a date field, keyed on its name:
// birth dates lie between 100 and 16 years ago, appointment and preferred
// dates start tomorrow. Other fields are unbounded.
func BoundsFor(field string, now time.Time) DateBounds {
	today := day(now)
	var b DateBounds
	if strings.Contains(field, "birth") {
		b.Min = today.AddDate(-100, 0, 0)
		b.Max = today.AddDate(-16, 0, 0)
	}
	if strings.Contains(field, "preferred_date") || strings.Contains(field, "appointment") {
		b.Min = today.AddDate(0, 0, 1)
	}
	return b
}

// Validate checks value against the bounds.
func (b DateBounds) Validate(field string, value time.Time) error {
	v := day(value)
	if !b.Min.IsZero() && v.Before(b.Min) {
		return &FieldError{
			Field:   field,
			Message: fmt.Sprintf("La date doit être postérieure au %s.", b.Min.Format(displayLayout)),
			Err:     ErrDateTooEarly,
		}
	}
	if !b.Max.IsZero() && v.After(b.Max) {
		return &FieldError{
			Field:   field,
			Message: fmt.Sprintf("La date doit être antérieure au %s.", b.Max.Format(displayLayout)),
			Err:     ErrDateTooLate,
		}
	}
	return nil
}

// ValidateDate parses a YYYY-MM-DD input and checks it against the default
// bounds for field.
func ValidateDate(field, value string, now time.Time) error {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return &FieldError{Field: field, Err: fmt.Errorf("%w: %v", ErrInvalidDate, err)}
	}
	return BoundsFor(field, now).Validate(field, t)
}

// RemainingChars returns how many characters may still be typed into a
// field limited to max characters. It goes negative past the limit.
func RemainingChars(value string, max int) int {
	return max - utf8.RuneCountInString(value)
}
