package tasks

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxTitleLen       = 100
	maxDescriptionLen = 500
)

// ValidateTask checks the constraints every persisted Task must satisfy.
func ValidateTask(t Task) error {
	var errs []FieldError
	errs = append(errs, validateTitle(t.Title)...)
	if t.Description != nil {
		errs = append(errs, validateDescription(*t.Description)...)
	}
	return newValidationError(errs...)
}

func (p TaskPatch) validate() error {
	var errs []FieldError
	if p.Title != nil {
		errs = append(errs, validateTitle(*p.Title)...)
	}
	if p.Description != nil {
		errs = append(errs, validateDescription(*p.Description)...)
	}
	return newValidationError(errs...)
}

func validateTitle(title string) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(title) == "" {
		errs = append(errs, FieldError{
			Field:   "title",
			Message: "Title cannot be blank",
		})
	}

	if l := utf8.RuneCountInString(title); l > maxTitleLen {
		errs = append(errs, FieldError{
			Field:   "title",
			Message: fmt.Sprintf("Title cannot be longer than %d characters", maxTitleLen),
		})
	}

	return errs
}

func validateDescription(desc string) []FieldError {
	if utf8.RuneCountInString(desc) > maxDescriptionLen {
		return []FieldError{{
			Field:   "description",
			Message: fmt.Sprintf("Description cannot be longer than %d characters", maxDescriptionLen),
		}}
	}
	return nil
}
