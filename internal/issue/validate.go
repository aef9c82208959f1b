package issue

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type fieldRule struct {
	name     string
	required bool
	min      int
	max      int
}

var (
	ruleTitle      = fieldRule{name: "issue_title", required: true, min: 1, max: 100}
	ruleText       = fieldRule{name: "issue_text", required: true, min: 3, max: 600}
	ruleCreatedBy  = fieldRule{name: "created_by", required: true, min: 3, max: 100}
	ruleAssignedTo = fieldRule{name: "assigned_to", max: 30}
	ruleStatusText = fieldRule{name: "status_text", max: 16}
)

// check validates an already trimmed value and appends any violation.
func (fr fieldRule) check(v string, out []string) []string {
	if !utf8.ValidString(v) || strings.ContainsRune(v, 0) {
		return append(out, fmt.Sprintf("%s must be valid UTF-8 text", fr.name))
	}
	n := utf8.RuneCountInString(v)
	if n == 0 {
		if fr.required {
			return append(out, fmt.Sprintf("%s is required", fr.name))
		}
		return out
	}
	if n < fr.min {
		out = append(out, fmt.Sprintf("%s must be at least %d characters", fr.name, fr.min))
	}
	if fr.max > 0 && n > fr.max {
		out = append(out, fmt.Sprintf("%s must be at most %d characters", fr.name, fr.max))
	}
	return out
}

// Normalize trims every field of the request.
func (r CreateRequest) Normalize() CreateRequest {
	return CreateRequest{
		Title:      strings.TrimSpace(r.Title),
		Text:       strings.TrimSpace(r.Text),
		CreatedBy:  strings.TrimSpace(r.CreatedBy),
		AssignedTo: strings.TrimSpace(r.AssignedTo),
		StatusText: strings.TrimSpace(r.StatusText),
	}
}

// Validate expects a normalized request and reports all violations at once.
func (r CreateRequest) Validate() error {
	var v []string
	v = ruleTitle.check(r.Title, v)
	v = ruleText.check(r.Text, v)
	v = ruleCreatedBy.check(r.CreatedBy, v)
	v = ruleAssignedTo.check(r.AssignedTo, v)
	v = ruleStatusText.check(r.StatusText, v)
	if len(v) > 0 {
		return &ValidationError{Violations: v}
	}
	return nil
}

// Patch turns the request into a validated Patch. String fields that are
// empty after trimming count as not sent.
func (r UpdateRequest) Patch() (Patch, error) {
	var p Patch
	var v []string

	field := func(in *string, fr fieldRule, dst **string) {
		if in == nil {
			return
		}
		s := strings.TrimSpace(*in)
		if s == "" {
			return
		}
		v = fr.check(s, v)
		*dst = &s
	}

	field(r.Title, ruleTitle, &p.Title)
	field(r.Text, ruleText, &p.Text)
	field(r.CreatedBy, ruleCreatedBy, &p.CreatedBy)
	field(r.AssignedTo, ruleAssignedTo, &p.AssignedTo)
	field(r.StatusText, ruleStatusText, &p.StatusText)

	if r.Open != nil && strings.TrimSpace(r.Open.Raw) != "" {
		open := ParseOpen(r.Open.Raw)
		p.Open = &open
	}

	if len(v) > 0 {
		return Patch{}, &ValidationError{Violations: v}
	}
	if p.Empty() {
		return Patch{}, ErrNoUpdateFields
	}
	return p, nil
}
