package issue

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

type Issue struct {
	ID         ID        `json:"_id"`
	Project    string    `json:"project"`
	Title      string    `json:"issue_title"`
	Text       string    `json:"issue_text"`
	CreatedOn  time.Time `json:"created_on"`
	UpdatedOn  time.Time `json:"updated_on"`
	CreatedBy  string    `json:"created_by"`
	AssignedTo string    `json:"assigned_to"`
	Open       bool      `json:"open"`
	StatusText string    `json:"status_text"`
}

// CreateRequest is the whitelist of fields accepted by POST. Anything else
// in the body is dropped by the decoder.
type CreateRequest struct {
	Title      string `json:"issue_title"`
	Text       string `json:"issue_text"`
	CreatedBy  string `json:"created_by"`
	AssignedTo string `json:"assigned_to"`
	StatusText string `json:"status_text"`
}

// UpdateRequest is the whitelist of fields accepted by PUT. Nil means the
// field was not sent.
type UpdateRequest struct {
	ID         string     `json:"_id"`
	Title      *string    `json:"issue_title"`
	Text       *string    `json:"issue_text"`
	CreatedBy  *string    `json:"created_by"`
	AssignedTo *string    `json:"assigned_to"`
	StatusText *string    `json:"status_text"`
	Open       *OpenValue `json:"open"`
}

type DeleteRequest struct {
	ID string `json:"_id"`
}

// Patch is a validated partial update. Nil fields keep their stored value.
type Patch struct {
	Title      *string
	Text       *string
	CreatedBy  *string
	AssignedTo *string
	StatusText *string
	Open       *bool
}

func (p Patch) Empty() bool {
	return p.Title == nil && p.Text == nil && p.CreatedBy == nil &&
		p.AssignedTo == nil && p.StatusText == nil && p.Open == nil
}

// Apply writes the set fields of p onto is.
func (p Patch) Apply(is *Issue) {
	if p.Title != nil {
		is.Title = *p.Title
	}
	if p.Text != nil {
		is.Text = *p.Text
	}
	if p.CreatedBy != nil {
		is.CreatedBy = *p.CreatedBy
	}
	if p.AssignedTo != nil {
		is.AssignedTo = *p.AssignedTo
	}
	if p.StatusText != nil {
		is.StatusText = *p.StatusText
	}
	if p.Open != nil {
		is.Open = *p.Open
	}
}

// OpenValue keeps the textual form of the "open" flag as sent by the
// client. Bodies carry it either as a JSON boolean or as a string (forms
// only have strings).
type OpenValue struct {
	Raw string
}

func (v *OpenValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v.Raw = s
		return nil
	}
	v.Raw = string(b)
	return nil
}

func (v OpenValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Raw)
}

// ParseOpen normalizes a textual open flag. Only "true" (any case, surrounding
// whitespace ignored) is true; every other value, including typos such as
// "yes" or "1", is false.
func ParseOpen(raw string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), "true")
}

type Confirmation struct {
	Result string `json:"result"`
	ID     ID     `json:"_id"`
}

const (
	ResultUpdated = "successfully updated"
	ResultDeleted = "successfully deleted"
)
