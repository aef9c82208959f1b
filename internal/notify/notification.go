package notify

import (
	"encoding/json"
	"fmt"

	"github.com/k1networth/issuetracker-lite/internal/issue"
	"github.com/k1networth/issuetracker-lite/internal/shared/events"
)

// Notification is what gets delivered to the people attached to an issue.
type Notification struct {
	EventID    string
	Project    string
	IssueID    string
	Recipients []string
	Subject    string
}

// Describe turns an issue event into a notification. Events for other
// aggregates are ignored and return ok=false.
func Describe(env events.Envelope) (Notification, bool, error) {
	if env.Aggregate != events.AggregateIssue {
		return Notification{}, false, nil
	}

	var is issue.Issue
	if err := json.Unmarshal(env.Payload, &is); err != nil {
		return Notification{}, false, fmt.Errorf("decode %s payload: %w", env.EventType, err)
	}

	n := Notification{
		EventID:    env.EventID,
		Project:    is.Project,
		IssueID:    env.AggregateID,
		Recipients: recipients(is),
	}

	switch env.EventType {
	case events.IssueCreated:
		n.Subject = fmt.Sprintf("[%s] new issue: %s", is.Project, is.Title)
	case events.IssueUpdated:
		state := "open"
		if !is.Open {
			state = "closed"
		}
		n.Subject = fmt.Sprintf("[%s] issue updated (%s): %s", is.Project, state, is.Title)
	case events.IssueDeleted:
		n.Subject = fmt.Sprintf("[%s] issue deleted: %s", is.Project, is.Title)
	default:
		return Notification{}, false, nil
	}
	return n, true, nil
}

// recipients is the reporter plus the assignee, deduplicated.
func recipients(is issue.Issue) []string {
	out := []string{is.CreatedBy}
	if is.AssignedTo != "" && is.AssignedTo != is.CreatedBy {
		out = append(out, is.AssignedTo)
	}
	return out
}
