package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"gopkg.in/yaml.v3"

	"github.com/k1networth/issuetracker-lite/internal/issue"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// UI writes human output to Out and diagnostics to ErrOut.
type UI struct {
	Verbose bool
	Out     io.Writer
	ErrOut  io.Writer
}

func New() *UI {
	return &UI{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

var (
	successPrefix = color.New(color.FgHiGreen).Sprint("✓")
	warningPrefix = color.New(color.FgHiYellow).Sprint("⚠")
	errorPrefix   = color.New(color.FgHiRed).Sprint("✗")
	verbosePrefix = color.New(color.FgHiBlue).Sprint("  →")
	cyan          = color.New(color.FgHiCyan).SprintFunc()
	green         = color.New(color.FgHiGreen).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
)

// OpenColor renders the open flag as a colored open/closed word.
func OpenColor(open bool) string {
	if open {
		return green("open")
	}
	return red("closed")
}

func (u *UI) Success(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", successPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Warning(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", warningPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Error(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", errorPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) VerboseLog(format string, a ...any) {
	if u.Verbose {
		fmt.Fprintf(u.ErrOut, "%s %s\n", verbosePrefix, fmt.Sprintf(format, a...))
	}
}

func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}

// issueView fixes the field order and names for json and yaml output.
type issueView struct {
	ID         string `json:"_id" yaml:"_id"`
	Project    string `json:"project" yaml:"project"`
	Title      string `json:"issue_title" yaml:"issue_title"`
	Text       string `json:"issue_text" yaml:"issue_text"`
	CreatedBy  string `json:"created_by" yaml:"created_by"`
	AssignedTo string `json:"assigned_to" yaml:"assigned_to"`
	StatusText string `json:"status_text" yaml:"status_text"`
	Open       bool   `json:"open" yaml:"open"`
	CreatedOn  string `json:"created_on" yaml:"created_on"`
	UpdatedOn  string `json:"updated_on" yaml:"updated_on"`
}

func viewOf(is issue.Issue) issueView {
	return issueView{
		ID:         is.ID.String(),
		Project:    is.Project,
		Title:      is.Title,
		Text:       is.Text,
		CreatedBy:  is.CreatedBy,
		AssignedTo: is.AssignedTo,
		StatusText: is.StatusText,
		Open:       is.Open,
		CreatedOn:  is.CreatedOn.UTC().Format(time.RFC3339),
		UpdatedOn:  is.UpdatedOn.UTC().Format(time.RFC3339),
	}
}

// Issues renders a list in the given format.
func (u *UI) Issues(format string, list []issue.Issue) error {
	views := make([]issueView, 0, len(list))
	for _, is := range list {
		views = append(views, viewOf(is))
	}

	switch format {
	case FormatJSON:
		return u.writeJSON(views)
	case FormatYAML:
		return u.writeYAML(views)
	case FormatTable, "":
		if len(list) == 0 {
			fmt.Fprintln(u.Out, "no issues")
			return nil
		}
		table := u.Table([]string{"ID", "STATE", "TITLE", "CREATED BY", "ASSIGNED TO", "STATUS", "UPDATED"})
		for _, is := range list {
			_ = table.Append([]string{
				cyan(is.ID.String()),
				OpenColor(is.Open),
				truncate(is.Title, 40),
				is.CreatedBy,
				is.AssignedTo,
				is.StatusText,
				is.UpdatedOn.Local().Format("2006-01-02 15:04"),
			})
		}
		return table.Render()
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

// Issue renders a single issue.
func (u *UI) Issue(format string, is issue.Issue) error {
	switch format {
	case FormatJSON:
		return u.writeJSON(viewOf(is))
	case FormatYAML:
		return u.writeYAML(viewOf(is))
	case FormatTable, "":
		u.Success("created %s in %s", cyan(is.ID.String()), is.Project)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

func (u *UI) Confirmation(format string, c issue.Confirmation) error {
	switch format {
	case FormatJSON:
		return u.writeJSON(c)
	case FormatYAML:
		return u.writeYAML(map[string]string{"result": c.Result, "_id": c.ID.String()})
	case FormatTable, "":
		u.Success("%s %s", c.Result, cyan(c.ID.String()))
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

func (u *UI) writeJSON(v any) error {
	enc := json.NewEncoder(u.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (u *UI) writeYAML(v any) error {
	enc := yaml.NewEncoder(u.Out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
