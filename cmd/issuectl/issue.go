package main

import (
	"net/url"

	"github.com/spf13/cobra"

	"github.com/k1networth/issuetracker-lite/internal/issue"
)

func (c *cli) listCmd() *cobra.Command {
	var id, open, title, text, createdBy, assignedTo, status, sort string
	cmd := &cobra.Command{
		Use:     "list <project>",
		Aliases: []string{"ls"},
		Short:   "List issues of a project",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			set := func(flag, key, val string) {
				if cmd.Flags().Changed(flag) {
					q.Set(key, val)
				}
			}
			set("id", "_id", id)
			set("open", "open", open)
			set("title", "issue_title", title)
			set("text", "issue_text", text)
			set("created-by", "created_by", createdBy)
			set("assigned-to", "assigned_to", assignedTo)
			set("status", "status_text", status)
			set("sort", "sort", sort)

			list, err := c.client().List(c.requestContext(cmd), args[0], q)
			if err != nil {
				return err
			}
			return c.ui.Issues(c.format(), list)
		},
	}

	f := cmd.Flags()
	f.StringVar(&id, "id", "", "Filter by issue id")
	f.StringVar(&open, "open", "", "Filter by state: true or false")
	f.StringVar(&title, "title", "", "Filter by exact title")
	f.StringVar(&text, "text", "", "Filter by exact text")
	f.StringVar(&createdBy, "created-by", "", "Filter by reporter")
	f.StringVar(&assignedTo, "assigned-to", "", "Filter by assignee")
	f.StringVar(&status, "status", "", "Filter by status text")
	f.StringVar(&sort, "sort", "", "Order: updated_on, -updated_on, created_on, -created_on")
	return cmd
}

func (c *cli) createCmd() *cobra.Command {
	var req issue.CreateRequest
	cmd := &cobra.Command{
		Use:   "create <project>",
		Short: "Create an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := c.client().Create(c.requestContext(cmd), args[0], req)
			if err != nil {
				return err
			}
			return c.ui.Issue(c.format(), created)
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Title, "title", "", "Issue title (required)")
	f.StringVar(&req.Text, "text", "", "Issue text (required)")
	f.StringVar(&req.CreatedBy, "created-by", "", "Reporter (required)")
	f.StringVar(&req.AssignedTo, "assigned-to", "", "Assignee")
	f.StringVar(&req.StatusText, "status", "", "Status text")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("text")
	_ = cmd.MarkFlagRequired("created-by")
	return cmd
}

func (c *cli) updateCmd() *cobra.Command {
	var title, text, createdBy, assignedTo, status, open string
	cmd := &cobra.Command{
		Use:   "update <project> <id>",
		Short: "Update fields of an issue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := issue.UpdateRequest{ID: args[1]}
			str := func(flag, val string) *string {
				if !cmd.Flags().Changed(flag) {
					return nil
				}
				return &val
			}
			req.Title = str("title", title)
			req.Text = str("text", text)
			req.CreatedBy = str("created-by", createdBy)
			req.AssignedTo = str("assigned-to", assignedTo)
			req.StatusText = str("status", status)
			if cmd.Flags().Changed("open") {
				req.Open = &issue.OpenValue{Raw: open}
			}

			conf, err := c.client().Update(c.requestContext(cmd), args[0], req)
			if err != nil {
				return err
			}
			return c.ui.Confirmation(c.format(), conf)
		},
	}

	f := cmd.Flags()
	f.StringVar(&title, "title", "", "New title")
	f.StringVar(&text, "text", "", "New text")
	f.StringVar(&createdBy, "created-by", "", "New reporter")
	f.StringVar(&assignedTo, "assigned-to", "", "New assignee")
	f.StringVar(&status, "status", "", "New status text")
	f.StringVar(&open, "open", "", "New state: true or false")
	return cmd
}

func (c *cli) setOpenCmd(use, short string, open bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <project> <id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := c.client().SetOpen(c.requestContext(cmd), args[0], args[1], open)
			if err != nil {
				return err
			}
			return c.ui.Confirmation(c.format(), conf)
		},
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <project> <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an issue",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := c.client().Delete(c.requestContext(cmd), args[0], args[1])
			if err != nil {
				return err
			}
			return c.ui.Confirmation(c.format(), conf)
		},
	}
}
