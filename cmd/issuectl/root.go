package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/k1networth/issuetracker-lite/internal/client"
	"github.com/k1networth/issuetracker-lite/internal/output"
	"github.com/k1networth/issuetracker-lite/internal/shared/requestid"
)

// cli carries the dependencies shared by every subcommand.
type cli struct {
	ui *output.UI
	v  *viper.Viper
}

// newRootCmd builds the command tree. A nil ui writes to stdout/stderr.
func newRootCmd(ui *output.UI) *cobra.Command {
	if ui == nil {
		ui = output.New()
	}
	c := &cli{ui: ui, v: viper.New()}

	root := &cobra.Command{
		Use:               "issuectl",
		Short:             "Command-line client for the issue tracker API",
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig(cmd)
		},
	}
	root.SetOut(ui.Out)
	root.SetErr(ui.ErrOut)

	pf := root.PersistentFlags()
	pf.String("config", "", "Config file (default ~/.config/issuectl/config.yaml)")
	pf.String("server", "", "Issue service base URL (default http://localhost:8080)")
	pf.StringP("output", "o", "", "Output format: table, json, yaml")
	pf.Duration("timeout", 0, "HTTP timeout (default 10s)")
	pf.BoolP("verbose", "v", false, "Verbose output")

	_ = c.v.BindPFlag("server", pf.Lookup("server"))
	_ = c.v.BindPFlag("output", pf.Lookup("output"))
	_ = c.v.BindPFlag("timeout", pf.Lookup("timeout"))

	root.AddCommand(
		c.listCmd(),
		c.createCmd(),
		c.updateCmd(),
		c.setOpenCmd("close", "Close an issue", false),
		c.setOpenCmd("reopen", "Reopen a closed issue", true),
		c.deleteCmd(),
	)
	return root
}

func (c *cli) initConfig(cmd *cobra.Command) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		c.v.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		c.v.AddConfigPath(filepath.Join(home, ".config", "issuectl"))
		c.v.SetConfigName("config")
		c.v.SetConfigType("yaml")
	}

	c.v.SetEnvPrefix("ISSUECTL")
	c.v.AutomaticEnv()

	c.v.SetDefault("server", "http://localhost:8080")
	c.v.SetDefault("output", output.FormatTable)
	c.v.SetDefault("timeout", "10s")

	// The default config file is optional; an explicit --config is not.
	if err := c.v.ReadInConfig(); err != nil && cfgFile != "" {
		return fmt.Errorf("read config: %w", err)
	}

	c.ui.Verbose, _ = cmd.Flags().GetBool("verbose")
	c.ui.VerboseLog("server %s", c.v.GetString("server"))
	return nil
}

func (c *cli) client() *client.Client {
	return client.New(c.v.GetString("server"), c.v.GetDuration("timeout"))
}

func (c *cli) format() string {
	return strings.ToLower(c.v.GetString("output"))
}

// requestContext tags outgoing calls with a fresh request id so CLI runs
// can be found in the service logs.
func (c *cli) requestContext(cmd *cobra.Command) context.Context {
	id := requestid.New()
	c.ui.VerboseLog("request id %s", id)
	return requestid.With(cmd.Context(), id)
}
