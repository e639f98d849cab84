package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/angeloszaimis/gstats/internal/metrics"
	"github.com/angeloszaimis/gstats/internal/pidfile"
	"github.com/angeloszaimis/gstats/internal/transport"
)

var ctlFlags struct {
	address string
	format  string
	path    string
	command string
}

var ctlCmd = &cobra.Command{
	Use:   "ctl",
	Short: "Query or control a running collector",
}

var ctlQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Print the current report",
	Long: `Send QUERY to the collector's control endpoint and print the reply.

Examples:
  gstats ctl query
  gstats ctl query --format yaml
  gstats ctl query --path my_app.processing_time.avg`,
	Args: cobra.NoArgs,
	RunE: runCtlQuery,
}

var ctlResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear every namespace (SIGHUP)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return signalCollector(cmd, syscall.SIGHUP)
	},
}

var ctlStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the collector (SIGTERM)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return signalCollector(cmd, syscall.SIGTERM)
	},
}

func init() {
	rootCmd.AddCommand(ctlCmd)
	ctlCmd.AddCommand(ctlQueryCmd, ctlResetCmd, ctlStopCmd)

	ctlQueryCmd.Flags().StringVarP(&ctlFlags.address, "address", "a", "", "override collector.control_address")
	ctlQueryCmd.Flags().StringVarP(&ctlFlags.format, "format", "f", "json", "output format (json, yaml)")
	ctlQueryCmd.Flags().StringVarP(&ctlFlags.path, "path", "p", "", "gjson path selecting part of the report")
	ctlQueryCmd.Flags().StringVar(&ctlFlags.command, "command", metrics.CommandQuery, "control command to send")
}

func runCtlQuery(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	addr := cfg.Collector.ControlAddress
	if ctlFlags.address != "" {
		addr = ctlFlags.address
	}

	client := transport.NewClient(cfg.QueryTimeout(), nil)
	defer client.Close()

	body, err := client.Command(cmd.Context(), addr, ctlFlags.command)
	if err != nil {
		return fmt.Errorf("query collector: %w", err)
	}

	out, err := formatReport(body, ctlFlags.format, ctlFlags.path)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func signalCollector(cmd *cobra.Command, sig syscall.Signal) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	pid, err := pidfile.Signal(cfg.Collector.PIDFile, sig)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "sent %s to collector (pid %d)\n", sig, pid)
	return nil
}

// formatReport renders a control reply, optionally narrowed to a gjson path.
func formatReport(body []byte, format, path string) (string, error) {
	if string(body) == metrics.ReplyError {
		return "", metrics.ErrUnknownCommand
	}

	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("collector replied with invalid JSON: %q", body)
	}

	if path != "" {
		result := gjson.GetBytes(body, path)
		if !result.Exists() {
			return "", fmt.Errorf("path %q not found in report", path)
		}
		body = []byte(result.Raw)
	}

	switch format {
	case "json":
		var buf bytes.Buffer
		if err := json.Indent(&buf, body, "", "  "); err != nil {
			return "", fmt.Errorf("format json: %w", err)
		}
		return buf.String(), nil
	case "yaml":
		var doc any
		if err := json.Unmarshal(body, &doc); err != nil {
			return "", fmt.Errorf("format yaml: %w", err)
		}
		out, err := yaml.Marshal(doc)
		if err != nil {
			return "", fmt.Errorf("format yaml: %w", err)
		}
		return string(bytes.TrimRight(out, "\n")), nil
	default:
		return "", fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}
