package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"captioner/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var serverURL string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running server for its status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			base := strings.TrimRight(strings.TrimSpace(serverURL), "/")
			if base == "" {
				base = "http://" + dialableAddress(cfg.Server.Bind)
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, base+"/api/status", nil)
			if err != nil {
				return err
			}
			if token := strings.TrimSpace(cfg.Server.APIToken); token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			client := &http.Client{Timeout: 10 * time.Second}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("contact server at %s: %w (start it with `captioner serve`)", base, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned %s", resp.Status)
			}
			var status api.DaemonStatus
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				return fmt.Errorf("decode status: %w", err)
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}
			renderStatus(cmd, status)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "url", "", "Server base URL (defaults to the configured bind address)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print status as JSON")
	return cmd
}

func renderStatus(cmd *cobra.Command, status api.DaemonStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Running:  %s (pid %d)\n", colorStatus(out, yesNo(status.Running)), status.PID)
	if status.StartedAt != "" {
		uptime := time.Duration(status.UptimeSeconds * float64(time.Second)).Round(time.Second)
		fmt.Fprintf(out, "Uptime:   %s (since %s)\n", uptime, status.StartedAt)
	}
	fmt.Fprintf(out, "Engine:   %s\n", status.ASREngine)
	fmt.Fprintf(out, "Store:    %s\n", status.StoreBackend)
	fmt.Fprintf(out, "Work dir: %s\n", status.WorkDir)
	if status.InboxDir != "" {
		fmt.Fprintf(out, "Inbox:    %s\n", status.InboxDir)
	}
	fmt.Fprintf(out, "Runs:     %d running, %d succeeded, %d failed\n",
		status.Runs.Running, status.Runs.Succeeded, status.Runs.Failed)

	if len(status.Dependencies) == 0 {
		return
	}
	rows := make([][]string, 0, len(status.Dependencies))
	for _, dep := range status.Dependencies {
		state := "ok"
		if !dep.Available {
			state = "FAIL"
			if dep.Optional {
				state = "optional"
			}
		}
		detail := dep.Detail
		if dep.Available {
			detail = dep.Path
		}
		rows = append(rows, []string{dep.Name, dep.Command, colorStatus(out, state), detail})
	}
	fmt.Fprintln(out, renderTable([]string{"Dependency", "Command", "State", "Detail"}, rows, nil))
}

// dialableAddress turns a wildcard bind address into one a client can reach.
func dialableAddress(bind string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(bind))
	if err != nil {
		return bind
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
