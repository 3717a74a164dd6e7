package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"captioner/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var network bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify directories, external tools, and (optionally) credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			failed := 0

			client := &http.Client{Timeout: 15 * time.Second}
			results := preflight.RunAll(cmd.Context(), cfg, client, network)
			rows := make([][]string, 0, len(results))
			for _, result := range results {
				state := "ok"
				if !result.Passed {
					state = "FAIL"
					failed++
				}
				rows = append(rows, []string{result.Name, colorStatus(out, state), result.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "State", "Detail"}, rows, nil))

			statuses := preflight.CheckSystemDeps(cfg)
			rows = rows[:0]
			for _, status := range statuses {
				state := "ok"
				switch {
				case status.Available:
				case status.Optional:
					state = "optional"
				default:
					state = "FAIL"
					failed++
				}
				detail := status.Detail
				if status.Available {
					detail = status.Path
				}
				rows = append(rows, []string{status.Name, status.Command, colorStatus(out, state), detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Dependency", "Command", "State", "Detail"}, rows, nil))

			if !network {
				fmt.Fprintln(out, "Credential checks skipped (use --network to contact the ASR and storage APIs)")
			}
			if failed > 0 {
				return errors.New("one or more checks failed")
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&network, "network", false, "Also verify ASR and storage credentials over the network")
	return cmd
}
