package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/viant/overseer"
	"github.com/viant/overseer/model/checkpoint"
	"github.com/viant/overseer/model/turn"
)

type statusView struct {
	Mode    checkpoint.Mode          `json:"mode"`
	Turns   turn.State               `json:"turns"`
	Pending *checkpoint.Checkpoint   `json:"pending,omitempty"`
	History []*checkpoint.Checkpoint `json:"history,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the turn counter and checkpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := openService(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer srv.Close()

		view := statusOf(srv)
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd.OutOrStdout(), view)
		}
		printStatus(cmd.OutOrStdout(), view)
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "print as JSON")
	rootCmd.AddCommand(statusCmd)
}

func statusOf(srv *overseer.Service) *statusView {
	return &statusView{
		Mode:    srv.Manager().Policy().Mode(),
		Turns:   srv.Counter().State(),
		Pending: srv.Manager().GetPendingCheckpoint(),
		History: srv.Manager().History(),
	}
}

func printStatus(w io.Writer, view *statusView) {
	fmt.Fprintf(w, "Mode:            %s\n", view.Mode)
	fmt.Fprintf(w, "Total turns:     %d\n", view.Turns.TotalTurns)
	fmt.Fprintf(w, "Last checkpoint: turn %d\n", view.Turns.LastCheckpointTurn)
	if session := view.Turns.ActiveSession; session != nil {
		fmt.Fprintf(w, "Session:         %s (since turn %d, %d checkpoints)\n", session.ID, session.StartTurn, session.CheckpointsTriggered)
	}
	if view.Pending == nil {
		fmt.Fprintln(w, "Pending:         none")
	} else {
		fmt.Fprintf(w, "Pending:         %s %s [%s] since %s\n", view.Pending.ID, view.Pending.Kind,
			view.Pending.Status.Label(), view.Pending.TriggeredAt.Format(time.RFC3339))
	}
	if len(view.History) == 0 {
		return
	}
	fmt.Fprintln(w, "History:")
	for i := len(view.History) - 1; i >= 0; i-- {
		cp := view.History[i]
		fmt.Fprintf(w, "  %-40s %-22s %-10s %s\n", cp.ID, cp.Kind, cp.Status.Label(), cp.ResolvedBy)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
