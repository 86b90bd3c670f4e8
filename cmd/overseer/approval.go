package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/viant/overseer/model/approval"
	"github.com/viant/overseer/model/checkpoint"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List approval requests awaiting an answer",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := openService(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer srv.Close()

		requests, err := srv.Gateway().ListPending(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd.OutOrStdout(), requests)
		}
		printPending(cmd.OutOrStdout(), requests, time.Now())
		return nil
	},
}

var respondCmd = &cobra.Command{
	Use:   "respond <request-id> <continue|pause|abort|redirect>",
	Short: "Answer a pending approval request",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		action, err := checkpoint.ParseAction(args[1])
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		instructions, _ := flags.GetString("instructions")
		notes, _ := flags.GetString("notes")
		responder, _ := flags.GetString("responder")
		if action == checkpoint.ActionRedirect && instructions == "" {
			return fmt.Errorf("redirect needs --instructions")
		}

		srv, err := openService(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer srv.Close()

		accepted, err := srv.Gateway().Respond(cmd.Context(), args[0], &approval.Response{
			Approved:             action.Approves(),
			Action:               action,
			Channel:              approval.ChannelCLI,
			Responder:            responder,
			Notes:                notes,
			RedirectInstructions: instructions,
		})
		if err != nil {
			return err
		}
		if !accepted {
			return fmt.Errorf("request %s is no longer pending", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], action)
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <request-id>",
	Short: "Cancel a pending approval request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := openService(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer srv.Close()

		cancelled, err := srv.Gateway().CancelRequest(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !cancelled {
			return fmt.Errorf("request %s is no longer pending", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: cancelled\n", args[0])
		return nil
	},
}

func init() {
	pendingCmd.Flags().Bool("json", false, "print as JSON")
	respondCmd.Flags().String("instructions", "", "new instructions for a redirect")
	respondCmd.Flags().String("notes", "", "notes recorded with the answer")
	respondCmd.Flags().String("responder", approval.ResponderUser, "name recorded as the responder")
	rootCmd.AddCommand(pendingCmd, respondCmd, cancelCmd)
}

func printPending(w io.Writer, requests []*approval.Request, now time.Time) {
	if len(requests) == 0 {
		fmt.Fprintln(w, "No pending approval requests.")
		return
	}
	for _, req := range requests {
		expires := "never"
		if req.ExpiresAt != nil {
			expires = req.ExpiresAt.Sub(now).Round(time.Second).String()
			if req.Expired(now) {
				expires = "expired"
			}
		}
		fmt.Fprintf(w, "%s  %-22s checkpoint=%s expires=%s\n", req.ID, req.Kind, req.CheckpointID, expires)
		if req.Context != nil && req.Context.Action != "" {
			fmt.Fprintf(w, "    %s\n", req.Context.Action)
		}
	}
}
