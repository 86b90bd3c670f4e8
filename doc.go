// Package overseer gates an autonomous coding agent behind human oversight.
//
// The agent runtime reports every turn to a turn counter and asks the
// checkpoint manager before risky steps. When the policy fires, an approval
// request is fanned out to the enabled channels and the runtime blocks until
// the first valid answer arrives or the request times out:
//
//	srv, _ := overseer.New(ctx, cfg, overseer.WithPrompter(prompt.Stdio()))
//	defer srv.Close()
//	turn, _ := srv.Turn(ctx, &usage)
//	outcome, _ := srv.Gate(ctx, checkpoint.KindTurnInterval, &checkpoint.Context{TurnNumber: turn})
//	switch outcome.Action() {
//	case checkpoint.ActionAbort:
//		...
//	}
//
// State (turn counter, checkpoints and approval requests) lives under the
// configured state directory so that a restarted process resumes where the
// previous one stopped.
package overseer
