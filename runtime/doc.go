// Package runtime drives the agent turn loop through the oversight gate.
//
// Every turn is counted, the turn report is mapped to checkpoint kinds and
// each kind is offered to the gate. A continue or redirect answer lets the
// loop go on; pause and abort stop it with ErrPaused or ErrAborted.
package runtime
