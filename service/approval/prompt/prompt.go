// Package prompt implements the interactive CLI response path of the
// approval gateway.
package prompt

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/viant/overseer/internal/clock"
	"github.com/viant/overseer/model/approval"
	"github.com/viant/overseer/model/checkpoint"
)

// Prompter renders a request and reads the operator's choice. It is safe
// to share across requests; input typed between prompts is discarded.
type Prompter struct {
	reader *lineReader
	out    io.Writer
	outMu  sync.Mutex
	styled bool
	width  int
}

// Option customises a Prompter.
type Option func(*Prompter)

// WithStyle forces styled or plain output.
func WithStyle(styled bool) Option {
	return func(p *Prompter) { p.styled = styled }
}

// WithWidth sets the box width.
func WithWidth(width int) Option {
	return func(p *Prompter) {
		if width > 0 {
			p.width = width
		}
	}
}

// New creates a prompter. Styling is enabled when out is a terminal.
func New(in io.Reader, out io.Writer, options ...Option) *Prompter {
	ret := &Prompter{reader: newLineReader(in), out: out, width: defaultWidth}
	if f, ok := out.(*os.File); ok && terminal(f) {
		ret.styled = true
		ret.width = terminalWidth(f)
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Stdio returns a prompter over the process stdin and stdout.
func Stdio() *Prompter {
	return New(os.Stdin, os.Stdout)
}

// Dropped returns the number of input lines discarded so far.
func (p *Prompter) Dropped() int { return p.reader.Dropped() }

// Prompt blocks until the operator picks an action, ctx is done or input
// is exhausted.
func (p *Prompter) Prompt(ctx context.Context, req *approval.Request) (*approval.Response, error) {
	s := p.reader.acquire()
	defer p.reader.release(s)

	p.print(p.renderRequest(req))
	for {
		p.print(p.renderMenu())
		line, err := p.readLine(ctx, s)
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(line) {
		case "c", "continue":
			return response(checkpoint.ActionContinue, ""), nil
		case "p", "pause":
			return response(checkpoint.ActionPause, ""), nil
		case "a", "abort":
			p.print("Abort the agent? [y/N] ")
			answer, err := p.readLine(ctx, s)
			if err != nil {
				return nil, err
			}
			if answer = strings.ToLower(answer); answer == "y" || answer == "yes" {
				return response(checkpoint.ActionAbort, ""), nil
			}
		case "d", "details":
			p.print(renderDetails(req))
		case "r", "redirect":
			p.print("Instructions: ")
			instructions, err := p.readLine(ctx, s)
			if err != nil {
				return nil, err
			}
			if instructions == "" {
				p.print(p.renderError("redirect needs instructions"))
				continue
			}
			return response(checkpoint.ActionRedirect, instructions), nil
		case "":
		default:
			p.print(p.renderError(fmt.Sprintf("unknown choice %q", line)))
		}
	}
}

func (p *Prompter) readLine(ctx context.Context, s *session) (string, error) {
	select {
	case line := <-s.lines:
		return line, nil
	case <-s.done:
		select {
		case line := <-s.lines:
			return line, nil
		default:
		}
		return "", p.reader.failure()
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *Prompter) print(text string) {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	_, _ = io.WriteString(p.out, text)
}

func response(action checkpoint.Action, instructions string) *approval.Response {
	return &approval.Response{
		Approved:             action.Approves(),
		Action:               action,
		Channel:              approval.ChannelCLI,
		Responder:            approval.ResponderUser,
		Timestamp:            clock.Now(),
		RedirectInstructions: instructions,
	}
}
