package prompt

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/viant/overseer/model/approval"
)

const defaultWidth = 80

var (
	colorBlue   = lipgloss.Color("#89b4fa")
	colorYellow = lipgloss.Color("#f9e2af")
	colorRed    = lipgloss.Color("#f38ba8")
	colorSubtle = lipgloss.Color("#a6adc8")

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorYellow).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	labelStyle = lipgloss.NewStyle().Foreground(colorSubtle)
	keyStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	errorStyle = lipgloss.NewStyle().Foreground(colorRed)
)

// terminal reports whether f is an interactive terminal honouring NO_COLOR
// and TERM=dumb.
func terminal(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func terminalWidth(f *os.File) int {
	if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
		return width
	}
	return defaultWidth
}

type field struct {
	label string
	value string
}

func fields(req *approval.Request) []field {
	ret := []field{
		{"Request", req.ID},
		{"Checkpoint", req.CheckpointID},
	}
	if c := req.Context; c != nil {
		if c.TaskID != "" {
			task := c.TaskID
			if c.TaskTitle != "" {
				task += " " + c.TaskTitle
			}
			ret = append(ret, field{"Task", task})
		}
		if c.Action != "" {
			ret = append(ret, field{"Action", c.Action})
		}
		if len(c.AffectedFiles) > 0 {
			ret = append(ret, field{"Files", strings.Join(c.AffectedFiles, ", ")})
		}
		if c.TurnNumber > 0 {
			ret = append(ret, field{"Turn", fmt.Sprintf("%d", c.TurnNumber)})
		}
		if c.ContextUsage > 0 {
			ret = append(ret, field{"Context", fmt.Sprintf("%.0f%%", c.ContextUsage*100)})
		}
		if c.Error != "" {
			ret = append(ret, field{"Error", c.Error})
		}
	}
	if req.ExpiresAt != nil {
		ret = append(ret, field{"Expires", req.ExpiresAt.Local().Format(time.Kitchen)})
	}
	return ret
}

var menu = []field{
	{"c", "continue"},
	{"p", "pause"},
	{"a", "abort"},
	{"d", "details"},
	{"r", "redirect"},
}

func (p *Prompter) renderRequest(req *approval.Request) string {
	var sb strings.Builder
	title := "Approval required: " + req.Kind.Title()
	if !p.styled {
		sb.WriteString("== " + title + " ==\n")
		for _, f := range fields(req) {
			fmt.Fprintf(&sb, "%-11s %s\n", f.label+":", f.value)
		}
		return sb.String()
	}
	sb.WriteString(titleStyle.Render(title))
	for _, f := range fields(req) {
		sb.WriteString("\n" + labelStyle.Render(fmt.Sprintf("%-11s", f.label+":")) + " " + f.value)
	}
	width := p.width - 2
	if width < 20 {
		width = 20
	}
	return boxStyle.Width(width).Render(sb.String()) + "\n"
}

func (p *Prompter) renderMenu() string {
	items := make([]string, 0, len(menu))
	for _, item := range menu {
		key := "[" + item.label + "]"
		if p.styled {
			key = keyStyle.Render(key)
		}
		items = append(items, key+" "+item.value)
	}
	return strings.Join(items, "  ") + "\n> "
}

func (p *Prompter) renderError(text string) string {
	if p.styled {
		return errorStyle.Render(text) + "\n"
	}
	return text + "\n"
}

func renderDetails(req *approval.Request) string {
	if req.Context == nil {
		return "no context recorded\n"
	}
	data, err := yaml.Marshal(req.Context)
	if err != nil {
		return fmt.Sprintf("%+v\n", *req.Context)
	}
	return string(data)
}
