// Package render prints turn replies to a terminal.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/papercomputeco/chathub/pkg/session"
)

const defaultWidth = 80

// Renderer writes replies as styled Markdown on a terminal and as plain text
// everywhere else.
type Renderer struct {
	out   io.Writer
	tty   bool
	width int

	markdown *glamour.TermRenderer
	muted    lipgloss.Style
	accent   lipgloss.Style
}

// New creates a Renderer for out. Styling is only enabled when out is a
// terminal.
func New(out io.Writer) (*Renderer, error) {
	r := &Renderer{
		out:    out,
		width:  defaultWidth,
		muted:  lipgloss.NewStyle(),
		accent: lipgloss.NewStyle(),
	}

	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return r, nil
	}

	r.tty = true
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
		r.width = w
	}

	style := styles.LightStyle
	if termenv.HasDarkBackground() {
		style = styles.DarkStyle
	}

	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(r.width),
	)
	if err != nil {
		return nil, fmt.Errorf("creating markdown renderer: %w", err)
	}
	r.markdown = md
	r.muted = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	r.accent = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)

	return r, nil
}

// Reply prints the answer, its suggestions and the remaining quota.
func (r *Renderer) Reply(reply *session.Reply) error {
	var b strings.Builder

	body := reply.Text
	if r.markdown != nil {
		rendered, err := r.markdown.Render(body)
		if err != nil {
			return fmt.Errorf("rendering reply: %w", err)
		}
		body = strings.TrimRight(rendered, "\n")
	}
	b.WriteString(body)
	b.WriteString("\n")

	if len(reply.Suggestions) > 0 {
		b.WriteString("\n")
		b.WriteString(r.accent.Render("Suggestions:"))
		b.WriteString("\n")
		for i, s := range reply.Suggestions {
			line := fmt.Sprintf("  %d. %s", i+1, s)
			b.WriteString(ansi.Truncate(line, r.width, "…"))
			b.WriteString("\n")
		}
	}

	if status := r.status(reply); status != "" {
		b.WriteString("\n")
		b.WriteString(r.muted.Render(status))
		b.WriteString("\n")
	}

	_, err := io.WriteString(r.out, b.String())
	return err
}

func (r *Renderer) status(reply *session.Reply) string {
	switch {
	case reply.Ended:
		return "conversation ended"
	case reply.Remaining == 1:
		return "1 message left in this conversation"
	case reply.Remaining > 1:
		return fmt.Sprintf("%d messages left in this conversation", reply.Remaining)
	default:
		return ""
	}
}

// Notice prints a one-line informational message.
func (r *Renderer) Notice(msg string) error {
	_, err := fmt.Fprintln(r.out, r.muted.Render(msg))
	return err
}
