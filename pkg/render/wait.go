package render

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type waitDoneMsg struct{}

// waitModel shows a spinner until the work it waits on reports back.
type waitModel struct {
	spinner spinner.Model
	label   string
	style   lipgloss.Style
	done    bool
}

func newWaitModel(label string, style lipgloss.Style) waitModel {
	return waitModel{
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(style)),
		label:   label,
		style:   style,
	}
}

func (m waitModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m waitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case waitDoneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View clears the line once the work is done so the reply starts clean.
func (m waitModel) View() string {
	if m.done {
		return ""
	}
	return m.spinner.View() + " " + m.style.Render(m.label)
}

// Wait runs fn and, on a terminal, shows a spinner with label until it
// returns. Input is left alone and interrupts are expected to cancel ctx.
func (r *Renderer) Wait(ctx context.Context, label string, fn func(context.Context) error) error {
	if !r.tty {
		return fn(ctx)
	}

	p := tea.NewProgram(newWaitModel(label, r.muted),
		tea.WithContext(ctx),
		tea.WithOutput(r.out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)

	errc := make(chan error, 1)
	go func() {
		errc <- fn(ctx)
		p.Send(waitDoneMsg{})
	}()

	// Spinner failures do not affect the result of fn.
	_, _ = p.Run()
	return <-errc
}
