// Package tui provides the live terminal view of an orchestrator run.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/polyflow-ai/polyflow/internal/orchestrator"
	"github.com/polyflow-ai/polyflow/pkg/models"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#45B7D1"))
	domainStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC857"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#96E6A1"))
	failStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	feedbackStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
)

// nodeStatus tracks one subtask's display state.
type nodeStatus struct {
	id      string
	domain  models.Domain
	desc    string
	running bool
	done    bool
	failed  bool
}

// eventMsg wraps an orchestrator event for bubbletea.
type eventMsg orchestrator.Event

// streamClosedMsg signals that the event channel was closed.
type streamClosedMsg struct{}

// RunView is the bubbletea model rendering a run's progress.
type RunView struct {
	events    <-chan orchestrator.Event
	spinner   spinner.Model
	task      string
	iteration int
	nodes     []nodeStatus
	feedback  string
	done      bool
	success   bool
	reason    string
	quitting  bool
}

// NewRunView creates a run view fed by the given event stream.
func NewRunView(task string, events <-chan orchestrator.Event) *RunView {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#45B7D1"))
	return &RunView{
		events:  events,
		spinner: sp,
		task:    task,
	}
}

// Init starts the spinner and the event pump.
func (v *RunView) Init() tea.Cmd {
	return tea.Batch(v.spinner.Tick, v.waitForEvent())
}

func (v *RunView) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-v.events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(event)
	}
}

// Update handles messages.
func (v *RunView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			v.quitting = true
			return v, tea.Quit
		}
		return v, nil

	case eventMsg:
		v.apply(orchestrator.Event(msg))
		return v, v.waitForEvent()

	case streamClosedMsg:
		return v, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v *RunView) apply(event orchestrator.Event) {
	switch event.Type {
	case orchestrator.EventIterationStarted:
		v.iteration = event.Iteration
		v.nodes = nil
		v.feedback = event.Message

	case orchestrator.EventNodeStarted:
		v.nodes = append(v.nodes, nodeStatus{
			id:      event.NodeID,
			domain:  event.Domain,
			desc:    event.Message,
			running: true,
		})

	case orchestrator.EventNodeFinished:
		for i := range v.nodes {
			if v.nodes[i].id == event.NodeID {
				v.nodes[i].running = false
				v.nodes[i].done = true
				v.nodes[i].failed = event.Failed
			}
		}

	case orchestrator.EventEvaluated:
		if !event.Complete {
			v.feedback = event.Message
		}

	case orchestrator.EventRunDone:
		v.done = true
		v.success = event.Complete
		v.reason = event.Message
	}
}

// View renders the current state.
func (v *RunView) View() string {
	if v.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("polyflow") + "  " + dimStyle.Render(truncate(v.task, 70)) + "\n\n")

	if v.iteration > 0 {
		b.WriteString(fmt.Sprintf("Iteration %d\n", v.iteration))
	}

	for _, n := range v.nodes {
		var marker string
		switch {
		case n.running:
			marker = v.spinner.View()
		case n.failed:
			marker = failStyle.Render("✗")
		case n.done:
			marker = okStyle.Render("✓")
		default:
			marker = dimStyle.Render("·")
		}
		b.WriteString(fmt.Sprintf("  %s %s %s\n",
			marker,
			domainStyle.Render(fmt.Sprintf("[%s]", n.domain)),
			truncate(n.desc, 60)))
	}

	if v.feedback != "" && !v.done {
		b.WriteString("\n" + feedbackStyle.Render("feedback: "+truncate(v.feedback, 76)) + "\n")
	}

	if v.done {
		b.WriteString("\n")
		if v.success {
			b.WriteString(okStyle.Render("✓ run complete") + "\n")
		} else {
			b.WriteString(failStyle.Render("✗ run did not complete") + dimStyle.Render(" ("+v.reason+")") + "\n")
		}
	} else {
		b.WriteString("\n" + dimStyle.Render("press q to quit") + "\n")
	}

	return b.String()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
