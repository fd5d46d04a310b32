package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	hostdto "cuckoohost/internal/modules/host/dto"
	"cuckoohost/internal/platform/contract"
	"cuckoohost/internal/ui/theme"
)

const maxShownReports = 8

// Port is the part of a mining session the monitor drives.
type Port interface {
	ID() string
	Plugin() string
	Poll(ctx context.Context) ([]hostdto.Report, error)
	Snapshot(ctx context.Context) (hostdto.Snapshot, error)
	Stop(ctx context.Context) error
	Restart(ctx context.Context) (contract.Status, error)
}

// TickMsg asks the model to refresh.
type TickMsg time.Time

// SnapshotMsg carries a refreshed session snapshot.
type SnapshotMsg struct {
	Snap hostdto.Snapshot
	Err  error
}

// ActionDoneMsg reports the outcome of a stop or restart.
type ActionDoneMsg struct {
	Action string
	Err    error
}

type Model struct {
	port     Port
	interval time.Duration
	snap     hostdto.Snapshot
	lastErr  error
	status   string
	width    int
	height   int
}

func New(port Port, interval time.Duration) Model {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return Model{port: port, interval: interval, status: "starting"}
}

func (m Model) Init() tea.Cmd {
	return m.refreshCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case TickMsg:
		return m, m.refreshCmd()
	case SnapshotMsg:
		m.lastErr = msg.Err
		if msg.Err == nil {
			m.snap = msg.Snap
		}
		return m, m.tickCmd()
	case ActionDoneMsg:
		m.lastErr = msg.Err
		if msg.Err == nil {
			m.status = msg.Action
		}
		return m, m.refreshCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s":
			m.status = "stopping"
			return m, m.actionCmd("stopped", func(ctx context.Context) error {
				return m.port.Stop(ctx)
			})
		case "r":
			m.status = "restarting"
			return m, m.actionCmd("running", func(ctx context.Context) error {
				status, err := m.port.Restart(ctx)
				if err != nil {
					return err
				}
				if status != contract.StatusOK {
					return fmt.Errorf("restart returned status %d", status)
				}
				return nil
			})
		}
	}
	return m, nil
}

func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(theme.Heading.Render("cuckoohost monitor") + "  ")
	sb.WriteString(theme.Hint.Render(fmt.Sprintf("plugin: %s  session: %s", m.port.Plugin(), m.port.ID())) + "\n\n")

	state := "processing"
	if m.snap.Stopped {
		state = "stopped"
	}
	counts := fmt.Sprintf("state: %s  submitted: %d  pending: %d  found: %d  uncorrelated: %d",
		state, m.snap.Submitted, m.snap.Pending, m.snap.Found, m.snap.Uncorrelated)
	sb.WriteString(theme.Counters.Render(counts) + "\n")

	sb.WriteString(theme.Heading.Render("Devices") + "\n")
	if len(m.snap.Devices) == 0 {
		sb.WriteString(theme.Hint.Render("  no devices reported") + "\n")
	}
	for _, d := range m.snap.Devices {
		line := fmt.Sprintf("  #%d %-28s iterations=%-6d abandoned=%-4d %s",
			d.DeviceID, d.DeviceName, d.IterationsCompleted, d.JobsAbandoned, deviceFlags(d))
		if d.HasErrored {
			sb.WriteString(theme.Errored.Render(line) + "\n")
			continue
		}
		sb.WriteString(line + "\n")
	}

	sb.WriteString("\n" + theme.Heading.Render("Solutions") + "\n")
	reports := m.snap.Reports
	if len(reports) > maxShownReports {
		reports = reports[len(reports)-maxShownReports:]
	}
	if len(reports) == 0 {
		sb.WriteString(theme.Hint.Render("  none yet") + "\n")
	}
	for _, r := range reports {
		tag := theme.Matched.Render("matched")
		if !r.Correlated {
			tag = theme.Unmatched.Render("unmatched")
		}
		sb.WriteString(fmt.Sprintf("  %s nonce=%s cycle[0..2]=%v\n", tag, r.Nonce, head(r.Cycle, 3)))
	}

	sb.WriteString("\n")
	if m.lastErr != nil {
		sb.WriteString(theme.Errored.Render("error: "+m.lastErr.Error()) + "\n")
	}
	sb.WriteString(theme.Hint.Render(m.status + "  s: stop  r: restart  q: quit"))
	return theme.Screen.Render(sb.String())
}

func deviceFlags(d hostdto.DeviceStat) string {
	var flags []string
	if d.InUse {
		flags = append(flags, "busy")
	}
	if d.HasErrored {
		flags = append(flags, "errored")
	}
	if !d.LastSolutionTime.IsZero() {
		flags = append(flags, "last solution "+d.LastSolutionTime.Format(time.TimeOnly))
	}
	return strings.Join(flags, " ")
}

func head(cycle []uint32, n int) []uint32 {
	if len(cycle) < n {
		return cycle
	}
	return cycle[:n]
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) refreshCmd() tea.Cmd {
	port := m.port
	return func() tea.Msg {
		ctx := context.Background()
		if _, err := port.Poll(ctx); err != nil {
			return SnapshotMsg{Err: err}
		}
		snap, err := port.Snapshot(ctx)
		return SnapshotMsg{Snap: snap, Err: err}
	}
}

func (m Model) actionCmd(action string, run func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return ActionDoneMsg{Action: action, Err: run(context.Background())}
	}
}
