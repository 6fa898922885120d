package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"lifesim/internal/sim"
)

func newWatchCmd(opts *options) *cobra.Command {
	var (
		every time.Duration
		limit int
		seed  int64
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the local world live, one quarter per interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isInteractive() {
				return fmt.Errorf("watch needs a terminal; use `lsim simulate` instead")
			}
			if every <= 0 {
				return fmt.Errorf("interval must be positive")
			}
			svc, journal, err := opts.service(seed)
			if err != nil {
				return err
			}
			defer journal.Close()

			final, err := tea.NewProgram(newWatchModel(cmd.Context(), svc, every, limit), tea.WithContext(cmd.Context())).Run()
			if err != nil {
				return err
			}
			if m, ok := final.(watchModel); ok && m.err != nil {
				return m.err
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&every, "every", time.Second, "time between quarters")
	cmd.Flags().IntVarP(&limit, "ticks", "n", 0, "stop after this many quarters (0 runs until quit)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed used when the journal is empty")
	return cmd
}

type (
	tickDueMsg  struct{}
	worldMsg    struct{ world sim.World }
	tickDoneMsg struct {
		report sim.Report
		world  sim.World
	}
	errMsg struct{ err error }
)

var (
	watchTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	watchStatus = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	watchPaused = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	watchBox    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8"))
)

type watchModel struct {
	ctx     context.Context
	svc     *sim.Service
	every   time.Duration
	limit   int
	ticks   int
	paused  bool
	running bool
	spinner spinner.Model
	table   table.Model
	world   sim.World
	last    *sim.Report
	err     error
}

func newWatchModel(ctx context.Context, svc *sim.Service, every time.Duration, limit int) watchModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Country", Width: 12},
			{Title: "Infl %", Width: 8},
			{Title: "Rate %", Width: 8},
			{Title: "GDP %", Width: 8},
			{Title: "Unemp %", Width: 8},
			{Title: "Events", Width: 28},
		}),
		table.WithHeight(8),
		table.WithFocused(true),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).Bold(true)
	t.SetStyles(styles)

	return watchModel{
		ctx:     ctx,
		svc:     svc,
		every:   every,
		limit:   limit,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		table:   t,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadWorld, m.schedule())
}

func (m watchModel) loadWorld() tea.Msg {
	w, err := m.svc.World(m.ctx)
	if err != nil {
		return errMsg{err}
	}
	return worldMsg{world: w}
}

func (m watchModel) step() tea.Msg {
	r, err := m.svc.RunTick(m.ctx)
	if err != nil {
		return errMsg{err}
	}
	w, err := m.svc.World(m.ctx)
	if err != nil {
		return errMsg{err}
	}
	return tickDoneMsg{report: r, world: w}
}

func (m watchModel) schedule() tea.Cmd {
	return tea.Tick(m.every, func(time.Time) tea.Msg { return tickDueMsg{} })
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "p", " ":
			m.paused = !m.paused
			return m, nil
		case "n":
			if m.paused && !m.running {
				m.running = true
				return m, m.step
			}
			return m, nil
		}
	case tickDueMsg:
		if m.paused || m.running {
			return m, m.schedule()
		}
		m.running = true
		return m, m.step
	case worldMsg:
		m.world = msg.world
		m.table.SetRows(countryRows(m.world))
		return m, nil
	case tickDoneMsg:
		m.running = false
		m.ticks++
		m.world = msg.world
		m.last = &msg.report
		m.table.SetRows(countryRows(m.world))
		if m.limit > 0 && m.ticks >= m.limit {
			return m, tea.Quit
		}
		return m, m.schedule()
	case errMsg:
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(watchTitle.Render(fmt.Sprintf("lifesim  %d Q%d  tick %d", m.world.Year, m.world.Quarter, m.world.Tick)))
	b.WriteString("\n")
	switch {
	case m.paused:
		b.WriteString(watchPaused.Render("paused"))
	case m.running:
		b.WriteString(m.spinner.View() + " simulating")
	default:
		b.WriteString(watchStatus.Render(fmt.Sprintf("next quarter in %s", m.every)))
	}
	b.WriteString("\n\n")
	b.WriteString(watchBox.Render(m.table.View()))
	b.WriteString("\n")
	if m.last != nil {
		b.WriteString(summarize(*m.last))
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render("p pause  n step (paused)  q quit"))
	b.WriteString("\n")
	return b.String()
}

func countryRows(w sim.World) []table.Row {
	rows := make([]table.Row, 0, len(w.Countries))
	for _, c := range w.Countries {
		active := make([]string, 0, len(c.ActiveEvents))
		for _, ev := range c.ActiveEvents {
			active = append(active, ev.String())
		}
		rows = append(rows, table.Row{
			truncate(c.ID, 12),
			fmt.Sprintf("%.2f", c.Inflation),
			fmt.Sprintf("%.2f", c.KeyRate),
			fmt.Sprintf("%.2f", c.GDPGrowth),
			fmt.Sprintf("%.2f", c.Unemployment),
			truncate(strings.Join(active, ", "), 28),
		})
	}
	return rows
}

func summarize(r sim.Report) string {
	var profit, upkeep, paid float64
	for _, b := range r.Businesses {
		profit += b.Profit
	}
	for _, p := range r.Players {
		upkeep += p.MedicalCost + p.TherapyCost
		for _, pay := range p.Payments {
			paid += pay.Amount
		}
	}
	started := make([]string, 0)
	for _, c := range r.Countries {
		if c.Triggered != nil {
			started = append(started, fmt.Sprintf("%s in %s", c.Triggered.Type, c.CountryID))
		}
	}
	line := fmt.Sprintf("last tick: business profit %s  loan payments %s  upkeep %s",
		formatMoney(profit), formatMoney(paid), formatMoney(upkeep))
	if len(started) > 0 {
		line += "\nnew events: " + strings.Join(started, ", ")
	}
	if r.YearRolled {
		line += "\nyear closed"
	}
	return line
}
