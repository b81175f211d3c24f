package view

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/labelhub/internal/ledger"
)

// ReconcileModel lists every user's cached balance next to the ledger.
type ReconcileModel struct {
	CommonModel
	ledgerService *ledger.Service

	table   table.Model
	recs    []ledger.Reconciliation
	loading bool
	err     error
}

func NewReconcileModel(svc *ledger.Service) ReconcileModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "User", Width: 36},
			{Title: "Cached", Width: 10},
			{Title: "Ledger", Width: 10},
			{Title: "Snapshot", Width: 10},
			{Title: "Entries", Width: 8},
			{Title: "Status", Width: 8},
		}),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	return ReconcileModel{
		ledgerService: svc,
		table:         t,
		loading:       true,
	}
}

func (m ReconcileModel) Title() string     { return "Reconcile Balances" }
func (m ReconcileModel) ShortHelp() string { return "Esc: back | r: refresh" }

func (m ReconcileModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m ReconcileModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case reconcileMsg:
		m.loading = false
		m.err = msg.err
		m.recs = msg.recs

		rows := make([]table.Row, 0, len(m.recs))
		for _, rec := range m.recs {
			status := "ok"
			if !rec.Consistent() {
				status = "DRIFT"
			}

			rows = append(rows, table.Row{
				rec.UserID.String(),
				FormatAmount(rec.Cached),
				FormatAmount(rec.LedgerSum),
				FormatAmount(rec.LastSnapshot),
				strconv.Itoa(rec.Entries),
				status,
			})
		}

		m.table.SetRows(rows)

		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadCmd()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m ReconcileModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Reconciling...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(errorStyle(fmt.Sprintf("Error: %v", m.err)))
	}

	drifted := 0

	for _, rec := range m.recs {
		if !rec.Consistent() {
			drifted++
		}
	}

	summary := okStyle(fmt.Sprintf("%d users, all consistent", len(m.recs)))
	if drifted > 0 {
		summary = errorStyle(fmt.Sprintf("%d of %d users drifted", drifted, len(m.recs)))
	}

	return lipgloss.NewStyle().Padding(1).Render(summary + "\n\n" + m.table.View())
}

type reconcileMsg struct {
	recs []ledger.Reconciliation
	err  error
}

func (m ReconcileModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		recs, err := m.ledgerService.ReconcileAll(ctx)

		return reconcileMsg{recs: recs, err: err}
	}
}
