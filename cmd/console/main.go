package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/labelhub/cmd/console/internal/view"
	"github.com/MrJamesThe3rd/labelhub/internal/app"
	"github.com/MrJamesThe3rd/labelhub/internal/config"
)

type model struct {
	svc *app.App

	currentView View

	ordersView    view.OrdersModel
	importView    view.ImportModel
	creditView    view.CreditModel
	reconcileView view.ReconcileModel
}

type View int

const (
	ViewMenu      View = 0
	ViewOrders    View = 1
	ViewImport    View = 2
	ViewCredit    View = 3
	ViewReconcile View = 4
)

func initialModel(svc *app.App) model {
	return model{
		svc:           svc,
		currentView:   ViewMenu,
		ordersView:    view.NewOrdersModel(svc.Orders),
		importView:    view.NewImportModel(svc.Labels),
		creditView:    view.NewCreditModel(svc.Credits),
		reconcileView: view.NewReconcileModel(svc.Ledger),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.currentView == ViewMenu {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewOrders
				m.ordersView = view.NewOrdersModel(m.svc.Orders)

				return m, m.ordersView.Init()
			case "2":
				m.currentView = ViewImport
				m.importView = view.NewImportModel(m.svc.Labels)

				return m, m.importView.Init()
			case "3":
				m.currentView = ViewCredit
				m.creditView = view.NewCreditModel(m.svc.Credits)

				return m, m.creditView.Init()
			case "4":
				m.currentView = ViewReconcile
				m.reconcileView = view.NewReconcileModel(m.svc.Ledger)

				return m, m.reconcileView.Init()
			}
		}

		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewOrders:
		var newModel tea.Model
		newModel, cmd = m.ordersView.Update(msg)
		m.ordersView = newModel.(view.OrdersModel)
	case ViewImport:
		var newModel tea.Model
		newModel, cmd = m.importView.Update(msg)
		m.importView = newModel.(view.ImportModel)
	case ViewCredit:
		var newModel tea.Model
		newModel, cmd = m.creditView.Update(msg)
		m.creditView = newModel.(view.CreditModel)
	case ViewReconcile:
		var newModel tea.Model
		newModel, cmd = m.reconcileView.Update(msg)
		m.reconcileView = newModel.(view.ReconcileModel)
	}

	return m, cmd
}

func (m model) View() string {
	var (
		current view.View
		help    = lipgloss.NewStyle().Faint(true)
	)

	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			"LabelHub Console\n\n" +
				"1. Order Queue\n" +
				"2. Import Manifest\n" +
				"3. Adjust Credits\n" +
				"4. Reconcile Balances\n\n" +
				"q. Quit",
		)
	case ViewOrders:
		current = m.ordersView
	case ViewImport:
		current = m.importView
	case ViewCredit:
		current = m.creditView
	case ViewReconcile:
		current = m.reconcileView
	default:
		return "Unknown View"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).PaddingLeft(1).Render(current.Title()),
		current.View(),
		help.PaddingLeft(1).Render(current.ShortHelp()),
	)
}

func main() {
	_ = godotenv.Load()

	logFile, err := tea.LogToFile("console.log", "console")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open log file:", err)
		os.Exit(1)
	}
	defer logFile.Close()

	logger := slog.New(slog.NewTextHandler(logFile, nil))

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		fmt.Fprintln(os.Stderr, "failed to start:", err)
		os.Exit(1)
	}
	defer svc.Close()

	p := tea.NewProgram(initialModel(svc), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Error("console failed", "error", err)
		os.Exit(1)
	}
}
