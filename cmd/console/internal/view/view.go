package view

import (
	tea "github.com/charmbracelet/bubbletea"
)

// View is the interface that all console screens implement.
type View interface {
	tea.Model
	Title() string
	ShortHelp() string
}

var (
	_ View = OrdersModel{}
	_ View = ImportModel{}
	_ View = CreditModel{}
	_ View = ReconcileModel{}
)
