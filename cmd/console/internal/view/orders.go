package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/labelhub/internal/order"
)

type ordersState int

const (
	ordersStateBrowse ordersState = iota
	ordersStateComplete
	ordersStateFail
)

var statusFilters = []struct {
	label  string
	status *order.Status
}{
	{label: "All"},
	{label: "Pending", status: new(order.StatusPending)},
	{label: "Processing", status: new(order.StatusProcessing)},
	{label: "Completed", status: new(order.StatusCompleted)},
	{label: "Failed", status: new(order.StatusFailed)},
}

// OrdersModel is the settlement queue: browse orders and move them through
// processing, completion and failure.
type OrdersModel struct {
	CommonModel
	orderService *order.Service

	state  ordersState
	table  table.Model
	orders []*order.Order
	form   *huh.Form

	filterIdx int
	loading   bool
	err       error
	status    string

	// Bound to the active form; shared by every copy of the model.
	fields *orderFields
}

type orderFields struct {
	resultURL string
	note      string
	refund    bool
}

func NewOrdersModel(svc *order.Service) OrdersModel {
	columns := []table.Column{
		{Title: "Created", Width: 16},
		{Title: "User", Width: 8},
		{Title: "Type", Width: 16},
		{Title: "Tracking", Width: 22},
		{Title: "Cost", Width: 8},
		{Title: "Status", Width: 11},
		{Title: "Payment", Width: 8},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return OrdersModel{
		orderService: svc,
		table:        t,
		loading:      true,
	}
}

func (m OrdersModel) Title() string { return "Order Queue" }

func (m OrdersModel) ShortHelp() string {
	if m.state != ordersStateBrowse {
		return "Navigate form | Esc: cancel"
	}

	return "Esc: back | /: status filter | s: start | c: complete | x: fail | p: toggle payment | r: refresh"
}

func (m OrdersModel) Init() tea.Cmd {
	return m.loadOrdersCmd()
}

func (m OrdersModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadOrdersMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.orders = msg.orders
		m.refreshTable()

		return m, nil

	case orderActionMsg:
		m.status = msg.summary
		if msg.err != nil {
			m.status = errorStyle(fmt.Sprintf("Error: %v", msg.err))
		}

		m.state = ordersStateBrowse
		m.form = nil
		m.table.Focus()

		return m, m.loadOrdersCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-10, 5))
		return m, nil
	}

	switch m.state {
	case ordersStateBrowse:
		return m.updateBrowse(msg)
	case ordersStateComplete, ordersStateFail:
		return m.updateForm(msg)
	}

	return m, nil
}

func (m OrdersModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadOrdersCmd()
		case "/":
			m.filterIdx = (m.filterIdx + 1) % len(statusFilters)
			m.loading = true

			return m, m.loadOrdersCmd()
		case "s":
			if o := m.selected(); o != nil {
				return m, m.startCmd(o)
			}
		case "p":
			if o := m.selected(); o != nil {
				return m, m.togglePaymentCmd(o)
			}
		case "c":
			return m.enterForm(ordersStateComplete)
		case "x":
			return m.enterForm(ordersStateFail)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m OrdersModel) selected() *order.Order {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.orders) {
		return nil
	}

	return m.orders[idx]
}

func (m OrdersModel) enterForm(state ordersState) (tea.Model, tea.Cmd) {
	o := m.selected()
	if o == nil {
		return m, nil
	}

	m.fields = &orderFields{resultURL: o.ResultURL, refund: true}

	if state == ordersStateComplete {
		m.form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Key("result_url").
					Title("Result URL").
					Placeholder("https://...").
					Value(&m.fields.resultURL),
			),
		).WithWidth(45).WithShowHelp(false)
	} else {
		m.form = huh.NewForm(
			huh.NewGroup(
				huh.NewText().
					Key("note").
					Title("Reason").
					Value(&m.fields.note).
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return fmt.Errorf("a reason is required")
						}
						return nil
					}),
				huh.NewConfirm().
					Key("refund").
					Title(fmt.Sprintf("Refund %s to the user?", FormatAmount(o.TotalCost))).
					Value(&m.fields.refund),
			),
		).WithWidth(45).WithShowHelp(false)
	}

	m.state = state
	m.table.Blur()

	return m, m.form.Init()
}

func (m OrdersModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc {
			m.state = ordersStateBrowse
			m.form = nil
			m.table.Focus()

			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	o := m.selected()
	if o == nil {
		m.state = ordersStateBrowse
		return m, nil
	}

	if m.state == ordersStateComplete {
		return m, m.completeCmd(o, m.fields.resultURL)
	}

	return m, m.failCmd(o, order.FailParams{Note: m.fields.note, Refund: m.fields.refund})
}

func (m OrdersModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading orders...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v", m.err))
	}

	header := fmt.Sprintf("Filter: [/] Status: %s | %d orders",
		activeStyle(statusFilters[m.filterIdx].label),
		len(m.orders),
	)

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
	)

	if m.state != ordersStateBrowse && m.form != nil {
		title := "Complete Order"
		if m.state == ordersStateFail {
			title = "Fail Order"
		}

		detail := ""
		if o := m.selected(); o != nil {
			detail = fmt.Sprintf("%s\n%s %s", o.ID, o.Kind.Type(), o.TrackingCode)
		}

		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(48).
			Render(fmt.Sprintf("%s\n\n%s\n\n%s", title, detail, m.form.View()))

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m *OrdersModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.orders))
	for _, o := range m.orders {
		rows = append(rows, orderRow(o))
	}

	m.table.SetRows(rows)
}

func orderRow(o *order.Order) table.Row {
	kind := string(o.Kind.Type())
	if sub := order.SubtypeOf(o.Kind); sub != "" {
		kind += "/" + string(sub)
	}

	return table.Row{
		FormatTime(o.CreatedAt),
		o.UserID.String()[:8],
		kind,
		o.TrackingCode,
		FormatAmount(o.TotalCost),
		string(o.Status),
		string(o.PaymentStatus),
	}
}

// Messages

type loadOrdersMsg struct {
	orders []*order.Order
	err    error
}

type orderActionMsg struct {
	summary string
	err     error
}

func (m OrdersModel) loadOrdersCmd() tea.Cmd {
	filter := order.ListFilter{Status: statusFilters[m.filterIdx].status}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		orders, err := m.orderService.List(ctx, filter)

		return loadOrdersMsg{orders: orders, err: err}
	}
}

func (m OrdersModel) startCmd(o *order.Order) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		started, err := m.orderService.StartProcessing(ctx, Operator, o.ID)
		if err != nil {
			return orderActionMsg{err: err}
		}

		return orderActionMsg{summary: fmt.Sprintf("Started %s, charged %s", started.ID, FormatAmount(started.TotalCost))}
	}
}

func (m OrdersModel) completeCmd(o *order.Order, resultURL string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		if _, err := m.orderService.Complete(ctx, Operator, o.ID, strings.TrimSpace(resultURL)); err != nil {
			return orderActionMsg{err: err}
		}

		return orderActionMsg{summary: fmt.Sprintf("Completed %s", o.ID)}
	}
}

func (m OrdersModel) failCmd(o *order.Order, params order.FailParams) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		res, err := m.orderService.MarkFailed(ctx, Operator, o.ID, params)
		if err != nil {
			return orderActionMsg{err: err}
		}

		return orderActionMsg{summary: fmt.Sprintf("Failed %s, refunded %s", o.ID, FormatAmount(res.Refunded))}
	}
}

func (m OrdersModel) togglePaymentCmd(o *order.Order) tea.Cmd {
	next := order.PaymentPaid
	if o.Paid() {
		next = order.PaymentUnpaid
	}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		if _, err := m.orderService.SetPaymentStatus(ctx, Operator, o.ID, next, "set from console"); err != nil {
			return orderActionMsg{err: err}
		}

		return orderActionMsg{summary: fmt.Sprintf("Payment of %s set to %s", o.ID, next)}
	}
}
