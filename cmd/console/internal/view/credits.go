package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/labelhub/internal/credit"
)

type creditState int

const (
	creditStateForm creditState = iota
	creditStateApplying
	creditStateResult
)

// CreditModel applies a manual credit adjustment or top-up.
type CreditModel struct {
	CommonModel
	creditService *credit.Service

	state   creditState
	form    *huh.Form
	spinner spinner.Model
	err     error
	summary string

	// Bound to the form; shared by every copy of the model.
	fields *creditFields
}

type creditFields struct {
	userID    string
	amount    string
	topUp     bool
	reference string
	note      string
}

func NewCreditModel(svc *credit.Service) CreditModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := CreditModel{
		creditService: svc,
		spinner:       s,
		fields:        &creditFields{},
	}
	m.form = buildCreditForm(m.fields)

	return m
}

func (m CreditModel) Title() string { return "Adjust Credits" }

func (m CreditModel) ShortHelp() string {
	if m.state == creditStateResult {
		return "Esc: back to menu | Enter: new adjustment"
	}

	return "Esc: back | Enter: confirm"
}

func (m CreditModel) Init() tea.Cmd {
	return m.form.Init()
}

func buildCreditForm(f *creditFields) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("user_id").
				Title("User ID").
				Value(&f.userID).
				Validate(func(s string) error {
					if _, err := uuid.Parse(strings.TrimSpace(s)); err != nil {
						return fmt.Errorf("not a valid user id")
					}
					return nil
				}),
			huh.NewInput().
				Key("amount").
				Title("Amount").
				Description("Negative to debit").
				Placeholder("10.00").
				Value(&f.amount).
				Validate(func(s string) error {
					d, err := decimal.NewFromString(strings.TrimSpace(s))
					if err != nil || d.IsZero() {
						return fmt.Errorf("enter a non-zero amount")
					}
					return nil
				}),
			huh.NewConfirm().
				Key("top_up").
				Title("Is this a credit purchase?").
				Value(&f.topUp),
			huh.NewInput().
				Key("reference").
				Title("Reference").
				Description("Payment id for purchases, optional otherwise").
				Value(&f.reference),
			huh.NewInput().
				Key("note").
				Title("Note").
				Value(&f.note),
		),
	).WithWidth(60).WithShowHelp(false)
}

func (m CreditModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if res, ok := msg.(adjustResultMsg); ok {
		m.state = creditStateResult
		m.err = res.err

		switch {
		case res.err != nil:
			m.summary = fmt.Sprintf("Error: %v", res.err)
		case !res.result.Applied:
			m.summary = fmt.Sprintf("Reference already used, nothing changed. Balance: %s", FormatAmount(res.result.Balance))
		default:
			m.summary = fmt.Sprintf("Applied. New balance: %s", FormatAmount(res.result.Balance))
		}

		return m, nil
	}

	switch m.state {
	case creditStateForm:
		return m.updateForm(msg)
	case creditStateApplying:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	case creditStateResult:
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.Type {
			case tea.KeyEsc:
				return m, Back
			case tea.KeyEnter:
				fresh := NewCreditModel(m.creditService)
				return fresh, fresh.Init()
			}
		}
	}

	return m, nil
}

func (m CreditModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		return m, Back
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.state = creditStateApplying

	return m, tea.Batch(m.spinner.Tick, m.adjustCmd())
}

func (m CreditModel) View() string {
	style := lipgloss.NewStyle().Padding(2)

	switch m.state {
	case creditStateApplying:
		return style.Render(m.spinner.View() + " Applying adjustment...")
	case creditStateResult:
		msg := okStyle(m.summary)
		if m.err != nil {
			msg = errorStyle(m.summary)
		}

		return style.Render(msg + "\n\n(Enter for another, Esc to go back)")
	}

	return style.Render("Credit Adjustment\n\n" + m.form.View())
}

// Messages

type adjustResultMsg struct {
	result *credit.AdjustResult
	err    error
}

func (m CreditModel) adjustCmd() tea.Cmd {
	f := m.fields
	params := credit.AdjustParams{
		UserID:    uuid.MustParse(strings.TrimSpace(f.userID)),
		Amount:    decimal.RequireFromString(strings.TrimSpace(f.amount)),
		TopUp:     f.topUp,
		Reference: f.reference,
		Note:      f.note,
		Actor:     Operator,
	}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		res, err := m.creditService.Adjust(ctx, params)

		return adjustResultMsg{result: res, err: err}
	}
}
