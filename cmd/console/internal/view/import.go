package view

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/labelhub/internal/label"
)

const importTimeout = 2 * time.Minute

type importState int

const (
	importStateUser importState = iota
	importStateFilePick
	importStateImporting
	importStateResult
)

// ImportModel imports a label manifest on behalf of a user.
type ImportModel struct {
	CommonModel
	labelService *label.Service

	state      importState
	userInput  textinput.Model
	userID     uuid.UUID
	filePicker filepicker.Model
	rows       list.Model

	status string
	err    error
}

func NewImportModel(svc *label.Service) ImportModel {
	ti := textinput.New()
	ti.Placeholder = "User ID"
	ti.Width = 40
	ti.Prompt = "User: "
	ti.Focus()

	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.AllowedTypes = []string{".csv", ".tsv", ".txt"}
	fp.ShowHidden = false
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.SetHeight(15)

	return ImportModel{
		labelService: svc,
		userInput:    ti,
		filePicker:   fp,
	}
}

func (m ImportModel) Title() string { return "Import Manifest" }

func (m ImportModel) ShortHelp() string {
	return "Esc: back | Enter: select"
}

func (m ImportModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m.handleEsc()
		}

		if m.state == importStateUser && msg.Type == tea.KeyEnter {
			id, err := uuid.Parse(strings.TrimSpace(m.userInput.Value()))
			if err != nil {
				m.status = "Not a valid user id"
				return m, nil
			}

			m.userID = id
			m.status = ""
			m.state = importStateFilePick

			return m, m.filePicker.Init()
		}

		if m.state == importStateResult {
			var cmd tea.Cmd
			m.rows, cmd = m.rows.Update(msg)

			return m, cmd
		}

	case importResultMsg:
		m.state = importStateResult
		if msg.err != nil {
			m.err = msg.err
			m.status = fmt.Sprintf("Error: %v", msg.err)

			return m, nil
		}

		m.status = fmt.Sprintf("Imported %d orders, %d paid, %d rows rejected.",
			len(msg.result.Imported), msg.result.PaidCount(), len(msg.result.Rejected))
		m.rows = resultList(msg.result)

		return m, nil
	}

	switch m.state {
	case importStateUser:
		var cmd tea.Cmd
		m.userInput, cmd = m.userInput.Update(msg)

		return m, cmd
	case importStateFilePick:
		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			m.state = importStateImporting
			m.status = fmt.Sprintf("Importing from %s...", path)

			return m, m.importCmd(path)
		}

		return m, cmd
	}

	return m, nil
}

func (m ImportModel) handleEsc() (tea.Model, tea.Cmd) {
	switch m.state {
	case importStateFilePick:
		m.state = importStateUser
		return m, nil
	case importStateResult:
		m.state = importStateUser
		m.err = nil
		m.status = ""

		return m, nil
	}

	return m, Back
}

func (m ImportModel) View() string {
	style := lipgloss.NewStyle().Padding(2)

	switch m.state {
	case importStateUser:
		return style.Render(fmt.Sprintf("Import labels for which user?\n\n%s\n\n%s", m.userInput.View(), errorStyle(m.status)))
	case importStateFilePick:
		return lipgloss.NewStyle().Padding(1).Render(
			fmt.Sprintf("Select manifest for %s:\n\n%s", m.userID, m.filePicker.View()),
		)
	case importStateImporting:
		return style.Render(m.status)
	case importStateResult:
		if m.err != nil {
			return style.Render(errorStyle(m.status) + "\n\n(Esc to go back)")
		}

		return style.Render(okStyle(m.status) + "\n\n" + m.rows.View())
	}

	return ""
}

// rowItem is one manifest row in the result list.
type rowItem struct {
	row    int
	title  string
	detail string
}

func (i rowItem) Title() string       { return fmt.Sprintf("row %d  %s", i.row, i.title) }
func (i rowItem) Description() string { return i.detail }
func (i rowItem) FilterValue() string { return i.title }

func resultList(res *label.Result) list.Model {
	items := make([]list.Item, 0, len(res.Imported)+len(res.Rejected))

	for _, rej := range res.Rejected {
		items = append(items, rowItem{row: rej.Row, title: errorStyle("rejected"), detail: rej.Reason})
	}

	for _, imp := range res.Imported {
		state := "unpaid"
		if imp.Paid {
			state = "paid"
		}

		items = append(items, rowItem{
			row:    imp.Row,
			title:  fmt.Sprintf("%s %s", imp.Order.Kind.Type(), imp.Order.TrackingCode),
			detail: fmt.Sprintf("%s, %s, %s", state, imp.Order.Status, FormatAmount(imp.Order.TotalCost)),
		})
	}

	l := list.New(items, list.NewDefaultDelegate(), 80, 20)
	l.Title = "Manifest Rows"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	return l
}

// Messages

type importResultMsg struct {
	result *label.Result
	err    error
}

func (m ImportModel) importCmd(path string) tea.Cmd {
	userID := m.userID

	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return importResultMsg{err: err}
		}
		defer f.Close()

		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		res, err := m.labelService.Import(ctx, userID, f)

		return importResultMsg{result: res, err: err}
	}
}
