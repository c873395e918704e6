// Package tui is the terminal front end of the inventory screen.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/odyssey-erp/odyssey-inventory/internal/inventory"
)

type mode int

const (
	modeTable mode = iota
	modeSearch
	modeModal
)

const (
	fieldName = iota
	fieldPrice
	fieldDescription
	fieldCount
)

var fieldKeys = [fieldCount]string{"name", "price", "description"}

type loadedMsg struct{ err error }

type submittedMsg struct{ err error }

type deletedMsg struct {
	name string
	err  error
}

type exportedMsg struct {
	path string
	rows int
	err  error
}

// Options configures the model.
type Options struct {
	// ExportDir receives inventory_report.csv. Empty means the working directory.
	ExportDir string
}

// Model drives an inventory.Screen from the keyboard.
type Model struct {
	screen    *inventory.Screen
	keys      keyMap
	exportDir string

	mode   mode
	search textinput.Model
	inputs [fieldCount]textinput.Model
	focus  int

	cursor int
	busy   bool
	status string
	failed bool
	width  int
	height int
}

// New builds the model on screen. The caller keeps ownership of screen.
func New(screen *inventory.Screen, opts Options) Model {
	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "Search Inventory"

	var inputs [fieldCount]textinput.Model
	labels := [fieldCount]string{"Item Name", "Item Price", "Description"}
	placeholders := [fieldCount]string{"", "LKR 300.00", ""}
	for i := range inputs {
		in := textinput.New()
		in.Prompt = fmt.Sprintf("%-12s", labels[i]+":")
		in.Placeholder = placeholders[i]
		in.CharLimit = 255
		inputs[i] = in
	}
	return Model{
		screen:    screen,
		keys:      newKeyMap(),
		exportDir: opts.ExportDir,
		search:    search,
		inputs:    inputs,
		busy:      true,
		status:    "Loading inventory…",
	}
}

// Init fetches the collection.
func (m Model) Init() tea.Cmd {
	return m.loadCmd()
}

func (m Model) loadCmd() tea.Cmd {
	screen := m.screen
	return func() tea.Msg {
		return loadedMsg{err: screen.Load(context.Background())}
	}
}

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case loadedMsg:
		m.busy = false
		m.setOutcome(msg.err, "")
		m.clampCursor()
		return m, nil
	case submittedMsg:
		m.busy = false
		state := m.screen.State()
		if !state.ModalOpen {
			m.closeModal()
		}
		success := "Item saved."
		if state.Notice != "" {
			success = state.Notice
		}
		m.setOutcome(msg.err, success)
		m.clampCursor()
		return m, nil
	case deletedMsg:
		m.busy = false
		m.setOutcome(msg.err, fmt.Sprintf("Deleted %q.", msg.name))
		m.clampCursor()
		return m, nil
	case exportedMsg:
		m.busy = false
		if msg.err != nil {
			m.status, m.failed = "Export failed: "+msg.err.Error(), true
		} else {
			m.status, m.failed = fmt.Sprintf("Exported %d rows to %s.", msg.rows, msg.path), false
		}
		return m, nil
	case tea.KeyMsg:
		switch m.mode {
		case modeModal:
			return m.updateModal(msg)
		case modeSearch:
			return m.updateSearch(msg)
		default:
			return m.updateTable(msg)
		}
	}
	return m, nil
}

func (m Model) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.screen.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.screen.Filtered())-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Search):
		m.mode = modeSearch
		m.search.Focus()
	case m.busy:
		// Store actions wait for the previous one.
	case key.Matches(msg, m.keys.Add):
		m.screen.OpenCreate()
		m.openModal(inventory.ItemForm{})
	case key.Matches(msg, m.keys.Edit):
		item, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.screen.OpenEdit(item)
		m.openModal(inventory.FormFromItem(item))
	case key.Matches(msg, m.keys.Delete):
		item, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.busy = true
		m.status, m.failed = fmt.Sprintf("Deleting %q…", item.Name), false
		screen := m.screen
		return m, func() tea.Msg {
			return deletedMsg{name: item.Name, err: screen.Delete(context.Background(), item.ID)}
		}
	case key.Matches(msg, m.keys.Export):
		m.busy = true
		return m, m.exportCmd()
	case key.Matches(msg, m.keys.Reload):
		m.busy = true
		m.status, m.failed = "Loading inventory…", false
		return m, m.loadCmd()
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.mode = modeTable
		m.search.Blur()
		return m, nil
	case tea.KeyEsc:
		m.mode = modeTable
		m.search.Blur()
		m.search.SetValue("")
		m.screen.SetSearch("")
		m.clampCursor()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.screen.SetSearch(m.search.Value())
	m.cursor = 0
	return m, cmd
}

func (m Model) updateModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		m.screen.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Cancel):
		if m.busy {
			return m, nil
		}
		m.screen.Cancel()
		m.closeModal()
		m.status, m.failed = "", false
		return m, nil
	case key.Matches(msg, m.keys.Next):
		m.focusField(m.focus + 1)
		return m, nil
	case key.Matches(msg, m.keys.Prev):
		m.focusField(m.focus - 1)
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		if m.busy {
			return m, nil
		}
		form := inventory.ItemForm{
			Name:        m.inputs[fieldName].Value(),
			Price:       m.inputs[fieldPrice].Value(),
			Description: m.inputs[fieldDescription].Value(),
		}
		m.busy = true
		m.status, m.failed = "Saving…", false
		screen := m.screen
		return m, func() tea.Msg {
			return submittedMsg{err: screen.Submit(context.Background(), form)}
		}
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) exportCmd() tea.Cmd {
	screen := m.screen
	path := filepath.Join(m.exportDir, inventory.CSVFilename)
	rows := len(screen.Filtered())
	return func() tea.Msg {
		f, err := os.Create(path)
		if err != nil {
			return exportedMsg{err: err}
		}
		if err := screen.ExportCSV(f); err != nil {
			_ = f.Close()
			return exportedMsg{err: err}
		}
		if err := f.Close(); err != nil {
			return exportedMsg{err: err}
		}
		return exportedMsg{path: path, rows: rows}
	}
}

func (m *Model) setOutcome(err error, success string) {
	state := m.screen.State()
	switch {
	case inventory.IsClosed(err):
		m.status, m.failed = "", false
	case state.Error != "":
		m.status, m.failed = state.Error, true
	case err != nil && len(state.FieldErrors) > 0:
		m.status, m.failed = "Please fix the highlighted fields.", true
	case err != nil:
		m.status, m.failed = err.Error(), true
	default:
		m.status, m.failed = success, false
	}
}

func (m *Model) openModal(form inventory.ItemForm) {
	m.mode = modeModal
	m.status, m.failed = "", false
	values := [fieldCount]string{form.Name, form.Price, form.Description}
	for i := range m.inputs {
		m.inputs[i].SetValue(values[i])
		m.inputs[i].CursorEnd()
	}
	m.focusField(fieldName)
}

func (m *Model) closeModal() {
	m.mode = modeTable
	for i := range m.inputs {
		m.inputs[i].Blur()
		m.inputs[i].SetValue("")
	}
	m.focus = fieldName
}

func (m *Model) focusField(i int) {
	m.inputs[m.focus].Blur()
	m.focus = (i + fieldCount) % fieldCount
	m.inputs[m.focus].Focus()
}

func (m *Model) clampCursor() {
	n := len(m.screen.Filtered())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) selected() (inventory.Item, bool) {
	rows := m.screen.Filtered()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return inventory.Item{}, false
	}
	return rows[m.cursor], true
}

// View renders the screen.
func (m Model) View() string {
	state := m.screen.State()
	var b strings.Builder
	b.WriteString(titleStyle.Render("Inventory"))
	b.WriteString("\n")
	if m.mode == modeSearch || m.search.Value() != "" {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.renderTable(state))
	b.WriteString("\n")
	if m.mode == modeModal {
		b.WriteString(m.renderModal(state))
		b.WriteString("\n")
	}
	if m.status != "" {
		style := noticeStyle
		if m.failed {
			style = errorStyle
		}
		b.WriteString(style.Render(m.status))
		b.WriteString("\n")
	}
	switch m.mode {
	case modeModal:
		b.WriteString(renderHelp(m.keys.modalHelp()))
	case modeSearch:
		b.WriteString(renderHelp(m.keys.searchHelp()))
	default:
		b.WriteString(renderHelp(m.keys.tableHelp()))
	}
	return b.String()
}

func (m Model) columnWidths() (int, int, int) {
	width := m.width
	if width <= 0 {
		width = 100
	}
	price := 18
	name := (width - price - 6) / 3
	if name < 10 {
		name = 10
	}
	desc := width - price - name - 6
	if desc < 10 {
		desc = 10
	}
	return name, desc, price
}

func (m Model) renderTable(state inventory.ScreenState) string {
	nameW, descW, priceW := m.columnWidths()
	row := func(name, desc, price string) string {
		return "  " + truncate(name, nameW) + "  " + truncate(desc, descW) + "  " + truncate(price, priceW)
	}
	lines := []string{headerStyle.Render(row("Name", "Description", inventory.CSVHeader[2]))}
	if len(state.Visible) == 0 {
		empty := "No items found."
		if !state.Loaded && !m.busy {
			empty = "Inventory could not be loaded."
		}
		lines = append(lines, mutedStyle.Render("  "+empty))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}
	for i, item := range state.Visible {
		line := row(item.Name, item.Description, item.Price)
		if i == m.cursor && m.mode != modeModal {
			line = cursorStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderModal(state inventory.ScreenState) string {
	lines := []string{titleStyle.Render(state.ModalTitle()), ""}
	for i, in := range m.inputs {
		lines = append(lines, in.View())
		if msg := state.FieldErrors[fieldKeys[i]]; msg != "" {
			lines = append(lines, fieldErrStyle.Render(msg))
		}
	}
	return modalStyle.Render(strings.Join(lines, "\n"))
}
