package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/daemon"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/engine"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/session"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

// Mode tracks which input surface has keyboard focus.
type Mode int

const (
	ModePrompt Mode = iota
	ModeWheel
)

// wheelRow is one selectable line of the wheel panel: either an
// above-threshold candidate or the aggregated "other" row at the bottom.
type wheelRow struct {
	candidate engine.Candidate
	isOther   bool
}

// Model is the root bubbletea model for the wheel TUI.
type Model struct {
	// Connection state
	socketPath string
	client     *daemon.Client
	connected  bool
	connError  string

	// Session state
	sessionID   string
	modelName   string
	currentText string
	history     []session.HistoryEntry

	// Prompt entry
	mode        Mode
	promptInput string

	// Wheel state
	dist      *engine.Snapshot
	rows      []wheelRow
	cursor    int
	loading   bool
	lastOther *daemon.OtherSelectionPayload

	// Partition parameters
	threshold   float64
	temperature float64
	otherTopK   int

	// UI state
	width  int
	height int

	// Errors
	errorMessage   string
	errorTransient bool

	// Status
	statusText string

	// Reconnect
	reconnecting     bool
	reconnectAttempt int
}

// New creates a new Model pointed at the daemon socket.
func New(socketPath string) Model {
	return Model{
		socketPath:  socketPath,
		mode:        ModePrompt,
		threshold:   engine.DefaultThreshold,
		temperature: engine.DefaultTemperature,
		otherTopK:   engine.DefaultOtherTopK,
		statusText:  "Connecting to wheeld...",
	}
}

// Init returns the initial command: connect to the daemon.
func (m Model) Init() tea.Cmd {
	return connectCmd(m.socketPath)
}

func connectCmd(socketPath string) tea.Cmd {
	return func() tea.Msg {
		client, err := daemon.Connect(socketPath)
		if err != nil {
			return DaemonConnectErrorMsg{Err: err}
		}
		return DaemonConnectedMsg{Client: client}
	}
}

func createSessionCmd(client *daemon.Client, model string) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.Send(daemon.Command{Cmd: daemon.CmdCreateSession, Model: model})
		if err != nil {
			return DaemonErrorMsg{Err: err}
		}
		return SessionCreatedMsg{Response: resp}
	}
}

func modelsCmd(client *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.Send(daemon.Command{Cmd: daemon.CmdListModels})
		if err != nil {
			return DaemonErrorMsg{Err: err}
		}
		return ModelsMsg{Response: resp}
	}
}

func setPromptCmd(client *daemon.Client, sessionID, prompt string) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.Send(daemon.Command{
			Cmd:       daemon.CmdSetPrompt,
			SessionID: sessionID,
			Prompt:    prompt,
		})
		if err != nil {
			return DaemonErrorMsg{Err: err}
		}
		return PromptSetMsg{Response: resp}
	}
}

func distributionCmd(client *daemon.Client, sessionID string, threshold, temperature float64, otherTopK int) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.Send(daemon.Command{
			Cmd:         daemon.CmdDistribution,
			SessionID:   sessionID,
			Threshold:   daemon.Float64Ptr(threshold),
			Temperature: daemon.Float64Ptr(temperature),
			OtherTopK:   daemon.IntPtr(otherTopK),
		})
		if err != nil {
			return DaemonErrorMsg{Err: err}
		}
		return DistributionMsg{Response: resp}
	}
}

func appendTokenCmd(client *daemon.Client, sessionID string, tokenID int) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.Send(daemon.Command{
			Cmd:       daemon.CmdAppend,
			SessionID: sessionID,
			Select:    daemon.SelectToken,
			TokenID:   daemon.IntPtr(tokenID),
		})
		if err != nil {
			return DaemonErrorMsg{Err: err}
		}
		return SelectionAppliedMsg{Response: resp}
	}
}

func appendOtherCmd(client *daemon.Client, sessionID string) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.Send(daemon.Command{
			Cmd:       daemon.CmdAppend,
			SessionID: sessionID,
			Select:    daemon.SelectOther,
		})
		if err != nil {
			return DaemonErrorMsg{Err: err}
		}
		return SelectionAppliedMsg{Response: resp}
	}
}

func undoCmd(client *daemon.Client, sessionID string) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.Send(daemon.Command{Cmd: daemon.CmdUndo, SessionID: sessionID})
		if err != nil {
			return DaemonErrorMsg{Err: err}
		}
		return UndoneMsg{Response: resp}
	}
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

// reconnectCmd schedules a reconnection attempt with exponential backoff.
func reconnectCmd(attempt int) tea.Cmd {
	delay := time.Duration(1<<min(attempt, 4)) * time.Second // 1s, 2s, 4s, 8s, 16s cap
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return ReconnectTickMsg{}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case DaemonConnectedMsg:
		m.client = msg.Client
		m.connected = true
		m.connError = ""
		m.reconnecting = false
		m.reconnectAttempt = 0
		m.statusText = "Connected"
		return m, tea.Batch(
			modelsCmd(m.client),
			createSessionCmd(m.client, ""),
		)

	case DaemonConnectErrorMsg:
		m.connected = false
		m.connError = msg.Err.Error()
		m.reconnecting = true
		m.statusText = "Daemon not running. Reconnecting..."
		return m, reconnectCmd(m.reconnectAttempt)

	case DaemonErrorMsg:
		m.connected = false
		m.connError = msg.Err.Error()
		m.statusText = "Disconnected. Reconnecting..."
		m.reconnecting = true
		m.loading = false
		if m.client != nil {
			m.client.Close()
			m.client = nil
		}
		return m, reconnectCmd(m.reconnectAttempt)

	case ReconnectTickMsg:
		m.reconnectAttempt++
		return m, connectCmd(m.socketPath)

	case ModelsMsg:
		if msg.Response.OK && len(msg.Response.Models) > 0 {
			m.modelName = msg.Response.Models[0].ID
		}
		return m, nil

	case SessionCreatedMsg:
		r := msg.Response
		if !r.OK {
			return m.fail(r), nil
		}
		m.sessionID = r.Session.ID
		m.modelName = r.Session.ModelName
		m.statusText = "Enter a prompt"
		return m, nil

	case PromptSetMsg:
		r := msg.Response
		if !r.OK {
			m.loading = false
			return m.fail(r), clearTransientErrorCmd()
		}
		m.applyState(r)
		m.mode = ModeWheel
		m.loading = true
		m.statusText = "Computing distribution..."
		return m, distributionCmd(m.client, m.sessionID, m.threshold, m.temperature, m.otherTopK)

	case DistributionMsg:
		m.loading = false
		r := msg.Response
		if !r.OK {
			return m.fail(r), clearTransientErrorCmd()
		}
		m.currentText = r.CurrentText
		m.setDistribution(r.Distribution)
		m.statusText = "Pick a token"
		return m, nil

	case SelectionAppliedMsg:
		r := msg.Response
		if !r.OK {
			m.loading = false
			return m.fail(r), clearTransientErrorCmd()
		}
		m.applyState(r)
		m.lastOther = r.Other
		m.dist = nil
		m.rows = nil
		m.loading = true
		m.statusText = "Computing distribution..."
		return m, distributionCmd(m.client, m.sessionID, m.threshold, m.temperature, m.otherTopK)

	case UndoneMsg:
		r := msg.Response
		if !r.OK {
			m.loading = false
			return m.fail(r), clearTransientErrorCmd()
		}
		m.applyState(r)
		m.lastOther = nil
		m.dist = nil
		m.rows = nil
		m.loading = true
		m.statusText = "Computing distribution..."
		return m, distributionCmd(m.client, m.sessionID, m.threshold, m.temperature, m.otherTopK)

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil
	}

	return m, nil
}

// fail records a daemon-side error for display.
func (m Model) fail(r daemon.Response) Model {
	m.errorMessage = r.Error
	m.errorTransient = true
	return m
}

// applyState copies the session payload of a response into the model.
func (m *Model) applyState(r daemon.Response) {
	if r.Session != nil {
		m.sessionID = r.Session.ID
		m.modelName = r.Session.ModelName
		m.currentText = r.Session.CurrentText
		m.history = r.Session.TokenHistory
	} else if r.CurrentText != "" {
		m.currentText = r.CurrentText
	}
}

// setDistribution rebuilds the wheel rows from a snapshot. The "other"
// row sits at the bottom whenever the tail is non-empty.
func (m *Model) setDistribution(snap *engine.Snapshot) {
	m.dist = snap
	m.rows = m.rows[:0]
	if snap == nil {
		m.cursor = 0
		return
	}
	for _, c := range snap.AboveThreshold {
		m.rows = append(m.rows, wheelRow{candidate: c})
	}
	if snap.Other.TokenCount > 0 {
		m.rows = append(m.rows, wheelRow{isOther: true})
	}
	if m.cursor >= len(m.rows) {
		m.cursor = max(0, len(m.rows)-1)
	}
}

// handleKey processes key presses, routed by mode.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == KeyCtrlC {
		return m.quit()
	}
	if m.mode == ModePrompt {
		return m.handlePromptKey(msg)
	}
	return m.handleWheelKey(msg)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.client != nil {
		if m.sessionID != "" {
			m.client.Send(daemon.Command{Cmd: daemon.CmdDeleteSession, SessionID: m.sessionID})
		}
		m.client.Close()
	}
	return m, tea.Quit
}

// handlePromptKey edits the prompt line.
func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEnter:
		if !m.connected || m.sessionID == "" || strings.TrimSpace(m.promptInput) == "" {
			return m, nil
		}
		m.loading = true
		m.statusText = "Setting prompt..."
		return m, setPromptCmd(m.client, m.sessionID, m.promptInput)

	case KeyEsc:
		if m.dist != nil {
			// Back to the wheel without touching the session.
			m.mode = ModeWheel
		}
		return m, nil

	case "backspace":
		if len(m.promptInput) > 0 {
			runes := []rune(m.promptInput)
			m.promptInput = string(runes[:len(runes)-1])
		}
		return m, nil

	default:
		switch msg.Type {
		case tea.KeyRunes:
			m.promptInput += string(msg.Runes)
		case tea.KeySpace:
			m.promptInput += " "
		}
		return m, nil
	}
}

// handleWheelKey drives token selection.
func (m Model) handleWheelKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyQuitUpper:
		return m.quit()

	case KeyJ, KeyDown:
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
		return m, nil

	case KeyK, KeyUp:
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case KeyEnter:
		if !m.connected || m.loading || m.cursor >= len(m.rows) {
			return m, nil
		}
		row := m.rows[m.cursor]
		m.loading = true
		m.statusText = "Applying selection..."
		if row.isOther {
			return m, appendOtherCmd(m.client, m.sessionID)
		}
		return m, appendTokenCmd(m.client, m.sessionID, row.candidate.ID)

	case KeyOther:
		if !m.connected || m.loading || m.dist == nil || m.dist.Other.TokenCount == 0 {
			return m, nil
		}
		m.loading = true
		m.statusText = "Spinning the wheel..."
		return m, appendOtherCmd(m.client, m.sessionID)

	case KeyUndo:
		if !m.connected || m.loading {
			return m, nil
		}
		m.loading = true
		m.statusText = "Undoing..."
		return m, undoCmd(m.client, m.sessionID)

	case KeyRefresh:
		if !m.connected || m.loading {
			return m, nil
		}
		m.loading = true
		m.statusText = "Computing distribution..."
		return m, distributionCmd(m.client, m.sessionID, m.threshold, m.temperature, m.otherTopK)

	case KeyPrompt:
		m.mode = ModePrompt
		m.promptInput = ""
		m.statusText = "Enter a new prompt (replaces the session)"
		return m, nil

	case KeyTempUp:
		m.temperature += 0.1
		return m.refresh()

	case KeyTempDown:
		if m.temperature > 0.15 {
			m.temperature -= 0.1
		}
		return m.refresh()

	case KeyThreshUp:
		if m.threshold+0.005 <= 1 {
			m.threshold += 0.005
		}
		return m.refresh()

	case KeyThreshDown:
		if m.threshold-0.005 >= 0 {
			m.threshold -= 0.005
		}
		return m.refresh()
	}

	return m, nil
}

// refresh re-requests the distribution after a parameter change.
func (m Model) refresh() (tea.Model, tea.Cmd) {
	if !m.connected || m.loading || m.sessionID == "" || m.dist == nil {
		return m, nil
	}
	m.loading = true
	m.statusText = "Computing distribution..."
	return m, distributionCmd(m.client, m.sessionID, m.threshold, m.temperature, m.otherTopK)
}

func (m Model) wheelPanelWidth() int {
	if m.width == 0 {
		return 44
	}
	return max(30, m.width*45/100)
}

func (m Model) textPanelWidth() int {
	if m.width == 0 {
		return 50
	}
	return max(30, m.width-m.wheelPanelWidth()-3)
}

func (m Model) contentHeight() int {
	if m.height == 0 {
		return 20
	}
	// Reserve: header(1) + status(1) + dividers(2) + error(1) + footer(1) + padding
	reserved := 7
	return max(5, m.height-reserved)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	if m.mode == ModePrompt {
		sections = append(sections, m.renderPromptEntry())
	} else {
		sections = append(sections, m.renderMainContent())
	}

	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	}

	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("TOKEN WHEEL")

	var modelInfo string
	if m.modelName != "" {
		modelInfo = ui.DimStyle.Render(" [" + m.modelName + "]")
	}

	params := ui.DimStyle.Render(fmt.Sprintf("  thr %.3f  temp %.1f", m.threshold, m.temperature))

	return title + modelInfo + params
}

func (m Model) renderStatusBar() string {
	var spinner string
	if m.loading {
		spinner = ui.SpinnerStyle.Render("⟳ ")
	}
	status := ui.StatusStyle.Render(m.statusText)

	var tokens string
	if len(m.history) > 0 {
		tokens = ui.DimStyle.Render(fmt.Sprintf("  %d tokens", len(m.history)))
	}
	return spinner + status + tokens
}

func (m Model) renderPromptEntry() string {
	height := m.contentHeight()

	var lines []string
	lines = append(lines, "")
	lines = append(lines, ui.PanelTitleStyle.Render("  PROMPT"))
	lines = append(lines, "")

	input := m.promptInput + ui.CursorStyle.Render("▌")
	for _, wl := range wrapText(input, max(20, m.width-6)) {
		lines = append(lines, "  "+ui.PromptStyle.Render(wl))
	}
	lines = append(lines, "")
	lines = append(lines, ui.DimStyle.Render("  Enter to start, Esc to cancel"))

	for len(lines) < height {
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderMainContent() string {
	wheelW := m.wheelPanelWidth()
	textW := m.textPanelWidth()
	contentH := m.contentHeight()

	wheelPanel := m.renderWheelPanel(wheelW, contentH)
	textPanel := m.renderTextPanel(textW, contentH)

	divider := ui.DividerStyle.Render("│")

	wheelLines := strings.Split(wheelPanel, "\n")
	textLines := strings.Split(textPanel, "\n")

	for len(wheelLines) < contentH {
		wheelLines = append(wheelLines, strings.Repeat(" ", wheelW))
	}
	for len(textLines) < contentH {
		textLines = append(textLines, "")
	}

	var rows []string
	for i := 0; i < contentH; i++ {
		wl := wheelLines[i]
		tl := ""
		if i < len(textLines) {
			tl = textLines[i]
		}
		rows = append(rows, wl+divider+tl)
	}

	return strings.Join(rows, "\n")
}

func (m Model) renderWheelPanel(width, height int) string {
	header := ui.PanelTitleActiveStyle.Render("NEXT TOKEN")
	if m.dist != nil {
		header += ui.DimStyle.Render(fmt.Sprintf("  %d above, %d other",
			len(m.dist.AboveThreshold), m.dist.Other.TokenCount))
	}

	var lines []string
	lines = append(lines, padRight(header, width))

	switch {
	case !m.connected:
		if m.reconnecting {
			lines = append(lines, "")
			lines = append(lines, ui.ErrorTextStyle.Render("  Daemon disconnected. Reconnecting..."))
		} else {
			lines = append(lines, ui.DimStyle.Render("  Connecting to wheeld..."))
		}
	case m.loading:
		lines = append(lines, "")
		lines = append(lines, ui.DimStyle.Render("  Working..."))
	case len(m.rows) == 0:
		lines = append(lines, "")
		lines = append(lines, ui.DimStyle.Render("  No distribution. Press r to refresh."))
	default:
		barW := max(6, width*25/100)
		for i, row := range m.rows {
			lines = append(lines, m.renderWheelRow(row, i == m.cursor, width, barW))
		}
	}

	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for i, l := range lines {
		lines[i] = padRight(l, width)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderWheelRow(row wheelRow, selected bool, width, barW int) string {
	cursor := "  "
	if selected {
		cursor = ui.SelectedStyle.Render("> ")
	}

	if row.isOther {
		other := m.dist.Other
		label := fmt.Sprintf("OTHER (%d tokens)", other.TokenCount)
		if selected {
			label = ui.SelectedStyle.Render(label)
		} else {
			label = ui.OtherTokenStyle.Render(label)
		}
		return truncateToWidth(cursor+renderProbBar(other.TotalProbability, barW)+" "+
			ui.ProbStyle.Render(fmt.Sprintf("%5.1f%%", other.TotalProbability*100))+" "+label, width)
	}

	c := row.candidate
	text := fmt.Sprintf("%q", c.Text)
	if selected {
		text = ui.SelectedStyle.Render(text)
	}
	return truncateToWidth(cursor+renderProbBar(c.Probability, barW)+" "+
		ui.ProbStyle.Render(fmt.Sprintf("%5.1f%%", c.Probability*100))+" "+text, width)
}

// renderProbBar draws a fixed-width probability bar.
func renderProbBar(p float64, width int) string {
	filled := int(p * float64(width))
	if filled > width {
		filled = width
	}

	style := ui.BarLowStyle
	if p >= 0.5 {
		style = ui.BarHighStyle
	} else if p >= 0.1 {
		style = ui.BarMidStyle
	}

	return style.Render(strings.Repeat("█", filled)) +
		ui.DimStyle.Render(strings.Repeat("░", width-filled))
}

func (m Model) renderTextPanel(width, height int) string {
	header := ui.PanelTitleStyle.Render("TEXT")
	if m.lastOther != nil {
		header += ui.OtherTokenStyle.Render(fmt.Sprintf("  wheel hit rank %d of %d",
			m.lastOther.SelectedTokenRank, m.lastOther.TokenCount))
	}

	var lines []string
	lines = append(lines, padRight(header, width))

	textW := max(10, width-4)

	// Prompt in plain white, generated tokens in green, wheel draws in
	// magenta. Rendered as one flowing block.
	var b strings.Builder
	prompt := m.currentText
	for i := len(m.history) - 1; i >= 0; i-- {
		prompt = strings.TrimSuffix(prompt, m.history[i].Token.Text)
	}
	// Trimming from the end only works when tokens match the tail; fall
	// back to plain text if the reconstruction disagrees.
	rebuilt := prompt
	for _, e := range m.history {
		rebuilt += e.Token.Text
	}
	if rebuilt != m.currentText {
		for _, wl := range wrapText(m.currentText, textW) {
			lines = append(lines, "  "+ui.PromptStyle.Render(wl))
		}
	} else {
		b.WriteString(ui.PromptStyle.Render(prompt))
		for _, e := range m.history {
			if e.SampledFromOther {
				b.WriteString(ui.OtherTokenStyle.Render(e.Token.Text))
			} else {
				b.WriteString(ui.GeneratedStyle.Render(e.Token.Text))
			}
		}
		for _, wl := range strings.Split(wrapStyled(b.String(), textW), "\n") {
			lines = append(lines, "  "+wl)
		}
	}

	lines = append(lines, "")

	// Recent selections, newest last.
	if len(m.history) > 0 {
		lines = append(lines, ui.PanelTitleStyle.Render("HISTORY"))
		start := max(0, len(m.history)-(height-len(lines)-1))
		for i := start; i < len(m.history); i++ {
			e := m.history[i]
			marker := "  "
			label := fmt.Sprintf("%q  %.1f%%", e.Token.Text, e.Token.Probability*100)
			if e.SampledFromOther {
				marker = ui.OtherTokenStyle.Render("◆ ")
				label += fmt.Sprintf("  (wheel, rank %d)", e.RankInOther)
			}
			lines = append(lines, truncateToWidth("  "+marker+label, width))
		}
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	var parts []string

	if m.mode == ModePrompt {
		parts = append(parts, ui.FooterKeyStyle.Render("Enter")+ui.FooterDescStyle.Render(" Start"))
		parts = append(parts, ui.FooterKeyStyle.Render("Esc")+ui.FooterDescStyle.Render(" Back"))
	} else if m.connected {
		parts = append(parts, ui.FooterKeyStyle.Render("j/k")+ui.FooterDescStyle.Render(" Nav"))
		parts = append(parts, ui.FooterKeyStyle.Render("Enter")+ui.FooterDescStyle.Render(" Pick"))
		parts = append(parts, ui.FooterKeyStyle.Render("o")+ui.FooterDescStyle.Render(" Wheel"))
		parts = append(parts, ui.FooterKeyStyle.Render("u")+ui.FooterDescStyle.Render(" Undo"))
		parts = append(parts, ui.FooterKeyStyle.Render("p")+ui.FooterDescStyle.Render(" Prompt"))
		parts = append(parts, ui.FooterKeyStyle.Render("+/-")+ui.FooterDescStyle.Render(" Temp"))
		parts = append(parts, ui.FooterKeyStyle.Render("[/]")+ui.FooterDescStyle.Render(" Thr"))
	}

	parts = append(parts, ui.FooterKeyStyle.Render("q")+ui.FooterDescStyle.Render(" Quit"))

	return strings.Join(parts, "  ")
}

// Helpers

func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func truncateToWidth(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len(current)+1+len(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		} else {
			lines = append(lines, "")
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

// wrapStyled hard-wraps a styled string on visible width. Styles carry
// across the break because lipgloss resets per segment.
func wrapStyled(s string, width int) string {
	if width <= 0 {
		return s
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}
