// Package tui is the interactive terminal client: a session list and a chat
// view whose status badge tracks the locally reconciled session state.
package tui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/parleychat/parley/chatstate"
	"github.com/parleychat/parley/rpc"
)

type viewMode int

const (
	sessionListView viewMode = iota
	chatView
)

// Chat view chrome: header, notice line, input, footer.
const chatChromeHeight = 4

// Config seeds the UI with an authenticated client.
type Config struct {
	API      API
	Identity rpc.AuthResult
}

type model struct {
	ctrl     *chatstate.Controller
	api      API
	identity rpc.AuthResult

	mode   viewMode
	cursor int
	snaps  []rpc.SessionSnapshot

	chat     chatstate.View
	viewport viewport.Model
	input    textinput.Model

	prompting bool
	prompt    textinput.Model

	sending bool
	loading bool
	status  string

	ready  bool
	width  int
	height int
}

func newModel(cfg Config, ctrl *chatstate.Controller) model {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "type a message"
	input.CharLimit = 4096

	prompt := textinput.New()
	prompt.Prompt = "chat with: "
	prompt.Placeholder = "username"
	prompt.CharLimit = 64

	return model{
		ctrl:     ctrl,
		api:      cfg.API,
		identity: cfg.Identity,
		mode:     sessionListView,
		input:    input,
		prompt:   prompt,
		loading:  true,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(loadSessionsCmd(m.api, true), textinput.Blink)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := msg.Height - chatChromeHeight
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.input.Width = msg.Width - 4
		m.prompt.Width = msg.Width - 16
		m.refreshChatViewport()
		return m, nil

	case sessionsLoadedMsg:
		m.loading = false
		if msg.Error != nil {
			m.status = fmt.Sprintf("cannot load sessions: %v", msg.Error)
			return m, nil
		}
		m.snaps = msg.Sessions
		m.status = ""
		if m.cursor >= len(m.snaps) && m.cursor > 0 {
			m.cursor = len(m.snaps) - 1
		}
		return m, nil

	case sessionCreatedMsg:
		m.loading = false
		if msg.Error != nil {
			m.status = fmt.Sprintf("cannot start chat: %v", msg.Error)
			return m, nil
		}
		return m.openChat(msg.Result.Session.ID)

	case sessionOpenedMsg:
		if msg.Error != nil {
			m.mode = sessionListView
			m.input.Blur()
			m.status = fmt.Sprintf("cannot open session: %v", msg.Error)
			return m, nil
		}
		m.chat = m.ctrl.State()
		m.refreshChatViewport()
		return m, nil

	case chatUpdatedMsg:
		m.chat = m.ctrl.State()
		m.refreshChatViewport()
		return m, nil

	case sendDoneMsg:
		// Failures surface as a controller notice; nothing to do here.
		m.sending = false
		return m, nil

	case refreshedMsg:
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.forwardToComponents(msg)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode == chatView {
		return m.handleChatKey(msg)
	}
	if m.prompting {
		return m.handlePromptKey(msg)
	}
	return m.handleListKey(msg)
}

func (m model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.snaps)-1 {
			m.cursor++
		}

	case "enter":
		if m.cursor < len(m.snaps) {
			return m.openChat(m.snaps[m.cursor].ID)
		}

	case "n":
		m.prompting = true
		m.prompt.Reset()
		return m, m.prompt.Focus()

	case "r":
		m.loading = true
		return m, loadSessionsCmd(m.api, true)
	}
	return m, nil
}

func (m model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		m.prompting = false
		m.prompt.Blur()
		return m, nil

	case "enter":
		username := strings.TrimSpace(m.prompt.Value())
		if username == "" {
			return m, nil
		}
		m.prompting = false
		m.prompt.Blur()
		m.loading = true
		return m, createSessionCmd(m.api, username)
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

func (m model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		// A visible notice catches the first esc; the second leaves.
		if m.chat.Notice != nil {
			m.ctrl.DismissNotice()
			m.chat = m.ctrl.State()
			return m, nil
		}
		return m.closeChat()

	case "enter":
		if m.sending {
			return m, nil
		}
		body := strings.TrimSpace(m.input.Value())
		if body == "" {
			return m, nil
		}
		m.input.Reset()
		m.sending = true
		return m, sendCmd(m.ctrl, body)

	case "ctrl+r":
		return m, refreshCmd(m.ctrl)

	case "up", "down", "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) openChat(sessionID string) (tea.Model, tea.Cmd) {
	m.mode = chatView
	m.chat = chatstate.View{}
	m.status = ""
	m.sending = false
	if m.ready {
		m.viewport.SetContent("")
	}
	return m, tea.Batch(openSessionCmd(m.ctrl, sessionID), m.input.Focus(), textinput.Blink)
}

func (m model) closeChat() (tea.Model, tea.Cmd) {
	m.ctrl.Close()
	m.mode = sessionListView
	m.chat = chatstate.View{}
	m.input.Blur()
	m.input.Reset()
	m.sending = false
	m.loading = true
	return m, loadSessionsCmd(m.api, true)
}

func (m model) forwardToComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	if m.prompting {
		m.prompt, cmd = m.prompt.Update(msg)
		cmds = append(cmds, cmd)
	}
	if m.mode == chatView {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// refreshChatViewport re-renders the scrollback, keeping the view pinned to
// the newest message unless the user scrolled away.
func (m *model) refreshChatViewport() {
	if !m.ready || m.mode != chatView {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderMessages())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m model) View() string {
	if !m.ready {
		return "\n  starting..."
	}
	if m.mode == chatView {
		return m.renderChat()
	}
	return m.renderSessionList()
}

func (m model) renderSessionList() string {
	var b strings.Builder
	b.WriteString(m.renderHeader("sessions") + "\n\n")

	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	switch {
	case m.loading && len(m.snaps) == 0:
		b.WriteString(dim.Render("  loading sessions...") + "\n")
	case len(m.snaps) == 0:
		b.WriteString(dim.Render("  no sessions yet, press n to start one") + "\n")
	}

	for i, snap := range m.snaps {
		cursor := "  "
		style := lipgloss.NewStyle()
		if i == m.cursor {
			cursor = "> "
			style = style.Foreground(lipgloss.Color("212")).Bold(true)
		}
		line := fmt.Sprintf("%s%-20s", cursor, peerName(snap))
		badge := renderStateBadge(chatstate.Compute(snap, 0).Phase())
		updated := dim.Render(snap.UpdatedAt.Local().Format("01-02 15:04"))
		b.WriteString(style.Render(line) + " " + badge + "  " + updated + "\n")
	}

	b.WriteString("\n")
	if m.prompting {
		b.WriteString(m.prompt.View() + "\n")
		b.WriteString(dim.Render("enter: start chat • esc: cancel"))
		return b.String()
	}

	if m.status != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render(m.status) + "\n")
	}
	b.WriteString(dim.Render("↑/↓: navigate • enter: open • n: new chat • r: refresh • q: quit"))
	return b.String()
}

func (m model) renderChat() string {
	title := "chat"
	if m.chat.Session != nil {
		title = peerName(*m.chat.Session)
	}
	header := m.renderHeader(title) + " " + renderStateBadge(m.chat.State.Phase())

	noticeLine := ""
	if m.chat.Notice != nil {
		noticeLine = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("161")).
			Render(" " + m.chat.Notice.Text + " (esc to dismiss) ")
	}

	inputLine := m.input.View()
	if m.sending {
		inputLine = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("sending...")
	}

	footer := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).
		Render("enter: send • ctrl+r: refresh • esc: back • ctrl+c: quit")

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s", header, m.viewport.View(), noticeLine, inputLine, footer)
}

func (m model) renderMessages() string {
	if len(m.chat.Messages) == 0 {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("no messages yet")
	}

	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	wrap := lipgloss.NewStyle().Width(m.viewport.Width)

	var b strings.Builder
	for i, msg := range m.chat.Messages {
		sender := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
		if msg.SenderID == m.identity.UserID {
			sender = sender.Foreground(lipgloss.Color("212"))
		}
		line := fmt.Sprintf("%s %s %s",
			dim.Render(msg.SentAt.Local().Format("15:04")),
			sender.Render(msg.Sender+":"),
			msg.Body)
		b.WriteString(wrap.Render(line))
		if i < len(m.chat.Messages)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m model) renderHeader(title string) string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("63"))
	return style.Render(fmt.Sprintf(" parley | %s | %s ", m.identity.Username, title))
}

// renderStateBadge shows the reconciled session phase: waiting for the peer,
// verifying a server-reported activation, or ready to chat.
func renderStateBadge(p chatstate.Phase) string {
	label := "waiting"
	color := lipgloss.Color("245")
	switch p {
	case chatstate.PhaseVerifying:
		label = "verifying"
		color = lipgloss.Color("214")
	case chatstate.PhaseReady:
		label = "ready"
		color = lipgloss.Color("42")
	}
	return lipgloss.NewStyle().Foreground(color).Render("[" + label + "]")
}

func peerName(snap rpc.SessionSnapshot) string {
	if len(snap.OtherParticipants) > 0 {
		return snap.OtherParticipants[0].Username
	}
	return snap.ID
}

// programRelay forwards controller updates into the running program. The
// controller is built before the program exists, so the pointer arrives late.
type programRelay struct {
	mu sync.Mutex
	p  *tea.Program
}

func (r *programRelay) attach(p *tea.Program) {
	r.mu.Lock()
	r.p = p
	r.mu.Unlock()
}

func (r *programRelay) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.p
	r.mu.Unlock()
	if p == nil {
		return
	}
	// Send blocks while the update loop is busy; called from inside that
	// loop it would deadlock, so deliver from a fresh goroutine.
	go p.Send(msg)
}

// Run drives the UI until the user quits.
func Run(cfg Config) error {
	relay := &programRelay{}
	ctrl := chatstate.NewController(cfg.API, chatstate.Options{
		OnUpdate: func() { relay.send(chatUpdatedMsg{}) },
	})
	defer ctrl.Close()

	p := tea.NewProgram(newModel(cfg, ctrl), tea.WithAltScreen())
	relay.attach(p)

	_, err := p.Run()
	return err
}
