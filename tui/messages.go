package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/parleychat/parley/chatstate"
	"github.com/parleychat/parley/rpc"
)

// API is what the UI needs from the chat client: the controller's surface
// plus session creation. *client.Client satisfies it.
type API interface {
	chatstate.API
	CreateSession(ctx context.Context, username string) (rpc.SessionCreateResult, error)
}

const commandTimeout = 10 * time.Second

// Messages that enter the update loop from async work.
type (
	// sessionsLoadedMsg carries a session list fetch.
	sessionsLoadedMsg struct {
		Sessions []rpc.SessionSnapshot
		Error    error
	}

	// sessionCreatedMsg carries the result of starting a chat with a peer.
	sessionCreatedMsg struct {
		Result rpc.SessionCreateResult
		Error  error
	}

	// sessionOpenedMsg reports a SelectSession call finishing.
	sessionOpenedMsg struct {
		SessionID string
		Error     error
	}

	// chatUpdatedMsg signals that the controller state changed and the view
	// should pull it again.
	chatUpdatedMsg struct{}

	// sendDoneMsg reports a send attempt finishing. Failures surface as a
	// controller notice, not here.
	sendDoneMsg struct {
		Error error
	}

	// refreshedMsg reports a manual reconciliation fetch finishing.
	refreshedMsg struct {
		Error error
	}
)

func loadSessionsCmd(api API, refresh bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		snaps, err := api.Sessions(ctx, refresh)
		return sessionsLoadedMsg{Sessions: snaps, Error: err}
	}
}

func createSessionCmd(api API, username string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		res, err := api.CreateSession(ctx, username)
		return sessionCreatedMsg{Result: res, Error: err}
	}
}

func openSessionCmd(ctrl *chatstate.Controller, sessionID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		err := ctrl.SelectSession(ctx, sessionID)
		return sessionOpenedMsg{SessionID: sessionID, Error: err}
	}
}

func sendCmd(ctrl *chatstate.Controller, body string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return sendDoneMsg{Error: ctrl.Send(ctx, body)}
	}
}

func refreshCmd(ctrl *chatstate.Controller) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return refreshedMsg{Error: ctrl.Refresh(ctx)}
	}
}
