// Package ui renders the chat client in the terminal: a login screen, a
// chat screen with the online roster, transient notifications and a
// connecting overlay. It implements client.View; all state lives in the
// controller.
package ui

import (
	"context"
	"time"

	"github.com/rivo/tview"

	"gochat/client"
)

const (
	pageLogin   = "login"
	pageChat    = "chat"
	pageLoading = "loading"

	noticeDuration = 3 * time.Second
)

// App is the terminal front end.
type App struct {
	app   *tview.Application
	pages *tview.Pages
	ctrl  *client.Controller

	usernameInput *tview.InputField
	loginStatus   *tview.TextView

	headerView   *tview.TextView
	usersList    *tview.List
	chatView     *tview.TextView
	messageInput *tview.InputField
	noticeView   *tview.TextView

	noticeTimer *time.Timer
}

// NewApp builds all screens. The controller is attached afterwards with
// SetController, once it has been constructed with this App as its view.
func NewApp() *App {
	a := &App{
		app:   tview.NewApplication(),
		pages: tview.NewPages(),
	}
	a.pages.AddPage(pageLogin, a.createLoginPage(), true, true)
	a.pages.AddPage(pageChat, a.createChatPage(), true, false)
	a.pages.AddPage(pageLoading, a.createLoadingPage(), true, true)
	return a
}

// SetController attaches the controller driving this view.
func (a *App) SetController(ctrl *client.Controller) {
	a.ctrl = ctrl
}

// Run starts the terminal event loop and blocks until quit.
func (a *App) Run() error {
	a.app.SetRoot(a.pages, true)
	a.app.SetFocus(a.usernameInput)
	return a.app.EnableMouse(false).Run()
}

// quit logs out if needed and stops the application.
func (a *App) quit() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		a.ctrl.Logout(ctx)
		a.app.QueueUpdateDraw(func() {})
		a.app.Stop()
	}()
}

// ShowLoginScreen implements client.View.
func (a *App) ShowLoginScreen() {
	a.app.QueueUpdateDraw(func() {
		a.usernameInput.SetText("")
		a.usersList.Clear()
		a.chatView.Clear()
		a.messageInput.SetText("")
		a.pages.SwitchToPage(pageLogin)
		a.app.SetFocus(a.usernameInput)
	})
}

// ShowChatScreen implements client.View.
func (a *App) ShowChatScreen(username string) {
	a.app.QueueUpdateDraw(func() {
		a.headerView.SetText("[white::b]Go Chat[-:-:-]  [gray]logged in as[-] [aqua]" + tview.Escape(username) + "[-]")
		a.pages.SwitchToPage(pageChat)
		a.app.SetFocus(a.messageInput)
	})
}

// SetLoading implements client.View.
func (a *App) SetLoading(active bool) {
	a.app.QueueUpdateDraw(func() {
		if active {
			a.pages.ShowPage(pageLoading)
		} else {
			a.pages.HidePage(pageLoading)
		}
	})
}

func (a *App) createLoadingPage() tview.Primitive {
	text := tview.NewTextView()
	text.SetText("Connecting...")
	text.SetTextAlign(tview.AlignCenter)
	text.SetTextColor(ColorTitle)
	text.SetBackgroundColor(ColorBg)
	text.SetBorder(true)
	text.SetBorderColor(ColorBorder)

	return tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(text, 30, 0, false).
			AddItem(nil, 0, 1, false), 3, 0, false).
		AddItem(nil, 0, 1, false)
}
