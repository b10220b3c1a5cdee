package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"gochat/client"
)

func (a *App) createChatPage() tview.Primitive {
	// Header with the current user
	a.headerView = tview.NewTextView()
	a.headerView.SetBackgroundColor(tcell.NewRGBColor(0, 128, 128))
	a.headerView.SetTextColor(ColorTitle)
	a.headerView.SetDynamicColors(true)

	// Online users on the left
	a.usersList = tview.NewList()
	a.usersList.SetBorder(true)
	a.usersList.SetBorderColor(ColorBorder)
	a.usersList.SetBackgroundColor(ColorBg)
	a.usersList.SetTitle(" Online ")
	a.usersList.SetTitleColor(ColorTitle)
	a.usersList.SetMainTextColor(ColorFg)
	a.usersList.ShowSecondaryText(false)

	// Message history
	a.chatView = tview.NewTextView()
	a.chatView.SetBorder(true)
	a.chatView.SetBorderColor(ColorBorder)
	a.chatView.SetBackgroundColor(ColorBg)
	a.chatView.SetTitle(" Messages ")
	a.chatView.SetTitleColor(ColorTitle)
	a.chatView.SetTextColor(ColorFg)
	a.chatView.SetDynamicColors(true)
	a.chatView.SetScrollable(true)
	a.chatView.ScrollToEnd()

	// Message input
	a.messageInput = tview.NewInputField()
	a.messageInput.SetLabel("> ")
	a.messageInput.SetFieldWidth(0)
	a.messageInput.SetBackgroundColor(ColorBg)
	a.messageInput.SetFieldBackgroundColor(tcell.NewRGBColor(0, 0, 64))
	a.messageInput.SetFieldTextColor(ColorFg)
	a.messageInput.SetLabelColor(ColorHighlight)
	a.messageInput.SetBorder(true)
	a.messageInput.SetBorderColor(ColorBorder)

	a.messageInput.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			text := a.messageInput.GetText()
			// Clear immediately; the message shows up via the server echo.
			a.messageInput.SetText("")
			go a.ctrl.SendMessage(text)
		}
	})

	// Notification line
	a.noticeView = tview.NewTextView()
	a.noticeView.SetBackgroundColor(ColorBg)
	a.noticeView.SetTextColor(ColorFg)
	a.noticeView.SetDynamicColors(true)

	// Status bar
	statusBar := tview.NewTextView()
	statusBar.SetBackgroundColor(tcell.NewRGBColor(0, 128, 128))
	statusBar.SetTextColor(ColorTitle)
	statusBar.SetTextAlign(tview.AlignCenter)
	statusBar.SetText(" Enter:Send | Tab:Scroll | F6:Logout | F10:Quit ")

	rightFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.chatView, 0, 1, false).
		AddItem(a.messageInput, 3, 0, true).
		AddItem(a.noticeView, 1, 0, false)

	body := tview.NewFlex().
		AddItem(a.usersList, 24, 0, false).
		AddItem(rightFlex, 0, 1, true)

	mainFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.headerView, 1, 0, false).
		AddItem(body, 0, 1, true).
		AddItem(statusBar, 1, 0, false)
	mainFlex.SetBackgroundColor(ColorBg)

	chatViewFocused := false
	mainFlex.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF6:
			a.logout()
			return nil
		case tcell.KeyF10:
			a.quit()
			return nil
		case tcell.KeyTab:
			chatViewFocused = !chatViewFocused
			if chatViewFocused {
				a.app.SetFocus(a.chatView)
			} else {
				a.app.SetFocus(a.messageInput)
			}
			return nil
		case tcell.KeyPgUp:
			row, col := a.chatView.GetScrollOffset()
			a.chatView.ScrollTo(row-10, col)
			return nil
		case tcell.KeyPgDn:
			row, col := a.chatView.GetScrollOffset()
			a.chatView.ScrollTo(row+10, col)
			return nil
		}
		return event
	})

	return mainFlex
}

func (a *App) logout() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.ctrl.Logout(ctx)
	}()
}

// RenderRoster implements client.View: full re-render, no diffing.
func (a *App) RenderRoster(users []string) {
	a.app.QueueUpdateDraw(func() {
		a.usersList.Clear()
		for _, username := range users {
			a.usersList.AddItem("[green]●[-] "+tview.Escape(username), "", 0, nil)
		}
		a.usersList.SetTitle(fmt.Sprintf(" Online (%d) ", len(users)))
	})
}

// AppendMessage implements client.View.
func (a *App) AppendMessage(msg client.Message) {
	a.app.QueueUpdateDraw(func() {
		timeStr := msg.Timestamp.Local().Format("15:04")
		name := tview.Escape(msg.Username)
		text := tview.Escape(msg.Text)
		if msg.Own {
			fmt.Fprintf(a.chatView, "[gray]%s[-] [yellow]%s:[-] %s\n", timeStr, name, text)
		} else {
			fmt.Fprintf(a.chatView, "[gray]%s[-] [aqua]%s:[-] %s\n", timeStr, name, text)
		}
		a.chatView.ScrollToEnd()
	})
}
