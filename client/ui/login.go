package ui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

func (a *App) createLoginPage() tview.Primitive {
	form := tview.NewForm()
	form.SetBackgroundColor(ColorBg)
	form.SetFieldBackgroundColor(tcell.NewRGBColor(0, 0, 64))
	form.SetFieldTextColor(ColorFg)
	form.SetLabelColor(ColorHighlight)
	form.SetButtonBackgroundColor(tcell.NewRGBColor(0, 128, 128))
	form.SetButtonTextColor(ColorTitle)
	form.SetBorder(true)
	form.SetBorderColor(ColorBorder)
	form.SetTitle(" Join the chat ")
	form.SetTitleColor(ColorTitle)

	a.loginStatus = tview.NewTextView()
	a.loginStatus.SetBackgroundColor(ColorBg)
	a.loginStatus.SetTextColor(tcell.ColorRed)
	a.loginStatus.SetTextAlign(tview.AlignCenter)
	a.loginStatus.SetDynamicColors(true)

	a.usernameInput = tview.NewInputField()
	a.usernameInput.SetLabel("Username: ")
	a.usernameInput.SetFieldWidth(30)
	a.usernameInput.SetBackgroundColor(ColorBg)

	form.AddFormItem(a.usernameInput)

	form.AddButton("Join", func() {
		a.submitLogin()
	})
	form.AddButton("Quit", func() {
		a.quit()
	})

	a.usernameInput.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			a.submitLogin()
		}
	})

	formFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(form, 0, 1, true).
		AddItem(a.loginStatus, 1, 0, false)

	// Center the form
	width := 50
	height := 9

	modal := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(formFlex, width, 0, true).
			AddItem(nil, 0, 1, false), height, 0, true).
		AddItem(nil, 0, 1, false)

	modal.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyF10 {
			a.quit()
			return nil
		}
		return event
	})

	return modal
}

// submitLogin runs the login operation off the UI goroutine; the
// controller drives the screen transition through the View interface.
func (a *App) submitLogin() {
	username := a.usernameInput.GetText()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.ctrl.Login(ctx, username)
	}()
}
