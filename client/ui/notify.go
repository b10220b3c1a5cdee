package ui

import (
	"time"

	"github.com/rivo/tview"

	"gochat/client"
)

// Notify implements client.View: a transient one-line notification shown
// on whichever screen is active, cleared after a few seconds.
func (a *App) Notify(level client.Level, text string) {
	a.app.QueueUpdateDraw(func() {
		text = tview.Escape(text)
		var line string
		switch level {
		case client.LevelSuccess:
			line = "[green]" + text + "[-]"
		case client.LevelError:
			line = "[red]" + text + "[-]"
		default:
			line = "[blue]" + text + "[-]"
		}
		a.noticeView.SetText(line)
		a.loginStatus.SetText(line)

		if a.noticeTimer != nil {
			a.noticeTimer.Stop()
		}
		a.noticeTimer = time.AfterFunc(noticeDuration, func() {
			a.app.QueueUpdateDraw(func() {
				a.noticeView.SetText("")
				a.loginStatus.SetText("")
			})
		})
	})
}
