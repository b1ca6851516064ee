// Package ui renders terminal output for the zubwifi commands using
// lipgloss styles and Bubble Tea models.
//
// One-shot commands use Printer for headers, result boxes and state
// lines. Long-running commands (zubwifi run, zubwifi-prov watch) feed a
// WatchModel with LineMsg values from another goroutine via
// tea.Program.Send and end it with DoneMsg.
//
//	m := ui.NewWatchModel("station")
//	p := tea.NewProgram(m)
//	go func() {
//	    p.Send(ui.StateLine(time.Now(), station.Connecting, "HomeNet"))
//	    p.Send(ui.DoneMsg{})
//	}()
//	_, err := p.Run()
//
// Colors follow the station state: green for CONNECTED, orange for
// CONNECTING, blue for PROVISIONING, red for ERROR.
package ui
