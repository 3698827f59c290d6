package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Escape     key.Binding
	Refresh    key.Binding
	Dismiss    key.Binding

	// Screens
	Home        key.Binding
	Login       key.Binding
	Register    key.Binding
	Logout      key.Binding
	Calibration key.Binding
	Test        key.Binding
	Results     key.Binding
	Statistics  key.Binding

	// Screen actions
	Start     key.Binding
	Record    key.Binding
	Open      key.Binding
	Export    key.Binding
	ExportAll key.Binding

	// Navigation
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding

	// Forms
	NextField key.Binding
	PrevField key.Binding
	Submit    key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Back"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "Refresh from backend"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "Dismiss notification"),
		),

		Home: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "Home"),
		),
		Login: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "Sign in"),
		),
		Register: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "New account"),
		),
		Logout: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "Sign out"),
		),
		Calibration: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Calibration"),
		),
		Test: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "Eye-tracking test"),
		),
		Results: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Results"),
		),
		Statistics: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Statistics"),
		),

		Start: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Start/stop calibration or test"),
		),
		Record: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "Record calibration point"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Open test details"),
		),
		Export: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "Export test as PDF"),
		),
		ExportAll: key.NewBinding(
			key.WithKeys("P"),
			key.WithHelp("P", "Export all tests as PDF"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),

		NextField: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "Next field"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "Previous field"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Submit"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Home, k.Login, k.Register, k.Logout},
		{k.Calibration, k.Test, k.Results, k.Statistics},
		{k.Start, k.Record, k.Open, k.Export, k.ExportAll},
		{k.Up, k.Down, k.Top, k.Bottom},
		{k.NextField, k.PrevField, k.Submit, k.Escape},
		{k.Refresh, k.Dismiss, k.CycleTheme, k.Help, k.Quit},
	}
}
