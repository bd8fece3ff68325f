package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds every binding the host understands.
type KeyMap struct {
	SelectKeepAlive key.Binding
	SelectLogout    key.Binding
	Toggle          key.Binding
	Submit          key.Binding
	KeepAlive       key.Binding
	Logout          key.Binding
	Help            key.Binding
	Quit            key.Binding
	ForceQuit       key.Binding
}

// DefaultKeyMap returns the stock bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		SelectKeepAlive: key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "select stay")),
		SelectLogout:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "select log out")),
		Toggle:          key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch")),
		Submit:          key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "choose")),
		KeepAlive:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "stay logged in")),
		Logout:          key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "log out")),
		Help:            key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:            key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		ForceQuit:       key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "force quit")),
	}
}

// dialogKeys adapts the dialog bindings to help.KeyMap.
type dialogKeys struct{ KeyMap }

func (k dialogKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.KeepAlive, k.Logout, k.Submit}
}

func (k dialogKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.KeepAlive, k.Logout},
		{k.SelectKeepAlive, k.SelectLogout, k.Toggle, k.Submit},
		{k.ForceQuit},
	}
}

// hostKeys adapts the idle-screen bindings to help.KeyMap.
type hostKeys struct{ KeyMap }

func (k hostKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

func (k hostKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Help, k.Quit, k.ForceQuit},
	}
}
