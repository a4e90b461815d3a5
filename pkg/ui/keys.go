package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap lists the chat shortcuts.
type KeyMap struct {
	Record   key.Binding
	Send     key.Binding
	Generate key.Binding
	NewChat  key.Binding
	CopyHint key.Binding
	Quit     key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Record:   key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "record")),
		Send:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Generate: key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("ctrl+g", "new word")),
		NewChat:  key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "new chat")),
		CopyHint: key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "copy hint")),
		Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Record, k.Send, k.Generate, k.CopyHint, k.NewChat, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
