package tui

import "charm.land/bubbles/v2/key"

// keyMap holds the board bindings.
type keyMap struct {
	quit        key.Binding
	reload      key.Binding
	toggleHelp  key.Binding
	left        key.Binding
	right       key.Binding
	up          key.Binding
	down        key.Binding
	grab        key.Binding
	drop        key.Binding
	cancel      key.Binding
	description key.Binding
	copyID      key.Binding
	edit        key.Binding
}

// newKeyMap constructs the default bindings.
func newKeyMap() keyMap {
	return keyMap{
		quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		left:        key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "column left")),
		right:       key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "column right")),
		up:          key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "task up")),
		down:        key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "task down")),
		grab:        key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "grab task")),
		drop:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "drop task")),
		cancel:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel drag")),
		description: key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "description")),
		copyID:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy id")),
		edit:        key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit task")),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.grab, k.drop, k.edit, k.description, k.copyID, k.reload, k.toggleHelp, k.quit}
}

// FullHelp returns the grouped bindings shown in the help overlay.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.left, k.right, k.up, k.down},
		{k.grab, k.drop, k.cancel},
		{k.edit, k.description, k.copyID, k.reload, k.toggleHelp, k.quit},
	}
}
