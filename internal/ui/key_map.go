package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up        key.Binding
	down      key.Binding
	toggle    key.Binding
	rangeSel  key.Binding
	selectAll key.Binding
	clear     key.Binding
	search    key.Binding
	sort      key.Binding
	reverse   key.Binding
	edit      key.Binding
	remove    key.Binding
	copyURLs  key.Binding
	copyTitle key.Binding
	copyOne   key.Binding
	open      key.Binding
	export    key.Binding
	refresh   key.Binding
	enter     key.Binding
	tab       key.Binding
	back      key.Binding
	yes       key.Binding
	no        key.Binding
	help      key.Binding
	quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		toggle:    key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space", "select")),
		rangeSel:  key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "select range")),
		selectAll: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "select all")),
		clear:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear")),
		search:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		sort:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort column")),
		reverse:   key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "reverse")),
		edit:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		remove:    key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete")),
		copyURLs:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy urls")),
		copyTitle: key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "copy titles")),
		copyOne:   key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy row url")),
		open:      key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open")),
		export:    key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "export")),
		refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
		tab:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch field")),
		back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		yes:       key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y", "yes")),
		no:        key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "no")),
		help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.toggle, k.search, k.edit, k.remove, k.copyURLs, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.toggle, k.rangeSel, k.selectAll, k.clear},
		{k.search, k.sort, k.reverse, k.refresh},
		{k.edit, k.remove, k.export, k.open},
		{k.copyURLs, k.copyTitle, k.copyOne},
		{k.help, k.quit},
	}
}
