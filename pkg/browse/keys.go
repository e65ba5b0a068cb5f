package browse

import "github.com/charmbracelet/bubbles/key"

// keyMap lists the browser bindings. It implements help.KeyMap.
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Open    key.Binding
	Back    key.Binding
	Refresh key.Binding
	New     key.Binding
	Edit    key.Binding
	Delete  key.Binding
	AddCart key.Binding
	Cart    key.Binding
	Inc     key.Binding
	Dec     key.Binding
	Remove  key.Binding
	Sync    key.Binding
	Filter  key.Binding
	Confirm key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("↓/j", "down")),
		Open:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		New:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new book")),
		Edit:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Delete:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "delete")),
		AddCart: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add to cart")),
		Cart:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cart")),
		Inc:     key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "qty up")),
		Dec:     key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "qty down")),
		Remove:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "remove")),
		Sync:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sync")),
		Filter:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		Confirm: key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "confirm")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.New, k.AddCart, k.Cart, k.Sync, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open, k.Back, k.Filter},
		{k.New, k.Edit, k.Delete, k.Refresh, k.Sync},
		{k.AddCart, k.Cart, k.Inc, k.Dec, k.Remove},
		{k.Help, k.Quit},
	}
}
