package memdom

import "strings"

// Autocomplete wires input and list as a combobox with a suggestion popup.
// Typing repopulates list with one role=option item per suggestion; clicking an
// option, or ArrowDown then Enter, commits it to the input and closes the popup.
type Autocomplete struct {
	Input   *Node
	List    *Node
	Suggest func(query string) []string
	// Committed records every value chosen from the popup.
	Committed []string

	active int
}

// NewAutocomplete installs the autocomplete behaviour on input and list.
// The list starts hidden.
func NewAutocomplete(input, list *Node, suggest func(query string) []string) *Autocomplete {
	a := &Autocomplete{Input: input, List: list, Suggest: suggest, active: -1}
	if list.Attrs["role"] == "" {
		list.SetAttr("role", "listbox")
	}
	input.SetAttr("aria-expanded", "false")
	list.Hide()
	chainInput(input, a.refresh)
	chainKey(input, a.key)
	return a
}

func (a *Autocomplete) refresh(*Node) {
	a.List.Clear()
	a.active = -1
	q := strings.TrimSpace(a.Input.Value)
	if q == "" {
		a.close()
		return
	}
	for _, s := range a.Suggest(q) {
		label := s
		opt := El("li", "role", "option").WithText(label)
		opt.OnClick = func(*Node) { a.commit(label) }
		a.List.Append(opt)
	}
	if len(a.List.Children) == 0 {
		a.close()
		return
	}
	a.List.Show()
	a.Input.SetAttr("aria-expanded", "true")
}

func (a *Autocomplete) key(_ *Node, key string) {
	opts := a.List.Children
	switch key {
	case "ArrowDown":
		if len(opts) == 0 || !a.List.Visible() {
			return
		}
		if a.active >= 0 {
			opts[a.active].SetAttr("aria-selected", "false")
		}
		a.active = (a.active + 1) % len(opts)
		opts[a.active].SetAttr("aria-selected", "true")
	case "Enter":
		if a.active >= 0 && a.active < len(opts) {
			a.commit(opts[a.active].TextContent())
		}
	case "Escape":
		a.close()
	}
}

func (a *Autocomplete) commit(label string) {
	a.Input.Value = label
	a.Committed = append(a.Committed, label)
	a.close()
	if a.Input.OnChange != nil {
		a.Input.OnChange(a.Input)
	}
}

func (a *Autocomplete) close() {
	a.List.Clear()
	a.active = -1
	a.List.Hide()
	a.Input.SetAttr("aria-expanded", "false")
}

// RemoveChip makes button a "remove value" affordance for input: it is shown
// while the input holds a value and clears the input when clicked.
func RemoveChip(button, input *Node) {
	sync := func(*Node) {
		if input.Value == "" {
			button.Hide()
		} else {
			button.Show()
		}
	}
	sync(input)
	chainInput(input, sync)
	prev := input.OnChange
	input.OnChange = func(x *Node) {
		if prev != nil {
			prev(x)
		}
		sync(x)
	}
	button.OnClick = func(*Node) {
		input.Value = ""
		if input.OnInput != nil {
			input.OnInput(input)
		}
	}
}

func chainInput(n *Node, fn func(*Node)) {
	prev := n.OnInput
	n.OnInput = func(x *Node) {
		if prev != nil {
			prev(x)
		}
		fn(x)
	}
}

func chainKey(n *Node, fn func(*Node, string)) {
	prev := n.OnKey
	n.OnKey = func(x *Node, key string) {
		if prev != nil {
			prev(x, key)
		}
		fn(x, key)
	}
}
