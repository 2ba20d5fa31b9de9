package navigation

// State is a snapshot of a navigator.
//
// Invariants: 0 <= Current <= Furthest < PageCount, and Furthest never
// decreases between resets.
type State struct {
	Current   int `json:"current_page_index"`
	Furthest  int `json:"furthest_page_index"`
	PageCount int `json:"page_count"`
}

// FurthestListener is called synchronously whenever Furthest grows.
type FurthestListener func(furthest int)

// Navigator tracks page position within one lesson view. It is owned by a
// single view and does no locking of its own.
type Navigator struct {
	state    State
	listener FurthestListener
}

// New returns a navigator at page 0. A pageCount below 1 is treated as 1.
func New(pageCount int, listener FurthestListener) *Navigator {
	n := &Navigator{listener: listener}
	n.Reset(pageCount)
	return n
}

// State returns the current position.
func (n *Navigator) State() State { return n.state }

// CanAdvance reports whether Advance would move.
func (n *Navigator) CanAdvance() bool { return n.state.Current < n.state.PageCount-1 }

// CanRetreat reports whether Retreat would move.
func (n *Navigator) CanRetreat() bool { return n.state.Current > 0 }

// Advance moves to the next page. At the last page it does nothing and
// returns false. Reaching a page beyond Furthest raises Furthest and
// notifies the listener with the new value.
func (n *Navigator) Advance() bool {
	if !n.CanAdvance() {
		return false
	}
	n.state.Current++
	if n.state.Current > n.state.Furthest {
		n.state.Furthest = n.state.Current
		if n.listener != nil {
			n.listener(n.state.Furthest)
		}
	}
	return true
}

// Retreat moves to the previous page. It never touches Furthest and never
// notifies. At page 0 it does nothing and returns false.
func (n *Navigator) Retreat() bool {
	if !n.CanRetreat() {
		return false
	}
	n.state.Current--
	return true
}

// Reset starts over at page 0 with a new page count.
func (n *Navigator) Reset(pageCount int) {
	if pageCount < 1 {
		pageCount = 1
	}
	n.state = State{PageCount: pageCount}
}
