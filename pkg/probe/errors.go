package probe

import "fmt"

// Error is the single failure kind a Prober can return. Every database
// error a prober encounters collapses into an Error: the caller's
// contract is that the node's state is now unknown and must be treated
// as lost, never partially trusted.
type Error struct {
	Op   string
	Node string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("probe: %s %s: unknown state", e.Op, e.Node)
	}
	return fmt.Sprintf("probe: %s %s: %v", e.Op, e.Node, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op, node string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Node: node, Err: err}
}
