package preprocessor

import "github.com/fwessels/erlpp/internal/syntax"

// condStack tracks nested -ifdef/-ifndef regions.
type condStack struct {
	stack []condFrame
}

type condFrame struct {
	keyword      string // "ifdef" or "ifndef"
	taken        bool   // the then-branch condition held
	parentActive bool
	inElse       bool
	active       bool
	pos          syntax.Pos
}

func newCondStack() *condStack  { return &condStack{} }
func (c *condStack) Depth() int { return len(c.stack) }

// Active reports whether tokens at the current nesting are emitted.
func (c *condStack) Active() bool {
	if len(c.stack) == 0 {
		return true
	}
	return c.stack[len(c.stack)-1].active
}

// Push opens a frame whose then-branch is taken when cond holds. Inside an
// inactive region the frame is inactive whatever cond says.
func (c *condStack) Push(keyword string, cond bool, pos syntax.Pos) {
	parent := c.Active()
	c.stack = append(c.stack, condFrame{
		keyword:      keyword,
		taken:        cond,
		parentActive: parent,
		active:       parent && cond,
		pos:          pos,
	})
}

// Else switches the innermost frame to its else-branch.
func (c *condStack) Else(pos syntax.Pos) error {
	if len(c.stack) == 0 {
		return errorf(StructuralError, pos, "-else without matching -ifdef or -ifndef")
	}
	top := &c.stack[len(c.stack)-1]
	if top.inElse {
		return errorf(StructuralError, pos, "duplicate -else for -%s at %s", top.keyword, top.pos)
	}
	top.inElse = true
	top.active = top.parentActive && !top.taken
	return nil
}

// Pop closes the innermost frame.
func (c *condStack) Pop(pos syntax.Pos) error {
	if len(c.stack) == 0 {
		return errorf(StructuralError, pos, "-endif without matching -ifdef or -ifndef")
	}
	c.stack = c.stack[:len(c.stack)-1]
	return nil
}

// Unclosed returns the innermost open frame, if any.
func (c *condStack) Unclosed() (condFrame, bool) {
	if len(c.stack) == 0 {
		return condFrame{}, false
	}
	return c.stack[len(c.stack)-1], true
}
