package m4

const stackInitialCap = 16

// Stack is a stack of transformation matrices. The stack is never empty;
// the bottom slot is seeded with the identity matrix.
type Stack struct {
	mats []Matrix
}

// NewStack returns a stack holding a single identity matrix.
func NewStack() *Stack {
	s := &Stack{
		mats: make([]Matrix, 1, stackInitialCap),
	}
	s.mats[0].Identity()
	return s
}

// Push duplicates the current tip onto a new slot and returns the new tip.
func (s *Stack) Push() *Matrix {
	n := len(s.mats)
	s.mats = append(s.mats, s.mats[n-1])
	return &s.mats[n]
}

// Pop discards the tip and returns the newly exposed tip. The bottom slot
// is never popped.
func (s *Stack) Pop() *Matrix {
	if n := len(s.mats); n > 1 {
		s.mats = s.mats[:n-1]
	}
	return s.Tip()
}

// Tip returns the current top of the stack for reading and writing.
func (s *Stack) Tip() *Matrix {
	return &s.mats[len(s.mats)-1]
}

// Depth returns the number of matrices on the stack.
func (s *Stack) Depth() int {
	return len(s.mats)
}
