package discovery

import "github.com/puzpuzpuz/xsync/v3"

// TestedSet remembers every address tested during this run.
type TestedSet struct {
	m *xsync.MapOf[string, struct{}]
}

func NewTestedSet() *TestedSet {
	return &TestedSet{m: xsync.NewMapOf[string, struct{}]()}
}

// Insert adds address and reports whether it was absent. Check and insert
// are one atomic step, so concurrent callers never both see true.
func (s *TestedSet) Insert(address string) bool {
	_, loaded := s.m.LoadOrStore(address, struct{}{})
	return !loaded
}

// Contains reports whether address has been tested.
func (s *TestedSet) Contains(address string) bool {
	_, ok := s.m.Load(address)
	return ok
}

// Len is the number of distinct addresses tested.
func (s *TestedSet) Len() int { return s.m.Size() }
