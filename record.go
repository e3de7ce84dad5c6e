package mat73

import (
	"github.com/scigolib/mat73/internal/container"
)

// resolveRecord reads each member of a struct group as a field.
func (s *session) resolveRecord(n container.Node) (*Record, error) {
	children, err := n.Children()
	if err != nil {
		return nil, err
	}

	rec := NewRecord()
	for _, c := range children {
		v, err := s.child(c, c.Name())
		if err != nil {
			s.log.Warn("field unreadable", "path", s.pathString()+"/"+c.Name(), "error", err)
			v = placeholder()
		}
		rec.Set(c.Name(), v)
	}
	return rec, nil
}
