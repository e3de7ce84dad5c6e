package mat73

import (
	"fmt"

	"github.com/scigolib/mat73/internal/container"
)

// resolveCell dereferences every element of a reference payload. Elements
// that cannot be resolved become the empty placeholder.
func (s *session) resolveCell(ds *container.Dataset) (*Sequence, error) {
	refs, err := ds.References()
	if err != nil {
		return nil, err
	}

	seq := &Sequence{Elems: make([]Value, len(refs)), Shape: matlabDims(ds.Dims)}
	for i, ref := range refs {
		seg := fmt.Sprintf("{%d}", i)
		n, err := s.f.c.Deref(ref)
		if err != nil {
			s.log.Warn("cell element unresolved", "path", s.pathString()+"/"+seg, "error", err)
			seq.Elems[i] = placeholder()
			continue
		}
		v, err := s.child(n, seg)
		if err != nil {
			s.log.Warn("cell element unreadable", "path", s.pathString()+"/"+seg, "error", err)
			v = placeholder()
		}
		seq.Elems[i] = v
	}
	return seq, nil
}
