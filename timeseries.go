package mat73

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/scigolib/mat73/internal/allocation"
	"github.com/scigolib/mat73/internal/container"
	"github.com/scigolib/mat73/internal/mcos"
)

const (
	subsystemGroup = "#subsystem#"
	subsystemMCOS  = "MCOS"
)

// objectMarker opens the uint32 payload of a class-object dataset:
// [marker, 2, 1, 1, object id, class id].
const objectMarker = 0xDD000000

// subsystem is the class-object state of a file, built once per File.
type subsystem struct {
	registry *mcos.Registry
	pool     []container.Reference
	alloc    allocation.Map
	report   allocation.Report
}

// subsystem returns the cached subsystem, building it on first use.
func (f *File) subsystem() *subsystem {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sub == nil {
		f.sub = f.buildSubsystem()
	}
	return f.sub
}

// buildSubsystem must be called with f.mu held.
func (f *File) buildSubsystem() *subsystem {
	sub := &subsystem{registry: mcos.Empty(), alloc: allocation.Map{}}

	root, err := f.c.Root()
	if err != nil {
		f.diagnose(fmt.Errorf("%w: %w", ErrMetadataParse, err))
		return sub
	}
	pool, blob, err := f.loadPool(root)
	if err != nil {
		f.diagnose(fmt.Errorf("%w: %w", ErrMetadataParse, err))
		return sub
	}
	if pool == nil {
		return sub
	}
	sub.pool = pool

	reg, err := mcos.Parse(blob)
	if err != nil {
		f.diagnose(fmt.Errorf("%w: %w", ErrMetadataParse, err))
		return sub
	}
	sub.registry = reg

	instances := f.instances(root, reg)
	candidates := f.candidates(pool)
	sub.alloc, sub.report = allocation.Build(instances, candidates, f.opts.policy)
	f.log.Debug("timeseries allocation",
		"classes", len(reg.Classes),
		"instances", len(instances),
		"pool", len(pool),
		"eligible", sub.report.Eligible,
		"strategy", sub.report.Strategy.String())

	if len(sub.report.Unmatched) > 0 {
		f.diagnose(fmt.Errorf("%w: %d of %d without data: %s", ErrAllocationShortfall,
			len(sub.report.Unmatched), len(instances), strings.Join(sub.report.Unmatched, ", ")))
	}
	return sub
}

// diagnose records err and logs it once. Callers hold f.mu.
func (f *File) diagnose(err error) {
	f.diags = append(f.diags, err)
	f.log.Warn("timeseries metadata degraded", "error", err)
}

// loadPool reads the reference list of #subsystem#/MCOS and the metadata
// blob its first element points to. A file without class objects has no
// pool and no error.
func (f *File) loadPool(root container.Node) ([]container.Reference, []byte, error) {
	sys, ok, err := container.Child(root, subsystemGroup)
	if err != nil || !ok {
		return nil, nil, err
	}
	node, ok, err := container.Child(sys, subsystemMCOS)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, nil
	}
	ds, err := node.Read()
	if err != nil {
		return nil, nil, err
	}
	refs, err := ds.References()
	if err != nil {
		return nil, nil, err
	}
	if len(refs) == 0 {
		return nil, nil, errors.New("empty MCOS reference list")
	}
	blobNode, err := f.c.Deref(refs[0])
	if err != nil {
		return nil, nil, fmt.Errorf("metadata blob: %w", err)
	}
	blob, err := blobNode.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("metadata blob: %w", err)
	}
	return refs, blob.Raw, nil
}

// instances lists every shaped variable: top-level datasets and struct
// fields at any depth, keyed by their slash-joined path.
func (f *File) instances(root container.Node, reg *mcos.Registry) []allocation.Instance {
	var out []allocation.Instance
	seen := make(map[container.Reference]bool)

	var walk func(n container.Node, prefix string, depth int)
	walk = func(n container.Node, prefix string, depth int) {
		if seen[n.Ref()] || depth > f.opts.maxDepth {
			return
		}
		seen[n.Ref()] = true
		children, err := n.Children()
		if err != nil {
			f.log.Debug("skipping unreadable group", "path", prefix, "error", err)
			return
		}
		for _, c := range children {
			if prefix == "" && strings.HasPrefix(c.Name(), "#") {
				continue
			}
			path := c.Name()
			if prefix != "" {
				path = prefix + "/" + c.Name()
			}
			if c.IsGroup() {
				walk(c, path, depth+1)
				continue
			}
			if reg.IsShaped(container.ClassTag(c), f.opts.required...) {
				out = append(out, allocation.Instance{Path: path, RefIndex: refIndex(c)})
			}
		}
	}
	walk(root, "", 0)
	return out
}

// refIndex returns the object id of a class-object dataset, or 0.
func refIndex(n container.Node) int64 {
	ds, err := n.Read()
	if err != nil {
		return 0
	}
	marker, ok := ds.Uint(0)
	if !ok || marker != objectMarker {
		return 0
	}
	id, ok := ds.Uint(4)
	if !ok {
		return 0
	}
	//nolint:gosec // G115: object ids are 32-bit
	return int64(id)
}

// candidates describes each pool entry without reading its payload.
func (f *File) candidates(pool []container.Reference) []allocation.Candidate {
	out := make([]allocation.Candidate, len(pool))
	for i, ref := range pool {
		out[i].Slot = i
		n, err := f.c.Deref(ref)
		if err != nil || n.IsGroup() {
			continue
		}
		shape, err := n.Describe()
		if err != nil {
			continue
		}
		out[i].Dims = shape.Dims
		out[i].Double = shape.Type.Class == container.ClassFloat && shape.Type.Size == 8
		out[i].Empty = container.IsEmpty(n)
	}
	return out
}

// readTimeseries materializes the pool pair allocated to path. Instances
// without a pair read as an empty Timeseries.
func (f *File) readTimeseries(log *slog.Logger, path string) *Timeseries {
	sub := f.subsystem()
	pair, ok := sub.alloc[path]
	if !ok {
		log.Warn("timeseries without data", "path", path)
		return emptyTimeseries()
	}

	t, err := f.poolArray(sub, pair.Time)
	if err != nil {
		log.Warn("timeseries time unreadable", "path", path, "slot", pair.Time, "error", err)
		return emptyTimeseries()
	}
	d, err := f.poolArray(sub, pair.Data)
	if err != nil {
		log.Warn("timeseries data unreadable", "path", path, "slot", pair.Data, "error", err)
		return emptyTimeseries()
	}

	t.Shape = []int{t.Len()}
	if len(d.Shape) > 0 && d.Shape[0] != t.Len() {
		log.Debug("timeseries length mismatch", "path", path, "time", t.Len(), "data", d.Shape)
	}
	return &Timeseries{Time: t, Data: d}
}

func (f *File) poolArray(sub *subsystem, slot int) (*Array, error) {
	if slot < 0 || slot >= len(sub.pool) {
		return nil, fmt.Errorf("slot %d outside pool of %d", slot, len(sub.pool))
	}
	n, err := f.c.Deref(sub.pool[slot])
	if err != nil {
		return nil, err
	}
	ds, err := n.Read()
	if err != nil {
		return nil, err
	}
	return materialize(ds, Double)
}
