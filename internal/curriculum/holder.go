package curriculum

import (
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/masteryforge/internal/conceptgraph"
)

// ErrNoCurriculum is returned when no graph has been loaded yet.
var ErrNoCurriculum = errors.New("no curriculum loaded")

// Snapshot is one loaded curriculum version.
type Snapshot struct {
	Graph    *conceptgraph.Graph
	Source   string
	Version  int64
	LoadedAt time.Time
}

// Holder owns the single authoritative reference to the active graph.
// Readers never block; a reload replaces the whole graph in one step and
// a failed reload leaves the previous graph active.
type Holder struct {
	current atomic.Pointer[Snapshot]
	version atomic.Int64
	logger  *zap.Logger
}

// NewHolder creates an empty Holder.
func NewHolder(logger *zap.Logger) *Holder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Holder{logger: logger}
}

// Current returns the active snapshot, or ErrNoCurriculum.
func (h *Holder) Current() (*Snapshot, error) {
	snap := h.current.Load()
	if snap == nil {
		return nil, ErrNoCurriculum
	}
	return snap, nil
}

// Graph returns the active graph, or ErrNoCurriculum.
func (h *Holder) Graph() (*conceptgraph.Graph, error) {
	snap, err := h.Current()
	if err != nil {
		return nil, err
	}
	return snap.Graph, nil
}

// Swap installs g as the active graph and returns the new snapshot.
func (h *Holder) Swap(g *conceptgraph.Graph, source string) *Snapshot {
	snap := &Snapshot{
		Graph:    g,
		Source:   source,
		Version:  h.version.Add(1),
		LoadedAt: time.Now(),
	}
	h.current.Store(snap)
	h.logger.Info("curriculum activated",
		zap.String("source", source),
		zap.Int64("version", snap.Version),
		zap.Int("concepts", g.Len()),
	)
	return snap
}

// Load builds the curriculum at path and activates it on success.
// On failure the previously active graph, if any, stays in effect.
func (h *Holder) Load(path string) (*Snapshot, error) {
	g, err := LoadFile(path)
	if err != nil {
		fields := []zap.Field{zap.String("source", path), zap.Error(err)}
		if prev := h.current.Load(); prev != nil {
			fields = append(fields, zap.Int64("kept_version", prev.Version))
		}
		h.logger.Warn("curriculum rejected", fields...)
		return nil, err
	}
	return h.Swap(g, path), nil
}
