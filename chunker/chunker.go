package chunker

import (
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rzbill/replay/pkg/keys"
	"github.com/rzbill/replay/tensor"
)

// Chunker slices one column's appended cells into chunks. Cells accumulate
// in a buffer until MaxChunkLength is reached or Flush is called, at which
// point they are stacked into a Chunk. All live refs sit in a keep-alive
// deque of size NumKeepAliveRefs; appending beyond that expires the oldest.
type Chunker struct {
	column int
	gen    *keys.Generator

	mu   sync.Mutex
	opts Options
	spec *tensor.Spec

	// refs holds every live ref, oldest first. The last numBuffered entries
	// are not yet finalized into a chunk.
	refs        []*CellRef
	numBuffered int

	lastEpisode uint64
	lastStep    int
	hasStep     bool
}

// New constructs a chunker for the given column after validating opts. The
// key generator is shared with the owning writer so chunk keys stay
// globally ordered.
func New(column int, opts Options, gen *keys.Generator) (*Chunker, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if gen == nil {
		gen = keys.NewGenerator()
	}
	return &Chunker{column: column, opts: opts, gen: gen}, nil
}

// Column returns the column index this chunker serves.
func (c *Chunker) Column() int { return c.column }

// Append adds one cell for the given episode and step. The step must be
// strictly greater than the last appended step of the same episode; a new
// episode may only start when the buffer is empty.
func (c *Chunker) Append(t *tensor.Tensor, episodeID uint64, step int) (*CellRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if episodeID != c.lastEpisode {
		if c.numBuffered > 0 {
			return nil, status.Error(codes.FailedPrecondition,
				"Chunker::Append called with new episode when buffer non empty.")
		}
		c.lastEpisode = episodeID
		c.hasStep = false
	}
	if c.hasStep && step <= c.lastStep {
		return nil, status.Error(codes.FailedPrecondition,
			"Chunker::Append called with an episode step which was not greater than already observed.")
	}

	if c.spec == nil {
		sp := tensor.Spec{DType: t.DType(), Shape: t.Shape()}
		c.spec = &sp
	} else if err := c.spec.Validate(t, c.column); err != nil {
		return nil, err
	}

	ref := newCellRef(c, t, episodeID, step)
	c.refs = append(c.refs, ref)
	c.numBuffered++
	c.lastStep = step
	c.hasStep = true
	c.evictLocked(c.opts.NumKeepAliveRefs)

	if c.numBuffered >= c.opts.MaxChunkLength {
		if err := c.flushLocked(); err != nil {
			return nil, err
		}
	}
	return ref, nil
}

// Flush finalizes the buffer into a chunk if it holds any cells.
func (c *Chunker) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

func (c *Chunker) flushLocked() error {
	if c.numBuffered == 0 {
		return nil
	}
	buffered := c.refs[len(c.refs)-c.numBuffered:]
	tensors := make([]*tensor.Tensor, len(buffered))
	for i, r := range buffered {
		tensors[i] = r.buffered
	}
	stacked, err := tensor.Stack(tensors)
	if err != nil {
		return err
	}

	first := buffered[0].episodeStep
	last := buffered[len(buffered)-1].episodeStep
	rng := SequenceRange{
		EpisodeID: buffered[0].episodeID,
		Start:     first,
		End:       last,
		Sparse:    last-first+1 != len(buffered),
	}
	chunk := newChunk(c.gen.Next(), rng, stacked, len(buffered))
	for i, r := range buffered {
		r.finalize(chunk, i)
	}
	c.numBuffered = 0
	return nil
}

// Reset drops all state: buffered cells are discarded, every live ref is
// expired, and the step watermark is cleared.
func (c *Chunker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.refs {
		r.expire()
	}
	c.refs = nil
	c.numBuffered = 0
	c.hasStep = false
}

// BufferLength returns the number of cells waiting to be chunked.
func (c *Chunker) BufferLength() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.numBuffered
}

// GetKeepKeys returns the distinct chunk keys still referenced by live
// refs, oldest first. Buffered cells have no chunk yet and contribute
// nothing.
func (c *Chunker) GetKeepKeys() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []uint64
	seen := make(map[uint64]struct{})
	for _, r := range c.refs {
		ch := r.Chunk()
		if ch == nil {
			continue
		}
		if _, ok := seen[ch.Key]; ok {
			continue
		}
		seen[ch.Key] = struct{}{}
		out = append(out, ch.Key)
	}
	return out
}

// ApplyConfig replaces the chunker's options. The buffer must be empty;
// shrinking the keep-alive size expires the oldest refs.
func (c *Chunker) ApplyConfig(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.numBuffered > 0 {
		return status.Error(codes.FailedPrecondition, "Flush must be called before ApplyConfig.")
	}
	c.opts = opts
	c.evictLocked(opts.NumKeepAliveRefs)
	return nil
}

func (c *Chunker) evictLocked(keep int) {
	for len(c.refs) > keep {
		c.refs[0].expire()
		c.refs = c.refs[1:]
	}
}
