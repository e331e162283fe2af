package chunker

import (
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rzbill/replay/tensor"
)

// CellRef is a handle for one appended cell. It starts out buffered, holding
// the appended tensor, and becomes ready when its chunker finalizes the
// buffer into a chunk. The chunker's keep-alive ring owns the liveness of a
// ref: once evicted, the ref is expired and new items may not use it, but
// refs already held by pending items keep their chunk reachable.
type CellRef struct {
	owner       *Chunker
	episodeID   uint64
	episodeStep int

	mu       sync.Mutex
	buffered *tensor.Tensor
	chunk    *Chunk
	offset   int
	expired  bool
}

func newCellRef(owner *Chunker, t *tensor.Tensor, episodeID uint64, step int) *CellRef {
	return &CellRef{owner: owner, episodeID: episodeID, episodeStep: step, buffered: t}
}

// Chunker returns the chunker that produced the ref.
func (r *CellRef) Chunker() *Chunker { return r.owner }

// EpisodeID returns the episode the cell belongs to.
func (r *CellRef) EpisodeID() uint64 { return r.episodeID }

// EpisodeStep returns the step at which the cell was appended.
func (r *CellRef) EpisodeStep() int { return r.episodeStep }

// IsReady reports whether the cell's chunk has been finalized.
func (r *CellRef) IsReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chunk != nil
}

// Expired reports whether the keep-alive ring has evicted the cell.
func (r *CellRef) Expired() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expired
}

// ChunkKey returns the key of the finalized chunk holding the cell.
func (r *CellRef) ChunkKey() (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.chunk == nil {
		return 0, status.Error(codes.FailedPrecondition, "cell is not finalized into a chunk yet")
	}
	return r.chunk.Key, nil
}

// Offset returns the cell's row index inside its chunk.
func (r *CellRef) Offset() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.chunk == nil {
		return 0, status.Error(codes.FailedPrecondition, "cell is not finalized into a chunk yet")
	}
	return r.offset, nil
}

// Chunk returns the finalized chunk holding the cell, or nil while buffered.
// Valid even when the ref is expired, as long as the caller holds the ref.
func (r *CellRef) Chunk() *Chunk {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chunk
}

// Spec returns the dtype and shape of the cell's tensor.
func (r *CellRef) Spec() tensor.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buffered != nil {
		return tensor.Spec{DType: r.buffered.DType(), Shape: r.buffered.Shape()}
	}
	return r.chunk.rowSpec
}

// GetData returns a copy of the cell's tensor, from the buffer while
// pending or by unpacking the row from its finalized chunk.
func (r *CellRef) GetData() (*tensor.Tensor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buffered != nil {
		return tensor.New(r.buffered.DType(), r.buffered.Shape(), r.buffered.Data())
	}
	if r.chunk == nil {
		return nil, status.Error(codes.Internal, "cell has neither buffer nor chunk")
	}
	stacked, err := r.chunk.unpack()
	if err != nil {
		return nil, err
	}
	return stacked.Row(r.offset)
}

func (r *CellRef) finalize(c *Chunk, offset int) {
	r.mu.Lock()
	r.buffered = nil
	r.chunk = c
	r.offset = offset
	r.mu.Unlock()
}

func (r *CellRef) expire() {
	r.mu.Lock()
	r.expired = true
	r.mu.Unlock()
}
