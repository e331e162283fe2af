package replay

import (
	"context"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	replayv1 "github.com/rzbill/replay/api/replay/v1"
	"github.com/rzbill/replay/chunker"
	"github.com/rzbill/replay/pkg/keys"
	"github.com/rzbill/replay/pkg/log"
	"github.com/rzbill/replay/tensor"
)

// TrajectoryWriterOptions configures a TrajectoryWriter.
type TrajectoryWriterOptions struct {
	// ChunkerOptions is the default configuration for every column. Use
	// ConfigureChunker for per-column overrides.
	ChunkerOptions chunker.Options
	// Logger defaults to the client's logger, or a nop logger.
	Logger log.Logger
}

// Validate checks the option invariants.
func (o TrajectoryWriterOptions) Validate() error {
	return o.ChunkerOptions.Validate()
}

// TrajectoryColumn selects a set of cells forming one column of an item's
// trajectory. With Squeeze set the column must hold exactly one cell and
// the sampled tensor drops its leading time dim.
type TrajectoryColumn struct {
	Refs    []*chunker.CellRef
	Squeeze bool
}

type pendingItem struct {
	key      uint64
	table    string
	priority float64
	columns  []TrajectoryColumn

	// sent is true while the item is on the wire awaiting confirmation on
	// the current connection.
	sent bool
}

// TrajectoryWriter appends columnar step data and creates prioritized items
// referencing slices of recent history. A background worker streams chunks
// and items to the service; writers are safe for concurrent use.
type TrajectoryWriter struct {
	opts TrajectoryWriterOptions
	stub replayv1.ReplayServiceClient
	log  log.Logger
	gen  *keys.Generator

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	cond *sync.Cond

	chunkers       []*chunker.Chunker
	pendingConfigs map[int]chunker.Options

	episodeID   uint64
	episodeStep int
	stepRefs    map[int]*chunker.CellRef

	history    [][]*chunker.CellRef
	historyLen int

	items []*pendingItem

	// per-connection state shared with the worker
	streamed   map[uint64]struct{}
	connFailed bool

	err    error
	closed bool
}

func newTrajectoryWriter(stub replayv1.ReplayServiceClient, opts TrajectoryWriterOptions) (*TrajectoryWriter, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	w := &TrajectoryWriter{
		opts:           opts,
		stub:           stub,
		log:            opts.Logger.WithComponent("trajectory-writer"),
		gen:            keys.NewGenerator(),
		pendingConfigs: make(map[int]chunker.Options),
		stepRefs:       make(map[int]*chunker.CellRef),
		streamed:       make(map[uint64]struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	w.episodeID = w.gen.Next()

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go w.run(ctx)
	return w, nil
}

func (w *TrajectoryWriter) checkUsableLocked() error {
	if w.closed {
		return status.Error(codes.FailedPrecondition, "writer is closed")
	}
	return w.err
}

func (w *TrajectoryWriter) ensureColumnLocked(column int) error {
	for len(w.chunkers) <= column {
		col := len(w.chunkers)
		opts := w.opts.ChunkerOptions
		if pc, ok := w.pendingConfigs[col]; ok {
			opts = pc
			delete(w.pendingConfigs, col)
		}
		ck, err := chunker.New(col, opts, w.gen)
		if err != nil {
			return err
		}
		w.chunkers = append(w.chunkers, ck)
		w.history = append(w.history, make([]*chunker.CellRef, w.historyLen))
	}
	return nil
}

// Append writes one step of data, one tensor per column, and advances the
// episode step. Nil entries mean the column has no value this step. The
// returned slice is aligned with data, nil where data was nil. New columns
// may appear over time; the column set never shrinks.
func (w *TrajectoryWriter) Append(ctx context.Context, data []*tensor.Tensor) ([]*chunker.CellRef, error) {
	return w.append(ctx, data, true)
}

// AppendPartial writes a subset of the active step's columns without
// advancing the step. The remaining columns can be filled in by later
// AppendPartial calls or a final Append. A column may only be written once
// per step.
func (w *TrajectoryWriter) AppendPartial(ctx context.Context, data []*tensor.Tensor) ([]*chunker.CellRef, error) {
	return w.append(ctx, data, false)
}

func (w *TrajectoryWriter) append(_ context.Context, data []*tensor.Tensor, advance bool) ([]*chunker.CellRef, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkUsableLocked(); err != nil {
		return nil, err
	}

	refs := make([]*chunker.CellRef, len(data))
	for i, t := range data {
		if t == nil {
			continue
		}
		if err := w.ensureColumnLocked(i); err != nil {
			return nil, err
		}
		if _, ok := w.stepRefs[i]; ok {
			return nil, status.Errorf(codes.InvalidArgument,
				"Append called with tensor for column %d which was already written in the active step.", i)
		}
		ref, err := w.chunkers[i].Append(t, w.episodeID, w.episodeStep)
		if err != nil {
			// Earlier columns of this call stay written; the step does not
			// advance.
			w.cond.Broadcast()
			return nil, err
		}
		w.stepRefs[i] = ref
		refs[i] = ref
	}

	if advance {
		for c := range w.chunkers {
			w.history[c] = append(w.history[c], w.stepRefs[c])
		}
		w.historyLen++
		w.stepRefs = make(map[int]*chunker.CellRef)
		w.episodeStep++
	}
	w.cond.Broadcast()
	return refs, nil
}

// ConfigureChunker overrides the chunker options for one column. For
// columns that do not exist yet the config is applied when the column first
// appears; existing columns must have an empty buffer.
func (w *TrajectoryWriter) ConfigureChunker(column int, opts chunker.Options) error {
	if column < 0 {
		return status.Errorf(codes.InvalidArgument, "column must be >= 0 but got %d", column)
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkUsableLocked(); err != nil {
		return err
	}
	if column < len(w.chunkers) {
		return w.chunkers[column].ApplyConfig(opts)
	}
	w.pendingConfigs[column] = opts
	return nil
}

// CreateItem registers a prioritized item for the given table, built from
// cells of the current episode. The item is streamed in the background once
// all its chunks are finalized.
func (w *TrajectoryWriter) CreateItem(_ context.Context, table string, priority float64, trajectory []TrajectoryColumn) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkUsableLocked(); err != nil {
		return err
	}
	if len(trajectory) == 0 {
		return status.Error(codes.InvalidArgument, "trajectory must not be empty.")
	}
	for i, col := range trajectory {
		if err := validateColumn(i, col, w.episodeID); err != nil {
			return err
		}
	}

	item := &pendingItem{
		key:      w.gen.Next(),
		table:    table,
		priority: priority,
		columns:  make([]TrajectoryColumn, len(trajectory)),
	}
	for i, col := range trajectory {
		item.columns[i] = TrajectoryColumn{
			Refs:    append([]*chunker.CellRef(nil), col.Refs...),
			Squeeze: col.Squeeze,
		}
	}
	w.items = append(w.items, item)
	w.cond.Broadcast()
	return nil
}

func validateColumn(i int, col TrajectoryColumn, episodeID uint64) error {
	if len(col.Refs) == 0 {
		return status.Error(codes.InvalidArgument, "trajectory must not be empty.")
	}
	if col.Squeeze && len(col.Refs) != 1 {
		return status.Errorf(codes.InvalidArgument,
			"Error in column %d: TrajectoryColumn must contain exactly one row when squeeze is set but got %d.",
			i, len(col.Refs))
	}
	first := col.Refs[0].Spec()
	for j, ref := range col.Refs {
		if ref.Expired() {
			return status.Errorf(codes.InvalidArgument,
				"Error in column %d: Column contains expired CellRef.", i)
		}
		if ref.EpisodeID() != episodeID {
			return status.Errorf(codes.InvalidArgument,
				"Error in column %d: Column contains CellRef from another episode.", i)
		}
		sp := ref.Spec()
		if sp.DType != first.DType {
			return status.Errorf(codes.InvalidArgument,
				"Error in column %d: Column references tensors with different dtypes: %s (index 0) != %s (index %d).",
				i, first.DType, sp.DType, j)
		}
		if !sp.Shape.Compatible(first.Shape) {
			return status.Errorf(codes.InvalidArgument,
				"Error in column %d: Column references tensors with incompatible shapes: %s (index 0) not compatible with %s (index %d).",
				i, first.Shape, sp.Shape, j)
		}
	}
	return nil
}

// Flush blocks until at most ignoreLastNumItems items remain pending.
// Chunkers holding buffered cells needed by the awaited items are finalized
// first, so short trailing chunks are cut rather than waited on.
func (w *TrajectoryWriter) Flush(ctx context.Context, ignoreLastNumItems int) error {
	if ignoreLastNumItems < 0 {
		return status.Errorf(codes.InvalidArgument,
			"ignore_last_num_items must be >= 0 but got %d", ignoreLastNumItems)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkUsableLocked(); err != nil {
		return err
	}

	await := len(w.items) - ignoreLastNumItems
	if await < 0 {
		await = 0
	}
	for _, it := range w.items[:await] {
		if err := flushItemChunkers(it); err != nil {
			return err
		}
	}
	w.cond.Broadcast()
	return w.waitForPendingLocked(ctx, ignoreLastNumItems)
}

func flushItemChunkers(it *pendingItem) error {
	for _, col := range it.columns {
		for _, ref := range col.Refs {
			if ref.IsReady() {
				continue
			}
			if err := ref.Chunker().Flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *TrajectoryWriter) waitForPendingLocked(ctx context.Context, allowed int) error {
	stop := context.AfterFunc(ctx, w.cond.Broadcast)
	defer stop()

	for len(w.items) > allowed && w.err == nil && !w.closed && ctx.Err() == nil {
		w.cond.Wait()
	}
	if w.err != nil {
		return w.err
	}
	if w.closed {
		return status.Error(codes.FailedPrecondition, "writer is closed")
	}
	if ctx.Err() != nil && len(w.items) > allowed {
		unsent, inflight := 0, 0
		for _, it := range w.items {
			if it.sent {
				inflight++
			} else {
				unsent++
			}
		}
		return status.Errorf(codes.DeadlineExceeded,
			"Timeout exceeded with %d items waiting to be written and %d items awaiting confirmation.",
			unsent, inflight)
	}
	return nil
}

// EndEpisode flushes all columns, waits for every pending item, and starts
// a fresh episode. The episode is re-minted and the step reset even when
// the wait times out. With clearBuffers set, every chunker is reset and the
// column history dropped.
func (w *TrajectoryWriter) EndEpisode(ctx context.Context, clearBuffers bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkUsableLocked(); err != nil {
		return err
	}
	for _, c := range w.chunkers {
		if err := c.Flush(); err != nil {
			return err
		}
	}
	w.cond.Broadcast()
	waitErr := w.waitForPendingLocked(ctx, 0)

	w.episodeID = w.gen.Next()
	w.episodeStep = 0
	w.stepRefs = make(map[int]*chunker.CellRef)
	if clearBuffers {
		for _, c := range w.chunkers {
			c.Reset()
		}
		for i := range w.history {
			w.history[i] = nil
		}
		w.historyLen = 0
	}
	return waitErr
}

// Close stops the background worker and abandons any unsent items. The
// writer cannot be used afterwards; call Flush first to drain pending work.
func (w *TrajectoryWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.cond.Broadcast()
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
	return nil
}

// Episode returns the current episode id and step.
func (w *TrajectoryWriter) Episode() (uint64, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.episodeID, w.episodeStep
}

// NumColumns returns the number of columns seen so far.
func (w *TrajectoryWriter) NumColumns() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.chunkers)
}

// NumPendingItems returns the number of items not yet confirmed.
func (w *TrajectoryWriter) NumPendingItems() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}

// History returns the column's refs for every completed step since the
// writer was created or last ended an episode with clearBuffers set,
// nil-padded for steps where the column had no value. EndEpisode without
// clearBuffers keeps the earlier episode's steps in the history.
func (w *TrajectoryWriter) History(column int) ([]*chunker.CellRef, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if column < 0 || column >= len(w.history) {
		return nil, status.Errorf(codes.InvalidArgument, "column %d does not exist", column)
	}
	return append([]*chunker.CellRef(nil), w.history[column]...), nil
}

// HistorySlice returns History(column)[from:to].
func (w *TrajectoryWriter) HistorySlice(column, from, to int) ([]*chunker.CellRef, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if column < 0 || column >= len(w.history) {
		return nil, status.Errorf(codes.InvalidArgument, "column %d does not exist", column)
	}
	h := w.history[column]
	if from < 0 || to > len(h) || from > to {
		return nil, status.Errorf(codes.InvalidArgument,
			"history slice [%d:%d] out of range for %d steps", from, to, len(h))
	}
	return append([]*chunker.CellRef(nil), h[from:to]...), nil
}
