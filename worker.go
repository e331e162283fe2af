package replay

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	replayv1 "github.com/rzbill/replay/api/replay/v1"
	"github.com/rzbill/replay/pkg/log"
)

// run is the writer's background worker. It keeps one insert stream open,
// streaming finalized chunks and ready items, and reconnects with backoff
// when the stream fails with a transient error. Any other terminal status
// latches onto the writer and surfaces from the next caller operation.
func (w *TrajectoryWriter) run(ctx context.Context) {
	defer w.wg.Done()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 0

	for ctx.Err() == nil {
		stream, err := w.stub.InsertStream(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if status.Code(err) == codes.Unavailable {
				w.log.Warn("insert stream unavailable, retrying", log.Err(err))
				if !sleepCtx(ctx, bo.NextBackOff()) {
					return
				}
				continue
			}
			w.latch(err)
			return
		}
		bo.Reset()

		err = w.runStream(stream)
		if ctx.Err() != nil {
			return
		}
		if retryable(err) {
			w.log.Warn("insert stream interrupted, reconnecting", log.Err(err))
			w.resetForRetry()
			if !sleepCtx(ctx, bo.NextBackOff()) {
				return
			}
			continue
		}
		if err != nil {
			w.latch(err)
		}
		return
	}
}

func retryable(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	return status.Code(err) == codes.Unavailable
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (w *TrajectoryWriter) runStream(stream replayv1.ReplayService_InsertStreamClient) error {
	w.mu.Lock()
	w.connFailed = false
	w.streamed = make(map[uint64]struct{})
	w.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error { return w.sendLoop(stream) })
	g.Go(func() error { return w.recvLoop(stream) })
	return g.Wait()
}

func (w *TrajectoryWriter) sendLoop(stream replayv1.ReplayService_InsertStreamClient) error {
	for {
		req, ok := w.nextRequest()
		if !ok {
			_ = stream.CloseSend()
			return nil
		}
		if err := stream.Send(req); err != nil {
			// Send surfaces io.EOF on a broken stream; the recv loop
			// returns the real status.
			return nil
		}
	}
}

// nextRequest blocks until there is something to put on the wire. It
// returns false when the writer closed, latched an error, or the current
// connection failed.
func (w *TrajectoryWriter) nextRequest() (*replayv1.InsertStreamRequest, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for {
		if w.closed || w.err != nil || w.connFailed {
			return nil, false
		}
		if req := w.nextRequestLocked(); req != nil {
			return req, true
		}
		w.cond.Wait()
	}
}

func (w *TrajectoryWriter) nextRequestLocked() *replayv1.InsertStreamRequest {
	// Finalized chunks referenced by unsent items go out eagerly, deduped
	// per connection.
	for _, it := range w.items {
		if it.sent {
			continue
		}
		for _, col := range it.columns {
			for _, ref := range col.Refs {
				ch := ref.Chunk()
				if ch == nil {
					continue
				}
				if _, ok := w.streamed[ch.Key]; ok {
					continue
				}
				w.streamed[ch.Key] = struct{}{}
				return &replayv1.InsertStreamRequest{Chunk: ch.Data}
			}
		}
	}

	// The first unsent item whose chunks are all on the wire.
next:
	for _, it := range w.items {
		if it.sent {
			continue
		}
		for _, col := range it.columns {
			for _, ref := range col.Refs {
				ch := ref.Chunk()
				if ch == nil {
					continue next
				}
				if _, ok := w.streamed[ch.Key]; !ok {
					continue next
				}
			}
		}
		it.sent = true
		return &replayv1.InsertStreamRequest{Item: w.buildItemLocked(it)}
	}
	return nil
}

func (w *TrajectoryWriter) buildItemLocked(it *pendingItem) *replayv1.ItemData {
	cols := make([]*replayv1.TrajectoryColumnData, len(it.columns))
	for i, col := range it.columns {
		cells := make([]*replayv1.CellData, len(col.Refs))
		for j, ref := range col.Refs {
			key, _ := ref.ChunkKey()
			off, _ := ref.Offset()
			cells[j] = &replayv1.CellData{ChunkKey: key, Offset: int32(off), Length: 1}
		}
		cols[i] = &replayv1.TrajectoryColumnData{Cells: cells, Squeeze: col.Squeeze}
	}
	return &replayv1.ItemData{
		Key:              it.key,
		Table:            it.table,
		Priority:         it.priority,
		Trajectory:       cols,
		KeepChunkKeys:    w.keepKeysLocked(),
		SendConfirmation: true,
	}
}

// keepKeysLocked returns the chunk keys the server should retain: every key
// a chunker still keeps alive, restricted to keys streamed on this
// connection.
func (w *TrajectoryWriter) keepKeysLocked() []uint64 {
	var keep []uint64
	for _, c := range w.chunkers {
		for _, k := range c.GetKeepKeys() {
			if _, ok := w.streamed[k]; ok {
				keep = append(keep, k)
			}
		}
	}
	return keep
}

func (w *TrajectoryWriter) recvLoop(stream replayv1.ReplayService_InsertStreamClient) error {
	for {
		resp, err := stream.Recv()
		if err != nil {
			w.mu.Lock()
			w.connFailed = true
			w.cond.Broadcast()
			w.mu.Unlock()
			return err
		}
		w.mu.Lock()
		for _, key := range resp.Keys {
			w.confirmLocked(key)
		}
		w.cond.Broadcast()
		w.mu.Unlock()
	}
}

func (w *TrajectoryWriter) confirmLocked(key uint64) {
	for i, it := range w.items {
		if it.key != key {
			continue
		}
		w.items = append(w.items[:i], w.items[i+1:]...)
		return
	}
	w.log.Warn("confirmation for unknown item", log.Uint64("key", key))
}

// resetForRetry returns sent-but-unconfirmed items to the unsent state and
// forgets which chunks the previous connection saw, so everything is
// re-streamed on the next connection.
func (w *TrajectoryWriter) resetForRetry() {
	w.mu.Lock()
	for _, it := range w.items {
		it.sent = false
	}
	w.streamed = make(map[uint64]struct{})
	w.mu.Unlock()
}

func (w *TrajectoryWriter) latch(err error) {
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.cond.Broadcast()
	w.mu.Unlock()
	w.log.Error("insert stream failed permanently", log.Err(err))
}
