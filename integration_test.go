package replay

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/snappy"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	replayv1 "github.com/rzbill/replay/api/replay/v1"
	"github.com/rzbill/replay/chunker"
	"github.com/rzbill/replay/tensor"
)

// inMemoryServer accepts the insert stream, records everything, and
// confirms items immediately.
type inMemoryServer struct {
	mu     sync.Mutex
	chunks []*replayv1.ChunkData
	items  []*replayv1.ItemData
}

func (s *inMemoryServer) InsertStream(stream replayv1.ReplayService_InsertStreamServer) error {
	for {
		req, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		s.mu.Lock()
		if req.Chunk != nil {
			s.chunks = append(s.chunks, req.Chunk)
		}
		if req.Item != nil {
			s.items = append(s.items, req.Item)
		}
		s.mu.Unlock()
		if req.Item != nil && req.Item.SendConfirmation {
			if err := stream.Send(&replayv1.InsertStreamResponse{Keys: []uint64{req.Item.Key}}); err != nil {
				return err
			}
		}
	}
}

func (s *inMemoryServer) snapshot() ([]*replayv1.ChunkData, []*replayv1.ItemData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*replayv1.ChunkData(nil), s.chunks...), append([]*replayv1.ItemData(nil), s.items...)
}

func startBufconnServer(t *testing.T) (*inMemoryServer, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	impl := &inMemoryServer{}
	replayv1.RegisterReplayServiceServer(srv, impl)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return impl, conn
}

func TestEndToEndOverBufconn(t *testing.T) {
	impl, conn := startBufconnServer(t)

	client := NewClient(conn)
	w, err := client.NewTrajectoryWriter(TrajectoryWriterOptions{
		ChunkerOptions: chunker.Options{MaxChunkLength: 2, NumKeepAliveRefs: 4},
	})
	if err != nil {
		t.Fatalf("NewTrajectoryWriter: %v", err)
	}
	defer w.Close()

	ctx := context.Background()
	a, err := w.Append(ctx, []*tensor.Tensor{tensor.NewInt32Scalar(7)})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	b, err := w.Append(ctx, []*tensor.Tensor{tensor.NewInt32Scalar(9)})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := w.CreateItem(ctx, "experience", 2.0, []TrajectoryColumn{
		{Refs: []*chunker.CellRef{a[0], b[0]}},
	}); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	fctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := w.Flush(fctx, 0); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	chunks, items := impl.snapshot()
	if len(chunks) != 1 || len(items) != 1 {
		t.Fatalf("server saw %d chunks and %d items", len(chunks), len(items))
	}

	ch := chunks[0]
	if ch.Range.Start != 0 || ch.Range.End != 1 || ch.Sparse {
		t.Fatalf("chunk range = %+v sparse=%v", ch.Range, ch.Sparse)
	}
	if !ch.Data.SnappyCompressed {
		t.Fatalf("chunk payload not compressed")
	}
	raw, err := snappy.Decode(nil, ch.Data.Data)
	if err != nil {
		t.Fatalf("snappy.Decode: %v", err)
	}
	if len(raw) != 8 || binary.LittleEndian.Uint32(raw) != 7 || binary.LittleEndian.Uint32(raw[4:]) != 9 {
		t.Fatalf("chunk payload = %v", raw)
	}

	item := items[0]
	if item.Table != "experience" || item.Priority != 2.0 {
		t.Fatalf("item = %+v", item)
	}
	cells := item.Trajectory[0].Cells
	if len(cells) != 2 || cells[0].ChunkKey != ch.ChunkKey || cells[0].Offset != 0 || cells[1].Offset != 1 {
		t.Fatalf("cells = %+v", cells)
	}

	if err := w.EndEpisode(fctx, true); err != nil {
		t.Fatalf("EndEpisode: %v", err)
	}
}
