package replay

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	replayv1 "github.com/rzbill/replay/api/replay/v1"
)

// fakeStream records every request and optionally confirms items as they
// arrive. Tests can break the stream with a chosen terminal status.
type fakeStream struct {
	grpc.ClientStream

	ctx         context.Context
	autoConfirm bool

	mu       sync.Mutex
	requests []*replayv1.InsertStreamRequest
	broken   error

	responses chan *replayv1.InsertStreamResponse
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeStream(ctx context.Context, autoConfirm bool) *fakeStream {
	return &fakeStream{
		ctx:         ctx,
		autoConfirm: autoConfirm,
		responses:   make(chan *replayv1.InsertStreamResponse, 64),
		done:        make(chan struct{}),
	}
}

func (s *fakeStream) Send(req *replayv1.InsertStreamRequest) error {
	s.mu.Lock()
	if s.broken != nil {
		s.mu.Unlock()
		return io.EOF
	}
	s.requests = append(s.requests, req)
	confirm := s.autoConfirm && req.Item != nil
	var key uint64
	if confirm {
		key = req.Item.Key
	}
	s.mu.Unlock()

	if confirm {
		s.responses <- &replayv1.InsertStreamResponse{Keys: []uint64{key}}
	}
	return nil
}

func (s *fakeStream) Recv() (*replayv1.InsertStreamResponse, error) {
	select {
	case resp := <-s.responses:
		return resp, nil
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return nil, s.broken
	case <-s.ctx.Done():
		return nil, status.FromContextError(s.ctx.Err()).Err()
	}
}

func (s *fakeStream) CloseSend() error { return nil }

func (s *fakeStream) Context() context.Context { return s.ctx }

// fail breaks the stream: Send returns io.EOF and Recv returns err.
func (s *fakeStream) fail(err error) {
	s.mu.Lock()
	s.broken = err
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.done) })
}

// confirm pushes a confirmation for the given item keys.
func (s *fakeStream) confirm(keys ...uint64) {
	s.responses <- &replayv1.InsertStreamResponse{Keys: keys}
}

func (s *fakeStream) numRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *fakeStream) request(i int) *replayv1.InsertStreamRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

// fakeStub hands out fakeStreams, one per InsertStream call.
type fakeStub struct {
	mu          sync.Mutex
	autoConfirm bool
	openErr     error
	streams     []*fakeStream
}

func (f *fakeStub) InsertStream(ctx context.Context, _ ...grpc.CallOption) (replayv1.ReplayService_InsertStreamClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	s := newFakeStream(ctx, f.autoConfirm)
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *fakeStub) numStreams() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams)
}

func (f *fakeStub) stream(i int) *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[i]
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func unavailableErr() error {
	return status.Error(codes.Unavailable, "connection reset")
}
