package replay

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	replayv1 "github.com/rzbill/replay/api/replay/v1"
	"github.com/rzbill/replay/pkg/log"
)

// Client connects to a replay service and hands out trajectory writers.
type Client struct {
	conn     *grpc.ClientConn
	ownsConn bool
	stub     replayv1.ReplayServiceClient
	log      log.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger used by the client and its writers.
func WithLogger(l log.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// Dial connects to the replay service at target. The connection uses
// insecure transport credentials; callers needing TLS should dial
// themselves and use NewClient.
func Dial(target string, opts ...ClientOption) (*Client, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	c := newClient(conn, opts...)
	c.ownsConn = true
	return c, nil
}

// NewClient wraps an existing connection. The caller keeps ownership of
// the connection.
func NewClient(conn *grpc.ClientConn, opts ...ClientOption) *Client {
	return newClient(conn, opts...)
}

func newClient(conn *grpc.ClientConn, opts ...ClientOption) *Client {
	c := &Client{conn: conn, stub: replayv1.NewReplayServiceClient(conn), log: log.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewTrajectoryWriter creates a writer streaming to this client's service.
func (c *Client) NewTrajectoryWriter(opts TrajectoryWriterOptions) (*TrajectoryWriter, error) {
	if opts.Logger == nil {
		opts.Logger = c.log
	}
	return newTrajectoryWriter(c.stub, opts)
}

// Close releases the client. Connections passed in via NewClient are left
// open.
func (c *Client) Close() error {
	if c.ownsConn && c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
