package replayv1

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the full gRPC service name.
const ServiceName = "replay.v1.ReplayService"

const insertStreamMethod = "/" + ServiceName + "/InsertStream"

// ReplayServiceClient is the client API for the ReplayService.
type ReplayServiceClient interface {
	// InsertStream opens a bidirectional stream of chunks and items. The
	// server answers with confirmations for items that requested one.
	InsertStream(ctx context.Context, opts ...grpc.CallOption) (ReplayService_InsertStreamClient, error)
}

type replayServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewReplayServiceClient constructs a client over an existing connection.
func NewReplayServiceClient(cc grpc.ClientConnInterface) ReplayServiceClient {
	return &replayServiceClient{cc: cc}
}

var insertStreamDesc = &grpc.StreamDesc{
	StreamName:    "InsertStream",
	ServerStreams: true,
	ClientStreams: true,
}

func (c *replayServiceClient) InsertStream(ctx context.Context, opts ...grpc.CallOption) (ReplayService_InsertStreamClient, error) {
	stream, err := c.cc.NewStream(ctx, insertStreamDesc, insertStreamMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &replayServiceInsertStreamClient{ClientStream: stream}, nil
}

// ReplayService_InsertStreamClient is the client side of the bidi stream.
type ReplayService_InsertStreamClient interface {
	Send(*InsertStreamRequest) error
	Recv() (*InsertStreamResponse, error)
	grpc.ClientStream
}

type replayServiceInsertStreamClient struct {
	grpc.ClientStream
}

func (x *replayServiceInsertStreamClient) Send(m *InsertStreamRequest) error {
	return x.ClientStream.SendMsg(m)
}

func (x *replayServiceInsertStreamClient) Recv() (*InsertStreamResponse, error) {
	m := new(InsertStreamResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ReplayServiceServer is the server API for the ReplayService.
type ReplayServiceServer interface {
	InsertStream(ReplayService_InsertStreamServer) error
}

// ReplayService_InsertStreamServer is the server side of the bidi stream.
type ReplayService_InsertStreamServer interface {
	Send(*InsertStreamResponse) error
	Recv() (*InsertStreamRequest, error)
	grpc.ServerStream
}

type replayServiceInsertStreamServer struct {
	grpc.ServerStream
}

func (x *replayServiceInsertStreamServer) Send(m *InsertStreamResponse) error {
	return x.ServerStream.SendMsg(m)
}

func (x *replayServiceInsertStreamServer) Recv() (*InsertStreamRequest, error) {
	m := new(InsertStreamRequest)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func insertStreamHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(ReplayServiceServer).InsertStream(&replayServiceInsertStreamServer{ServerStream: stream})
}

// ServiceDesc describes the ReplayService for registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReplayServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "InsertStream",
			Handler:       insertStreamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "replay/v1/replay.proto",
}

// RegisterReplayServiceServer registers the service implementation.
func RegisterReplayServiceServer(s grpc.ServiceRegistrar, srv ReplayServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
