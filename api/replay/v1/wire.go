// Package replayv1 contains the wire messages and gRPC stubs for the
// replay.v1.ReplayService InsertStream RPC.
//
// The message structs are hand-maintained legacy protobuf messages (struct
// tags plus the MessageV1 method set); the gRPC proto codec adapts them via
// protoadapt. The schema lives in proto/replay/v1/replay.proto.
// TODO: generate from proto once protoc is wired into the build.
package replayv1

import (
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/protoadapt"
)

// Dtype codes carried in TensorData. They mirror tensor.DType.
const (
	DtypeInvalid int32 = iota
	DtypeInt8
	DtypeInt16
	DtypeInt32
	DtypeInt64
	DtypeUint8
	DtypeUint64
	DtypeFloat32
	DtypeFloat64
	DtypeBool
	DtypeString
)

// TensorData is a serialized dense tensor.
type TensorData struct {
	Dtype            int32   `protobuf:"varint,1,opt,name=dtype,proto3" json:"dtype,omitempty"`
	Shape            []int64 `protobuf:"varint,2,rep,packed,name=shape,proto3" json:"shape,omitempty"`
	Data             []byte  `protobuf:"bytes,3,opt,name=data,proto3" json:"data,omitempty"`
	SnappyCompressed bool    `protobuf:"varint,4,opt,name=snappy_compressed,json=snappyCompressed,proto3" json:"snappy_compressed,omitempty"`
}

func (m *TensorData) Reset()         { *m = TensorData{} }
func (m *TensorData) String() string { return messageString(m) }
func (*TensorData) ProtoMessage()    {}

// SequenceRange identifies the episode steps covered by a chunk.
type SequenceRange struct {
	EpisodeId uint64 `protobuf:"varint,1,opt,name=episode_id,json=episodeId,proto3" json:"episode_id,omitempty"`
	Start     int64  `protobuf:"varint,2,opt,name=start,proto3" json:"start,omitempty"`
	End       int64  `protobuf:"varint,3,opt,name=end,proto3" json:"end,omitempty"`
}

func (m *SequenceRange) Reset()         { *m = SequenceRange{} }
func (m *SequenceRange) String() string { return messageString(m) }
func (*SequenceRange) ProtoMessage()    {}

// ChunkData is one finalized column chunk.
type ChunkData struct {
	ChunkKey uint64         `protobuf:"varint,1,opt,name=chunk_key,json=chunkKey,proto3" json:"chunk_key,omitempty"`
	Range    *SequenceRange `protobuf:"bytes,2,opt,name=range,proto3" json:"range,omitempty"`
	Data     *TensorData    `protobuf:"bytes,3,opt,name=data,proto3" json:"data,omitempty"`
	// Sparse is set when the chunk does not contain a cell for every step in
	// its range.
	Sparse bool `protobuf:"varint,4,opt,name=sparse,proto3" json:"sparse,omitempty"`
}

func (m *ChunkData) Reset()         { *m = ChunkData{} }
func (m *ChunkData) String() string { return messageString(m) }
func (*ChunkData) ProtoMessage()    {}

// CellData addresses one row inside a chunk.
type CellData struct {
	ChunkKey uint64 `protobuf:"varint,1,opt,name=chunk_key,json=chunkKey,proto3" json:"chunk_key,omitempty"`
	Offset   int32  `protobuf:"varint,2,opt,name=offset,proto3" json:"offset,omitempty"`
	Length   int32  `protobuf:"varint,3,opt,name=length,proto3" json:"length,omitempty"`
}

func (m *CellData) Reset()         { *m = CellData{} }
func (m *CellData) String() string { return messageString(m) }
func (*CellData) ProtoMessage()    {}

// TrajectoryColumnData is one column of an item's trajectory.
type TrajectoryColumnData struct {
	Cells   []*CellData `protobuf:"bytes,1,rep,name=cells,proto3" json:"cells,omitempty"`
	Squeeze bool        `protobuf:"varint,2,opt,name=squeeze,proto3" json:"squeeze,omitempty"`
}

func (m *TrajectoryColumnData) Reset()         { *m = TrajectoryColumnData{} }
func (m *TrajectoryColumnData) String() string { return messageString(m) }
func (*TrajectoryColumnData) ProtoMessage()    {}

// ItemData is one prioritized item referencing previously streamed chunks.
type ItemData struct {
	Key        uint64                  `protobuf:"varint,1,opt,name=key,proto3" json:"key,omitempty"`
	Table      string                  `protobuf:"bytes,2,opt,name=table,proto3" json:"table,omitempty"`
	Priority   float64                 `protobuf:"fixed64,3,opt,name=priority,proto3" json:"priority,omitempty"`
	Trajectory []*TrajectoryColumnData `protobuf:"bytes,4,rep,name=trajectory,proto3" json:"trajectory,omitempty"`
	// KeepChunkKeys lists the streamed chunk keys the server should retain
	// after inserting this item.
	KeepChunkKeys    []uint64 `protobuf:"varint,5,rep,packed,name=keep_chunk_keys,json=keepChunkKeys,proto3" json:"keep_chunk_keys,omitempty"`
	SendConfirmation bool     `protobuf:"varint,6,opt,name=send_confirmation,json=sendConfirmation,proto3" json:"send_confirmation,omitempty"`
}

func (m *ItemData) Reset()         { *m = ItemData{} }
func (m *ItemData) String() string { return messageString(m) }
func (*ItemData) ProtoMessage()    {}

// InsertStreamRequest carries exactly one of Chunk or Item.
type InsertStreamRequest struct {
	Chunk *ChunkData `protobuf:"bytes,1,opt,name=chunk,proto3" json:"chunk,omitempty"`
	Item  *ItemData  `protobuf:"bytes,2,opt,name=item,proto3" json:"item,omitempty"`
}

func (m *InsertStreamRequest) Reset()         { *m = InsertStreamRequest{} }
func (m *InsertStreamRequest) String() string { return messageString(m) }
func (*InsertStreamRequest) ProtoMessage()    {}

// InsertStreamResponse confirms inserted item keys.
type InsertStreamResponse struct {
	Keys []uint64 `protobuf:"varint,1,rep,packed,name=keys,proto3" json:"keys,omitempty"`
}

func (m *InsertStreamResponse) Reset()         { *m = InsertStreamResponse{} }
func (m *InsertStreamResponse) String() string { return messageString(m) }
func (*InsertStreamResponse) ProtoMessage()    {}

func messageString(m protoadapt.MessageV1) string {
	return prototext.Format(protoadapt.MessageV2Of(m))
}
