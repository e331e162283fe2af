package chunker

import (
	"github.com/klauspost/compress/snappy"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	replayv1 "github.com/rzbill/replay/api/replay/v1"
	"github.com/rzbill/replay/tensor"
)

// SequenceRange identifies the episode steps a chunk covers.
type SequenceRange struct {
	EpisodeID uint64
	Start     int
	End       int
	// Sparse is set when the chunk holds fewer cells than steps in
	// [Start, End].
	Sparse bool
}

// Chunk is a finalized batch of cells for one column, ready for streaming.
type Chunk struct {
	Key   uint64
	Range SequenceRange
	Data  *replayv1.ChunkData

	rowSpec tensor.Spec
	numRows int
}

// NumRows returns the number of cells packed into the chunk.
func (c *Chunk) NumRows() int { return c.numRows }

func newChunk(key uint64, rng SequenceRange, stacked *tensor.Tensor, numRows int) *Chunk {
	data := stacked.Data()
	compressed := snappy.Encode(nil, data)
	wire := &replayv1.ChunkData{
		ChunkKey: key,
		Range: &replayv1.SequenceRange{
			EpisodeId: rng.EpisodeID,
			Start:     int64(rng.Start),
			End:       int64(rng.End),
		},
		Data: &replayv1.TensorData{
			Dtype:            dtypeCode(stacked.DType()),
			Shape:            stacked.Shape(),
			Data:             compressed,
			SnappyCompressed: true,
		},
		Sparse: rng.Sparse,
	}
	rowShape := stacked.Shape()[1:]
	return &Chunk{
		Key:     key,
		Range:   rng,
		Data:    wire,
		rowSpec: tensor.Spec{DType: stacked.DType(), Shape: rowShape},
		numRows: numRows,
	}
}

// unpack rebuilds the stacked tensor from the wire payload.
func (c *Chunk) unpack() (*tensor.Tensor, error) {
	td := c.Data.Data
	if td == nil {
		return nil, status.Error(codes.Internal, "chunk has no tensor payload")
	}
	raw := td.Data
	if td.SnappyCompressed {
		var err error
		raw, err = snappy.Decode(nil, td.Data)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "corrupt chunk payload: %v", err)
		}
	}
	return tensor.New(dtypeFromCode(td.Dtype), td.Shape, raw)
}

func dtypeCode(d tensor.DType) int32 {
	switch d {
	case tensor.Int8:
		return replayv1.DtypeInt8
	case tensor.Int16:
		return replayv1.DtypeInt16
	case tensor.Int32:
		return replayv1.DtypeInt32
	case tensor.Int64:
		return replayv1.DtypeInt64
	case tensor.Uint8:
		return replayv1.DtypeUint8
	case tensor.Uint64:
		return replayv1.DtypeUint64
	case tensor.Float32:
		return replayv1.DtypeFloat32
	case tensor.Float64:
		return replayv1.DtypeFloat64
	case tensor.Bool:
		return replayv1.DtypeBool
	case tensor.String:
		return replayv1.DtypeString
	}
	return replayv1.DtypeInvalid
}

func dtypeFromCode(code int32) tensor.DType {
	switch code {
	case replayv1.DtypeInt8:
		return tensor.Int8
	case replayv1.DtypeInt16:
		return tensor.Int16
	case replayv1.DtypeInt32:
		return tensor.Int32
	case replayv1.DtypeInt64:
		return tensor.Int64
	case replayv1.DtypeUint8:
		return tensor.Uint8
	case replayv1.DtypeUint64:
		return tensor.Uint64
	case replayv1.DtypeFloat32:
		return tensor.Float32
	case replayv1.DtypeFloat64:
		return tensor.Float64
	case replayv1.DtypeBool:
		return tensor.Bool
	case replayv1.DtypeString:
		return tensor.String
	}
	return tensor.Invalid
}
