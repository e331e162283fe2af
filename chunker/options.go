package chunker

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Options controls how a column chunker slices appended cells into chunks
// and how long finalized cells stay referencable.
type Options struct {
	// MaxChunkLength is the number of cells a chunk holds before it is
	// automatically finalized.
	MaxChunkLength int
	// NumKeepAliveRefs is the size of the keep-alive ring. Cells older than
	// this are expired and can no longer be referenced by new items.
	NumKeepAliveRefs int
}

// Validate checks the option invariants.
func (o Options) Validate() error {
	if o.MaxChunkLength <= 0 {
		return status.Errorf(codes.InvalidArgument,
			"max_chunk_length must be > 0 but got %d.", o.MaxChunkLength)
	}
	if o.NumKeepAliveRefs <= 0 {
		return status.Errorf(codes.InvalidArgument,
			"num_keep_alive_refs must be > 0 but got %d.", o.NumKeepAliveRefs)
	}
	if o.NumKeepAliveRefs < o.MaxChunkLength {
		return status.Errorf(codes.InvalidArgument,
			"num_keep_alive_refs (%d) must be >= max_chunk_length (%d).",
			o.NumKeepAliveRefs, o.MaxChunkLength)
	}
	return nil
}
