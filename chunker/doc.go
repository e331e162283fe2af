// Package chunker turns a column's stream of appended cells into batched,
// snappy-compressed chunks ready for the insert stream.
//
// # Model
//
// Each column of a trajectory writer owns one Chunker. Appending a cell
// returns a CellRef immediately; the cell's data lives in the chunker's
// buffer until the buffer reaches Options.MaxChunkLength (or Flush is
// called), when the buffered cells are stacked into a single Chunk with a
// fresh key. The ref then points at its row inside that chunk.
//
// # Keep-alive
//
// A chunker keeps the newest Options.NumKeepAliveRefs refs alive. Older
// refs are expired: items created afterwards may not reference them. A
// pending item that already holds a ref keeps the underlying chunk
// reachable regardless of expiry.
//
// # Episodes
//
// Steps within an episode must strictly increase. Starting a new episode
// requires an empty buffer, so callers flush (or let the writer do so)
// before crossing an episode boundary.
package chunker
