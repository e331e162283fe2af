// Package keys provides 64-bit, time-ordered identifiers for chunks,
// items, and episodes.
//
// # Format
//
// A key packs [44 bits ms_timestamp][20 bits sequence] into a uint64, so
// numeric comparison preserves chronological order and keys generated
// within the same millisecond remain strictly increasing by sequence.
//
// # Monotonicity
//
// The Generator ensures per-process monotonicity:
//   - If the system clock regresses, it pins to the last seen millisecond and
//     increments the sequence to avoid going backwards.
//   - If the sequence would overflow within a millisecond, it waits for the
//     next millisecond before emitting the next key.
//
// Usage
//
//	g := keys.NewGenerator()
//	k := g.Next()
package keys
