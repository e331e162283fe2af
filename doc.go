// Package replay is the client library for streaming experience
// trajectories to a replay service.
//
// # Overview
//
// A TrajectoryWriter accepts per-step columnar tensor data via Append. Each
// column is sliced into chunks by its own chunker; Append returns CellRefs
// addressing the individual cells. CreateItem registers a prioritized item
// whose trajectory references any cells still kept alive, and a background
// worker streams chunks and items over a single bidirectional gRPC stream,
// reconnecting on transient failures.
//
// Basic usage:
//
//	client, err := replay.Dial("localhost:8090")
//	...
//	w, err := client.NewTrajectoryWriter(replay.TrajectoryWriterOptions{
//	    ChunkerOptions: chunker.Options{MaxChunkLength: 2, NumKeepAliveRefs: 16},
//	})
//	...
//	for step := 0; step < n; step++ {
//	    refs, err := w.Append(ctx, []*tensor.Tensor{obs, action, reward})
//	    ...
//	}
//	last, _ := w.HistorySlice(0, n-2, n)
//	err = w.CreateItem(ctx, "experience", 1.0, []replay.TrajectoryColumn{{Refs: last}})
//	err = w.Flush(ctx, 0)
//	err = w.EndEpisode(ctx, true)
//	err = w.Close()
//
// Items only become visible to samplers once confirmed by the server; Flush
// blocks until pending items are confirmed, EndEpisode additionally starts
// a fresh episode.
package replay
