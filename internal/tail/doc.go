// Package tail implements the live tail broadcast engine.
//
// A Registry maps file names to the viewers following them, each with its own
// cursor. A Dispatcher turns a change notification into per-viewer deltas read
// from a single snapshot of the file. The Engine serializes registration,
// removal and change handling onto one goroutine.
package tail
