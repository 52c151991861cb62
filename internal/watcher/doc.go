// Package watcher reports changes to the files of a single directory.
//
// Events are best-effort: bursts for one path are coalesced by a debounce
// window and callers should treat each event as "this path may have changed".
package watcher
