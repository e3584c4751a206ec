// Package watch rebuilds the documentation when project files change.
//
// A Watcher registers every directory below its roots with fsnotify,
// coalesces bursts of events with a quiet window and a maximum delay, and
// calls the rebuild function once per burst. Rebuilds never overlap:
// changes seen while one runs start exactly one follow-up.
package watch
