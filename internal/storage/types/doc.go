// Package types defines the detector data model shared by all codecs.
//
// Key types:
//   - Event: one channel amplitude with an absolute timestamp
//   - Block: a time-bounded run of events (and, for protobuf data, frames)
//   - Point: one acquisition point, an ordered sequence of blocks
//   - Set: one experimental run, an ordered collection of points
//
// Events, frames and blocks are produced by forward-only iterators that own
// their byte source. An iterator must be closed, also when abandoned early;
// re-reading a point opens its envelope again.
package types
