// Package stream reassembles provider stream chunks into host response parts.
//
// A [Reassembler] owns all per-request state: tool call argument buffers
// keyed by the chunk-level index, the open reasoning segment flag, and
// whether any text or tool call was reported. It is not safe for
// concurrent use; every in-flight request gets its own instance.
//
// [Run] drives a Reassembler from a transport's chunk channel and writes
// each part to a [Sink] as soon as it is produced.
package stream
