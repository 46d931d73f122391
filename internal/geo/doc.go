// Package geo defines the data model shared by the tracing engine and its
// providers: drainage-network segments, generic output features, bounding
// boxes, and trim boundaries.
//
// Segments are read-only inputs fetched per invocation. Collections built
// from them are plain slices, uniquely owned by the call that produced
// them; nothing in this package mutates a provider-returned segment.
package geo
