// Package trace implements the network-tracing engine: resolving a seed
// segment from a location input, walking the downstream path chain to the
// outlet, trimming overlap at chain hand-offs, and planning provider
// ordering.
//
// Everything here is single-threaded, synchronous, and request-scoped.
// One Trace call issues at most the locator's bounded seed queries plus
// exactly one bulk member query; no state is shared between invocations.
package trace
