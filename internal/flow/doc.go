// Package flow implements the trade-in dialogue on top of the conversation
// engine.
//
// Flow.Router returns the routing table for every state: the root menu, the
// item edit sub-flow, the owner's item display, candidate search with direct
// trade proposals, and the trade history. Handlers keep per-participant
// scratch data in the session, persist items through the store, and hand
// trade proposals to the trade engine. They never fail because a message could
// not be delivered; only storage errors are returned.
package flow
