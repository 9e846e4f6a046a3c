// Package engine drives event delivery.
//
// The Engine owns the live identity set and two queues: pending, which
// receives tracked events, and in-flight, which holds the batch currently
// being sent. It is advanced by Tick and is not safe for concurrent use.
// Loop wraps an Engine with a ticker and a command mailbox so that other
// goroutines can reach it.
//
// STATES:
//
//	Idle              before Start
//	ResolvingDevice   waiting for the device resolver
//	ProcessingPending moving pending records into a batch
//	AwaitingSend      a probe or send is outstanding
//
// DELIVERY:
//
// A failed batch is spliced back to the front of pending and pending is
// persisted, so records are delivered at least once and in tracking order.
// After a failure the server is considered unavailable and no network call
// is made until the check interval has passed.
package engine
