// Package bridge provides synchronous request-response over a one-way,
// fire-and-forget message transport.
//
// The transport delivers requests and replies as independent, decorrelated
// events. The bridge maps each blocking Forward call to an outbound chat
// message, parks the caller on its own result slot, and resolves the right
// caller when a reply shows up on the shared inbound stream.
//
// Two matching policies exist:
//   - MatchCorrelationID: replies carry the original correlation identifier
//   - MatchFIFO: replies are matched to the oldest outstanding request. This
//     is only correct when there is exactly one remote partner and it answers
//     strictly in request order.
//
// Basic usage:
//
//	b, err := bridge.NewSyncAsyncBridge(publisher, targetAddress)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close()
//
//	reply, err := b.Forward(ctx, "what is the BTC price?", 60*time.Second)
//
// A timeout is the only cancellation mechanism: when it fires the pending
// entry is removed and a late reply is dropped harmlessly.
package bridge
