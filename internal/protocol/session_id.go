package protocol

// SessionIDFor derives the signaling session id from the request id
// that produced it. Both sides of the protocol compute this locally, so
// p2p_request_accepted only needs to carry the request id.
func SessionIDFor(requestID string) string {
	return "sess-" + requestID
}
