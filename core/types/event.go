package types

// Event is a structured record of a state change, broadcast to subscribers
// such as the RPC layer or external indexers.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
