// Package transport issues outbound requests that are polled rather than awaited.
package transport

// State is the outcome of polling a request
type State string

const (
	StatePending State = "pending"
	StateSuccess State = "success"
	StateFailure State = "failure"
)

// Request is one in-flight fetch. Poll never blocks; Cancel aborts the fetch
// and any later Poll reports failure.
type Request interface {
	URL() string
	Poll() (State, []byte, error)
	Cancel()
}

// Transport starts requests
type Transport interface {
	Issue(url string) Request
}
