// Package testutil contains shared test doubles
package testutil

import (
	"fmt"

	"github.com/kelsos/media-scraper/internal/models"
	"github.com/kelsos/media-scraper/internal/transport"
)

// FakeResponse scripts what a URL returns and after how many pending polls
type FakeResponse struct {
	Body         []byte
	Err          error
	PendingPolls int
}

// FakeTransport is a scripted [transport.Transport] that records every call
type FakeTransport struct {
	responses map[string]FakeResponse

	Issued           []string
	Polls            int
	PollsAfterCancel int
	Cancelled        int
	InFlight         int
	MaxInFlight      int
}

// NewFakeTransport creates a transport with no scripted responses
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{responses: make(map[string]FakeResponse)}
}

// Respond scripts a successful response
func (f *FakeTransport) Respond(url string, body []byte) *FakeTransport {
	f.responses[url] = FakeResponse{Body: body}
	return f
}

// Fail scripts a failed response
func (f *FakeTransport) Fail(url string, err error) *FakeTransport {
	f.responses[url] = FakeResponse{Err: err}
	return f
}

// Script sets the full response for a URL
func (f *FakeTransport) Script(url string, resp FakeResponse) *FakeTransport {
	f.responses[url] = resp
	return f
}

func (f *FakeTransport) Issue(url string) transport.Request {
	f.Issued = append(f.Issued, url)
	f.InFlight++
	if f.InFlight > f.MaxInFlight {
		f.MaxInFlight = f.InFlight
	}

	resp, ok := f.responses[url]
	if !ok {
		resp = FakeResponse{Err: fmt.Errorf("%w: HTTP error 404: no fake response for %s", models.ErrTransport, url)}
	}
	return &FakeRequest{parent: f, url: url, resp: resp}
}

// FakeRequest is the request handed out by [FakeTransport]
type FakeRequest struct {
	parent    *FakeTransport
	url       string
	resp      FakeResponse
	polls     int
	cancelled bool
	finished  bool
}

func (r *FakeRequest) URL() string {
	return r.url
}

func (r *FakeRequest) Poll() (transport.State, []byte, error) {
	r.parent.Polls++
	if r.cancelled {
		r.parent.PollsAfterCancel++
		return transport.StateFailure, nil, fmt.Errorf("%w: request cancelled", models.ErrTransport)
	}
	if r.polls < r.resp.PendingPolls {
		r.polls++
		return transport.StatePending, nil, nil
	}
	r.finish()
	if r.resp.Err != nil {
		return transport.StateFailure, nil, r.resp.Err
	}
	return transport.StateSuccess, r.resp.Body, nil
}

func (r *FakeRequest) Cancel() {
	if r.cancelled {
		return
	}
	r.cancelled = true
	r.parent.Cancelled++
	r.finish()
}

func (r *FakeRequest) finish() {
	if !r.finished {
		r.finished = true
		r.parent.InFlight--
	}
}
