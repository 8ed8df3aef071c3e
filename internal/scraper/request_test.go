package scraper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/media-scraper/internal/async"
	"github.com/kelsos/media-scraper/internal/models"
	"github.com/kelsos/media-scraper/internal/testutil"
)

const searchURL = "http://fake.test/search"

func TestHTTPRequest_ProcessesResponseOnce(t *testing.T) {
	tr := testutil.NewFakeTransport().Script(searchURL, testutil.FakeResponse{
		Body:         entriesBody(t, fakeEntry{ID: "1"}, fakeEntry{ID: "2"}),
		PendingPolls: 1,
	})

	processed := 0
	var results []models.SearchResult
	step := NewHTTPRequest(tr, Request{URL: searchURL, Process: func(body []byte, out *[]models.SearchResult) error {
		processed++
		return processFake(body, out)
	}}, &results)

	step.Update()
	assert.Equal(t, []string{searchURL}, tr.Issued)
	assert.Equal(t, async.StatusInProgress, step.Status())

	step.Update()
	assert.Equal(t, async.StatusInProgress, step.Status())

	step.Update()
	require.Equal(t, async.StatusDone, step.Status())
	step.Update()

	assert.Equal(t, 1, processed)
	assert.Len(t, results, 2)
	assert.Equal(t, searchURL, step.URL())
}

func TestHTTPRequest_TransportFailure(t *testing.T) {
	boom := errors.New("dial tcp: refused")
	tr := testutil.NewFakeTransport().Fail(searchURL, boom)

	var results []models.SearchResult
	step := NewHTTPRequest(tr, Request{URL: searchURL, Process: processFake}, &results)
	step.Update()
	step.Update()

	assert.Equal(t, async.StatusError, step.Status())
	assert.ErrorIs(t, step.Err(), boom)
	assert.Empty(t, results)
}

func TestHTTPRequest_ProcessFailureDiscardsBatch(t *testing.T) {
	tr := testutil.NewFakeTransport().Respond(searchURL, []byte("partial"))

	results := []models.SearchResult{models.NewSearchResult("earlier")}
	step := NewHTTPRequest(tr, Request{URL: searchURL, Process: processFake}, &results)
	step.Update()
	step.Update()

	assert.Equal(t, async.StatusError, step.Status())
	assert.ErrorIs(t, step.Err(), models.ErrResponse)
	require.Len(t, results, 1)
	assert.Equal(t, "earlier", results[0].GameID)
}

func TestHTTPRequest_Cancel(t *testing.T) {
	tr := testutil.NewFakeTransport().Script(searchURL, testutil.FakeResponse{PendingPolls: 10})

	var results []models.SearchResult
	step := NewHTTPRequest(tr, Request{URL: searchURL, Process: processFake}, &results)
	step.Update()
	step.Cancel()
	step.Update()

	assert.ErrorIs(t, step.Err(), async.ErrCancelled)
	assert.Equal(t, 1, tr.Cancelled)
	assert.Zero(t, tr.Polls)
}
