package scraper

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/media-scraper/internal/async"
	"github.com/kelsos/media-scraper/internal/models"
	"github.com/kelsos/media-scraper/internal/testutil"
)

func pollToEnd(t *testing.T, task async.Task) int {
	t.Helper()
	updates := 0
	for task.Status() == async.StatusInProgress {
		require.Less(t, updates, 1000, "task did not finish")
		task.Update()
		updates++
	}
	return updates
}

func TestSearch_PartialResultsOnFailure(t *testing.T) {
	backend := &fakeBackend{searchURLs: []string{"http://fake.test/1", "http://fake.test/2", "http://fake.test/3", "http://fake.test/4"}}
	tr := testutil.NewFakeTransport().
		Respond("http://fake.test/1", entriesBody(t, fakeEntry{ID: "a"}, fakeEntry{ID: "b"})).
		Respond("http://fake.test/2", entriesBody(t, fakeEntry{ID: "c"})).
		Fail("http://fake.test/3", fmt.Errorf("%w: HTTP error 500", models.ErrTransport)).
		Respond("http://fake.test/4", entriesBody(t, fakeEntry{ID: "d"}))

	s, _ := newTestScraper(t, backend, tr)
	handle, err := s.StartSearch(testParams())
	require.NoError(t, err)

	_, err = handle.Result()
	assert.ErrorIs(t, err, async.ErrInProgress)

	pollToEnd(t, handle)

	assert.Equal(t, async.StatusError, handle.Status())
	results, err := handle.Result()
	assert.ErrorIs(t, err, models.ErrTransport)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{results[0].GameID, results[1].GameID, results[2].GameID})

	// The queue is discarded after the failing step
	assert.Equal(t, []string{"http://fake.test/1", "http://fake.test/2", "http://fake.test/3"}, tr.Issued)
	assert.Zero(t, handle.Pending())
}

func TestSearch_MergesAllStepsInOrder(t *testing.T) {
	const steps = 5
	backend := &fakeBackend{}
	tr := testutil.NewFakeTransport()
	want := []string{}
	for i := 0; i < steps; i++ {
		url := fmt.Sprintf("http://fake.test/step/%d", i)
		backend.searchURLs = append(backend.searchURLs, url)

		entries := []fakeEntry{}
		for j := 0; j < i; j++ {
			id := fmt.Sprintf("%d-%d", i, j)
			entries = append(entries, fakeEntry{ID: id})
			want = append(want, id)
		}
		tr.Script(url, testutil.FakeResponse{Body: entriesBody(t, entries...), PendingPolls: i % 3})
	}

	s, _ := newTestScraper(t, backend, tr)
	handle, err := s.StartSearch(testParams())
	require.NoError(t, err)
	assert.Equal(t, steps, handle.Pending())

	pollToEnd(t, handle)

	require.Equal(t, async.StatusDone, handle.Status())
	results, err := handle.Result()
	require.NoError(t, err)
	got := make([]string, 0, len(results))
	for _, r := range results {
		got = append(got, r.GameID)
	}
	assert.Equal(t, want, got)
	assert.Equal(t, backend.searchURLs, tr.Issued)
	assert.Equal(t, 1, tr.MaxInFlight)
}

func TestSearch_OnlyOneRequestInFlight(t *testing.T) {
	backend := &fakeBackend{searchURLs: []string{"http://fake.test/1", "http://fake.test/2", "http://fake.test/3"}}
	tr := testutil.NewFakeTransport()
	for _, url := range backend.searchURLs {
		tr.Script(url, testutil.FakeResponse{Body: entriesBody(t), PendingPolls: 4})
	}

	s, _ := newTestScraper(t, backend, tr)
	handle, err := s.StartSearch(testParams())
	require.NoError(t, err)

	for handle.Status() == async.StatusInProgress {
		handle.Update()
		assert.LessOrEqual(t, tr.InFlight, 1)
	}
	assert.Equal(t, 1, tr.MaxInFlight)
	assert.Len(t, tr.Issued, 3)
}

func TestSearch_NoRequests(t *testing.T) {
	s, _ := newTestScraper(t, &fakeBackend{}, testutil.NewFakeTransport())
	handle, err := s.StartSearch(testParams())
	require.NoError(t, err)

	handle.Update()
	results, err := handle.Result()
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_BackendRejectsParams(t *testing.T) {
	s, _ := newTestScraper(t, &fakeBackend{}, testutil.NewFakeTransport())
	_, err := s.StartSearch(models.SearchParams{})
	assert.Error(t, err)
}

func TestSearch_CancelMidFlight(t *testing.T) {
	backend := &fakeBackend{searchURLs: []string{"http://fake.test/1", "http://fake.test/2"}}
	tr := testutil.NewFakeTransport().
		Respond("http://fake.test/1", entriesBody(t, fakeEntry{ID: "a"})).
		Script("http://fake.test/2", testutil.FakeResponse{Body: entriesBody(t), PendingPolls: 50})

	s, _ := newTestScraper(t, backend, tr)
	handle, err := s.StartSearch(testParams())
	require.NoError(t, err)

	for len(tr.Issued) < 2 {
		handle.Update()
	}
	handle.Update()
	handle.Cancel()
	for i := 0; i < 10; i++ {
		handle.Update()
	}

	assert.Equal(t, async.StatusError, handle.Status())
	assert.ErrorIs(t, handle.Err(), async.ErrCancelled)
	assert.Equal(t, 1, tr.Cancelled)
	assert.Zero(t, tr.PollsAfterCancel)
	assert.Zero(t, tr.InFlight)

	results, err := handle.Result()
	assert.ErrorIs(t, err, async.ErrCancelled)
	assert.Len(t, results, 1)
}

func TestSearch_ResultIsACopy(t *testing.T) {
	backend := &fakeBackend{searchURLs: []string{"http://fake.test/1"}}
	tr := testutil.NewFakeTransport().Respond("http://fake.test/1", entriesBody(t, fakeEntry{ID: "a", Name: "Alpha"}))

	s, _ := newTestScraper(t, backend, tr)
	handle, err := s.StartSearch(testParams())
	require.NoError(t, err)
	pollToEnd(t, handle)

	first, _ := handle.Result()
	first[0].MetaData["name"] = "changed"
	second, _ := handle.Result()
	assert.Equal(t, "Alpha", second[0].MetaData["name"])
}

func TestSearch_FailingStepContributesNothing(t *testing.T) {
	backend := &fakeBackend{searchURLs: []string{"http://fake.test/1", "http://fake.test/2"}}
	tr := testutil.NewFakeTransport().
		Respond("http://fake.test/1", entriesBody(t, fakeEntry{ID: "a"}, fakeEntry{ID: "b"}, fakeEntry{ID: "c"})).
		Respond("http://fake.test/2", []byte("partial"))

	s, _ := newTestScraper(t, backend, tr)
	handle, err := s.StartSearch(testParams())
	require.NoError(t, err)
	pollToEnd(t, handle)

	assert.Equal(t, async.StatusError, handle.Status())
	results, err := handle.Result()
	assert.ErrorIs(t, err, models.ErrResponse)
	assert.Len(t, results, 3)
}
