package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aure/fpdash/internal/models"
	"github.com/aure/fpdash/internal/view"
)

type fakeSource struct {
	release    chan struct{}
	page       models.FingerprintPage
	buckets    []models.CountBucket
	countErr   error
	pageCalls  atomic.Int32
	countCalls atomic.Int32
}

func (f *fakeSource) FetchFingerprints(ctx context.Context) (models.FingerprintPage, error) {
	f.pageCalls.Add(1)
	if err := f.wait(ctx); err != nil {
		return models.FingerprintPage{}, err
	}
	return f.page, nil
}

func (f *fakeSource) FetchFingerprintCount(ctx context.Context) ([]models.CountBucket, error) {
	f.countCalls.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.buckets, f.countErr
}

func (f *fakeSource) wait(ctx context.Context) error {
	if f.release == nil {
		return nil
	}
	select {
	case <-f.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func fixture() *fakeSource {
	return &fakeSource{
		page: models.FingerprintPage{
			Fingerprints: []models.FingerprintRecord{
				{Input: "alpha", Timestamp: "2024-05-01T12:00:00Z"},
				{Input: "beta", Timestamp: "2024-05-01T12:00:10Z"},
			},
			CurrentPage: 1,
			TotalPages:  1,
		},
		buckets: []models.CountBucket{
			{Timestamp: "2024-05-01 12:00:00", Count: 2},
			{Timestamp: "2024-05-01 12:00:30", Count: 4},
		},
	}
}

func newTestServer(t *testing.T, src view.Source, wait time.Duration) (*Server, *httptest.Server, *http.Client) {
	t.Helper()
	srv := New(Options{Source: src, WaitTimeout: wait})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Sessions().CloseAll()
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return srv, ts, &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func get(t *testing.T, client *http.Client, url string) (int, string) {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func post(t *testing.T, client *http.Client, url string) (int, string) {
	t.Helper()
	resp, err := client.Post(url, "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestIndexStartsLoadingThenPartialsSettle(t *testing.T) {
	src := fixture()
	src.release = make(chan struct{})
	srv, ts, client := newTestServer(t, src, 2*time.Second)

	code, body := get(t, client, ts.URL+"/")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `hx-get="/partials/fingerprints?wait=1"`)
	assert.Contains(t, body, `hx-get="/partials/fingerprint-count?wait=1"`)
	assert.Equal(t, 1, srv.Sessions().Len())

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(src.release)
	}()

	code, body = get(t, client, ts.URL+"/partials/fingerprints?wait=1")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "alpha")
	assert.Contains(t, body, "<th>Input</th>")

	code, body = get(t, client, ts.URL+"/partials/fingerprint-count?wait=1")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "<svg")

	assert.Equal(t, int32(1), src.pageCalls.Load())
	assert.Equal(t, int32(1), src.countCalls.Load())
	assert.Equal(t, 1, srv.Sessions().Len())
}

func TestWaitTimesOutWithSpinner(t *testing.T) {
	src := fixture()
	src.release = make(chan struct{})
	t.Cleanup(func() { close(src.release) })
	_, ts, client := newTestServer(t, src, 30*time.Millisecond)

	code, body := get(t, client, ts.URL+"/partials/fingerprints?wait=1")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `class="spinner"`)
}

func TestCountFailureShowsCalloutOnlyOnChart(t *testing.T) {
	src := fixture()
	src.countErr = errors.New("upstream down")
	_, ts, client := newTestServer(t, src, 2*time.Second)

	_, chart := get(t, client, ts.URL+"/partials/fingerprint-count?wait=1")
	assert.Contains(t, chart, view.CountFailure)
	assert.NotContains(t, chart, "upstream down")

	_, table := get(t, client, ts.URL+"/partials/fingerprints?wait=1")
	assert.Contains(t, table, "beta")
}

func TestActivateRowTripsTableUntilRemount(t *testing.T) {
	src := fixture()
	_, ts, client := newTestServer(t, src, 2*time.Second)

	get(t, client, ts.URL+"/partials/fingerprints?wait=1")
	get(t, client, ts.URL+"/partials/fingerprint-count?wait=1")

	code, body := post(t, client, ts.URL+"/cards/fingerprints/rows/1/activate")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, view.TableFaultMessage)
	assert.Contains(t, body, `hx-post="/cards/fingerprints/remount"`)

	code, page := get(t, client, ts.URL+"/")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, page, view.TableFaultMessage)
	assert.Contains(t, page, "<svg")

	code, body = post(t, client, ts.URL+"/cards/fingerprints/remount")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "alpha")
	assert.Equal(t, int32(1), src.pageCalls.Load())
}

func TestActivateRowErrors(t *testing.T) {
	src := fixture()
	src.release = make(chan struct{})
	_, ts, client := newTestServer(t, src, 2*time.Second)

	code, _ := post(t, client, ts.URL+"/cards/fingerprints/rows/0/activate")
	assert.Equal(t, http.StatusConflict, code)

	close(src.release)
	get(t, client, ts.URL+"/partials/fingerprints?wait=1")

	code, _ = post(t, client, ts.URL+"/cards/fingerprints/rows/9/activate")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRefetchOneCard(t *testing.T) {
	src := fixture()
	_, ts, client := newTestServer(t, src, 2*time.Second)

	get(t, client, ts.URL+"/partials/fingerprints?wait=1")
	get(t, client, ts.URL+"/partials/fingerprint-count?wait=1")

	code, _ := post(t, client, ts.URL+"/cards/fingerprint-count/refetch")
	require.Equal(t, http.StatusOK, code)

	require.Eventually(t, func() bool { return src.countCalls.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), src.pageCalls.Load())

	code, _ = post(t, client, ts.URL+"/cards/nope/refetch")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUnknownPartial(t *testing.T) {
	_, ts, client := newTestServer(t, fixture(), time.Second)

	code, _ := get(t, client, ts.URL+"/partials/nope")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSessionsAreIsolated(t *testing.T) {
	src := fixture()
	srv, ts, client := newTestServer(t, src, 2*time.Second)

	get(t, client, ts.URL+"/partials/fingerprints?wait=1")
	post(t, client, ts.URL+"/cards/fingerprints/rows/0/activate")

	other := &http.Client{Timeout: 5 * time.Second}
	_, body := get(t, other, ts.URL+"/partials/fingerprints?wait=1")
	assert.NotContains(t, body, view.TableFaultMessage)
	assert.Contains(t, body, "alpha")
	assert.Equal(t, 2, srv.Sessions().Len())
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	srv, ts, client := newTestServer(t, fixture(), time.Second)
	get(t, client, ts.URL+"/partials/fingerprints?wait=1")
	require.Equal(t, 1, srv.Sessions().Len())

	sessions := srv.Sessions()
	assert.Equal(t, 0, sessions.Sweep())

	assert.Equal(t, 1, sessions.sweep(time.Now().Add(DefaultSessionTTL+time.Minute)))
	assert.Equal(t, 0, sessions.Len())

	get(t, client, ts.URL+"/")
	assert.Equal(t, 1, sessions.Len())
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts, client := newTestServer(t, fixture(), time.Second)
	get(t, client, ts.URL+"/partials/fingerprints?wait=1")

	code, body := get(t, client, ts.URL+"/healthz")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok","sessions":1}`, body)

	code, body = get(t, client, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, strings.Contains(body, "fpdash_query_dispatches_total"))
	assert.Contains(t, body, "fpdash_sessions 1")
}
