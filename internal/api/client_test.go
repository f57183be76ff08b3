package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aure/fpdash/internal/models"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api", 5*time.Second)
}

func TestFetchFingerprints(t *testing.T) {
	var gotPath, gotAccept string
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(`{"fingerprints":[{"input":"abc","timestamp":"T1"}],"current_page":1,"total_pages":1}`))
	})

	page, err := client.FetchFingerprints(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/api/fingerprints", gotPath)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, models.FingerprintPage{
		Fingerprints: []models.FingerprintRecord{{Input: "abc", Timestamp: "T1"}},
		CurrentPage:  1,
		TotalPages:   1,
	}, page)
}

func TestFetchFingerprintsNullListIsEmpty(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"fingerprints":null,"current_page":1,"total_pages":0}`))
	})

	page, err := client.FetchFingerprints(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, page.Fingerprints)
	assert.Empty(t, page.Fingerprints)
	assert.Equal(t, 1, page.TotalPages)
}

func TestFetchFingerprintsRejectsPageBeyondTotal(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"fingerprints":[{"input":"a","timestamp":"T"}],"current_page":3,"total_pages":2}`))
	})

	_, err := client.FetchFingerprints(context.Background())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindDecode))
}

func TestFetchFingerprintCount(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/fingerprints/count", r.URL.Path)
		w.Write([]byte(`[{"timestamp":"T1","count":3},{"timestamp":"T2","count":5}]`))
	})

	buckets, err := client.FetchFingerprintCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.CountBucket{{Timestamp: "T1", Count: 3}, {Timestamp: "T2", Count: 5}}, buckets)
}

func TestFetchFingerprintCountRejectsDuplicates(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"timestamp":"T1","count":3},{"timestamp":"T1","count":5}]`))
	})

	_, err := client.FetchFingerprintCount(context.Background())
	assert.True(t, IsKind(err, KindDecode))
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    ErrorKind
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			kind: KindTransport,
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
			kind: KindTransport,
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"fingerprints":`))
			},
			kind: KindDecode,
		},
		{
			name: "wrong shape",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[1,2,3]`))
			},
			kind: KindDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestServer(t, tt.handler)

			_, err := client.FetchFingerprints(context.Background())
			require.Error(t, err)

			var fe *FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.kind, fe.Kind)
			assert.Equal(t, "/fingerprints", fe.Path)
		})
	}
}

func TestFetchStatusErrorCarriesCode(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.FetchFingerprintCount(context.Background())

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
}

func TestFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url, time.Second)
	_, err := client.FetchFingerprints(context.Background())
	assert.True(t, IsKind(err, KindTransport))
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient("", 0)
	assert.Equal(t, DefaultBaseURL, client.BaseURL())

	client = NewClient("http://example.com/api/", time.Second)
	assert.Equal(t, "http://example.com/api", client.BaseURL())
}
