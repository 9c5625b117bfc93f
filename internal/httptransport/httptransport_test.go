package httptransport_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphcache/internal/httptransport"
	"github.com/hanpama/graphcache/internal/selection"
	"github.com/hanpama/graphcache/internal/value"
)

func TestSend(t *testing.T) {
	var (
		got    httptransport.Request
		header http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"data":{"hero":{"name":"R2-D2","age":33}},"errors":[{"message":"partial","path":["hero","friends"]}]}`)
	}))
	defer srv.Close()

	tr := httptransport.New(srv.URL, httptransport.WithHeader("X-Client", "graphcache"))
	ctx := httptransport.ContextWithHeader(context.Background(), http.Header{"Authorization": {"Bearer t"}})
	op := &selection.Operation{Kind: selection.Query, Name: "Hero", Document: "query Hero { hero { name age } }", Variables: map[string]any{"ep": "JEDI"}}

	resp, err := tr.Send(ctx, op)
	require.NoError(t, err)

	want := httptransport.Request{Query: op.Document, OperationName: "Hero", Variables: map[string]any{"ep": "JEDI"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "graphcache", header.Get("X-Client"))
	require.Equal(t, "Bearer t", header.Get("Authorization"))
	require.Equal(t, "application/json", header.Get("Content-Type"))

	require.Equal(t, value.Object{"hero": value.Object{"name": "R2-D2", "age": int64(33)}}, resp.Data)
	require.Len(t, resp.Errors, 1)
	require.Equal(t, "hero.friends", resp.Errors[0].Path.String())
}

func TestSendHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := httptransport.New(srv.URL).Send(context.Background(), &selection.Operation{Name: "Hero"})
	require.ErrorContains(t, err, "status 503")
}

func TestSendCancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := httptransport.New(srv.URL).Send(ctx, &selection.Operation{Name: "Hero"})
	require.ErrorIs(t, err, context.Canceled)
}
