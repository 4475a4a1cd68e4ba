package fetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

func TestFetchReturnsBodyAndType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte("%PDF-1.4"))
		}
	}))
	defer srv.Close()

	res, err := New(DefaultConfig()).Fetch(context.Background(), srv.URL+"/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), res.Data)
	assert.Equal(t, "application/pdf", res.ContentType)
}

func TestFetchHeadDeclaresOversizeSkipsGet(t *testing.T) {
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(1000))
			return
		}
		gets.Add(1)
	}))
	defer srv.Close()

	_, err := New(Config{MaxBytes: 10}).Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, models.ErrSizeLimit)
	assert.Zero(t, gets.Load())
}

func TestFetchBodyOverLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, _ = w.Write(bytes.Repeat([]byte("x"), 11))
	}))
	defer srv.Close()

	_, err := New(Config{MaxBytes: 10}).Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, models.ErrSizeLimit)
}

func TestFetchBodyExactlyAtLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("x"), 10))
	}))
	defer srv.Close()

	res, err := New(Config{MaxBytes: 10, SkipHead: true}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, res.Data, 10)
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := New(DefaultConfig()).Fetch(context.Background(), srv.URL)
	var statusErr *models.HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestFetchNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(DefaultConfig()).Fetch(context.Background(), url)
	require.ErrorIs(t, err, models.ErrNetwork)
}

func TestFetchFallsBackToHeadContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "image/png")
			return
		}
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte{0x01})
	}))
	defer srv.Close()

	res, err := New(DefaultConfig()).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.ContentType)
}
