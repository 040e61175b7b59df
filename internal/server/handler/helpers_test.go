package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		domain.ErrDuplicateAnswer:                            http.StatusUnprocessableEntity,
		fmt.Errorf("wrapped: %w", domain.ErrSlippageExceeded): http.StatusUnprocessableEntity,
		domain.ErrNotFound:                                   http.StatusNotFound,
		domain.ErrUnauthorized:                               http.StatusForbidden,
		domain.ErrEnforcedPause:                              http.StatusServiceUnavailable,
		domain.ErrUnavailable:                                http.StatusServiceUnavailable,
		domain.ErrRateLimited:                                http.StatusTooManyRequests,
		errors.New("boom"):                                   http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusFor(err), err.Error())
	}
}

func TestActorHeader(t *testing.T) {
	req := httptest.NewRequest("POST", "/", nil)
	_, err := actor(req)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	req.Header.Set(ActorHeader, "0x0000000000000000000000000000000000000000")
	_, err = actor(req)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	req.Header.Set(ActorHeader, "0x00000000000000000000000000000000000a11ce")
	addr, err := actor(req)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xa11ce"), addr)
}

func TestParseListOpts(t *testing.T) {
	req := httptest.NewRequest("GET", "/?limit=9999&offset=-1&since=2026-01-02T03:04:05Z&until=bogus", nil)
	opts := parseListOpts(req)
	assert.Equal(t, 500, opts.Limit)
	assert.Equal(t, 0, opts.Offset)
	require.NotNil(t, opts.Since)
	assert.Equal(t, 2026, opts.Since.Year())
	assert.Nil(t, opts.Until)
}

func TestWriteOpErrorHidesInternalText(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	writeOpError(rec, req, discardLogger(), "buy", errors.New("pq: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pq")
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }
