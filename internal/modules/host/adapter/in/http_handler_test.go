package in_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hostin "cuckoohost/internal/modules/host/adapter/in"
	"cuckoohost/internal/modules/host/dto"
	"cuckoohost/internal/platform/contract"
	apperrors "cuckoohost/internal/platform/errors"
)

type fakeSession struct {
	snap dto.Snapshot
	err  error
}

func (s fakeSession) ID() string     { return s.snap.SessionID }
func (s fakeSession) Plugin() string { return s.snap.Plugin }
func (fakeSession) Submit(context.Context, []byte) (dto.SubmitResult, error) {
	return dto.SubmitResult{}, nil
}
func (fakeSession) Start(context.Context) (contract.Status, error)   { return contract.StatusOK, nil }
func (fakeSession) Poll(context.Context) ([]dto.Report, error)       { return nil, nil }
func (fakeSession) Stop(context.Context) error                       { return nil }
func (fakeSession) Restart(context.Context) (contract.Status, error) { return contract.StatusOK, nil }
func (fakeSession) Clear(context.Context) error                      { return nil }
func (s fakeSession) Snapshot(context.Context) (dto.Snapshot, error) { return s.snap, s.err }
func (fakeSession) Close(context.Context) error                      { return nil }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestStatusServerRoutes(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "cuckoohost_probe_total", Help: "probe"})
	reg.MustRegister(counter)
	counter.Inc()

	srv := hostin.NewStatusServer(reg)
	h := srv.Handler()

	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cuckoohost_probe_total 1")

	rec = get(t, h, "/session")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	srv.Attach(fakeSession{snap: dto.Snapshot{SessionID: "s-1", Plugin: "lean_go_16", Found: 2}})
	rec = get(t, h, "/session")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap dto.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "s-1", snap.SessionID)
	assert.Equal(t, 2, snap.Found)

	srv.Attach(fakeSession{err: errors.New("unloaded")})
	rec = get(t, h, "/session")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestParseHeader(t *testing.T) {
	t.Parallel()
	header, err := hostin.ParseHeader("0x00ff10")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xff, 0x10}, header)

	header, err = hostin.ParseHeader("")
	require.NoError(t, err)
	assert.Empty(t, header)

	_, err = hostin.ParseHeader("zz")
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCLIHandlerRequiresPlugin(t *testing.T) {
	t.Parallel()
	h := hostin.NewCLIHandler(nil)

	_, err := h.Describe(context.Background(), "")
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = h.Solve(context.Background(), "lean_go_16", "not-hex", 1)
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = h.Mine(context.Background(), dto.MineInput{})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
