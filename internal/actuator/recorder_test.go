package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/wayfinder/internal/lcr"
)

func TestRecorder_KeepsMostRecent(t *testing.T) {
	r := NewRecorder(3, false)
	base := time.Unix(1700000000, 0)
	tick := 0
	r.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for i := 1; i <= 5; i++ {
		require.NoError(t, r.Send(context.Background(), lcr.Uniform(i*10)))
	}

	hist := r.History()
	require.Len(t, hist, 3)
	assert.Equal(t, lcr.Uniform(30), hist[0].Command)
	assert.Equal(t, lcr.Uniform(50), hist[2].Command)
	assert.True(t, hist[0].At.Before(hist[2].At))
	assert.Equal(t, uint64(5), r.Total())
}

func TestRecorder_ClampsCommands(t *testing.T) {
	r := NewRecorder(0, true)
	assert.Len(t, r.history, DefaultHistory)

	require.NoError(t, r.Send(context.Background(), lcr.Command{Left: 200, Center: -1, Right: 50}))
	assert.Equal(t, lcr.Command{Left: 100, Center: 0, Right: 50}, r.History()[0].Command)
}

func TestRecorder_WritePlot(t *testing.T) {
	r := NewRecorder(10, false)
	for _, c := range []lcr.Command{{Left: 10}, {Center: 80}, {Right: 40}} {
		require.NoError(t, r.Send(context.Background(), c))
	}

	var buf bytes.Buffer
	require.NoError(t, r.WritePlot(&buf))
	_, err := png.Decode(&buf)
	assert.NoError(t, err)
}

func TestRecorder_WriteChart(t *testing.T) {
	r := NewRecorder(10, false)
	require.NoError(t, r.Send(context.Background(), lcr.Uniform(42)))

	var buf bytes.Buffer
	require.NoError(t, r.WriteChart(&buf))
	assert.Contains(t, buf.String(), "LCR commands")
	assert.Contains(t, buf.String(), "Center")
}

func TestRecorder_AdminRoutes(t *testing.T) {
	r := NewRecorder(10, false)
	require.NoError(t, r.Send(context.Background(), lcr.Uniform(7)))

	mux := http.NewServeMux()
	r.AttachAdminRoutes(mux)

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "127.0.0.1:1234"
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	rec := get("/debug/lcr-plot")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = get("/debug/lcr-chart")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "LCR commands")

	rec = get("/debug/lcr-history")
	require.Equal(t, http.StatusOK, rec.Code)
	var hist []struct {
		Command string `json:"command"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist, 1)
	assert.Equal(t, "L007C007R007", hist[0].Command)
}
