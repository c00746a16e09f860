package bcb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeries(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[{"data":"01/01/2024","valor":"1,5"},{"data":"01/02/2024","valor":"0,5"}]`))
	}))
	defer srv.Close()

	c := New(srv.URL, 4390, time.Second)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)

	obs, err := c.Series(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, "/bcdata.sgs.4390/dados", gotPath)
	assert.Contains(t, gotQuery, "formato=json")
	assert.Contains(t, gotQuery, "dataInicial=01%2F01%2F2024")
	assert.Contains(t, gotQuery, "dataFinal=29%2F02%2F2024")

	v, err := obs[0].Float()
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)
}

func TestAccumulatedRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"data":"01/01/2024","valor":"1,5"},{"data":"01/02/2024","valor":"0,5"}]`))
	}))
	defer srv.Close()

	c := New(srv.URL, 4390, time.Second)
	rate, err := c.AccumulatedRate(context.Background(), time.Now().AddDate(0, -2, 0), time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 0.02, rate, 1e-9)
}

func TestSeriesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, 4390, time.Second)
	_, err := c.Series(context.Background(), time.Now(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
}

func TestObservationFloatBadValue(t *testing.T) {
	_, err := Observation{Value: "abc"}.Float()
	require.Error(t, err)
}
