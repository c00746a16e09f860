// Package bcb fetches monetary index series from the Brazilian central bank
// open-data API (SGS).
package bcb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Observation is one dated value of a series. The API returns values as
// strings with a comma decimal separator.
type Observation struct {
	Date  string `json:"data"`
	Value string `json:"valor"`
}

// Float parses the comma-decimal value.
func (o Observation) Float() (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(o.Value, ",", "."), 64)
	if err != nil {
		return 0, eris.Wrapf(err, "bcb: parse value %q", o.Value)
	}
	return v, nil
}

// Client queries one SGS series.
type Client struct {
	httpc    *http.Client
	baseURL  string
	seriesID int
}

// New builds a client for the given series (4390 is the monthly SELIC).
func New(baseURL string, seriesID int, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpc:    &http.Client{Timeout: timeout},
		baseURL:  strings.TrimRight(baseURL, "/"),
		seriesID: seriesID,
	}
}

// Series returns the observations between start and end, inclusive.
func (c *Client) Series(ctx context.Context, start, end time.Time) ([]Observation, error) {
	u := fmt.Sprintf("%s/bcdata.sgs.%d/dados", c.baseURL, c.seriesID)
	params := url.Values{}
	params.Set("formato", "json")
	params.Set("dataInicial", start.Format("02/01/2006"))
	params.Set("dataFinal", end.Format("02/01/2006"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "bcb: build request")
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "bcb: request series")
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("bcb: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "bcb: read response")
	}
	var obs []Observation
	if err := json.Unmarshal(body, &obs); err != nil {
		return nil, eris.Wrap(err, "bcb: parse response")
	}
	return obs, nil
}

// AccumulatedRate sums the series values over the period, as a fraction
// (the API reports monthly percentages).
func (c *Client) AccumulatedRate(ctx context.Context, start, end time.Time) (float64, error) {
	obs, err := c.Series(ctx, start, end)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, o := range obs {
		v, err := o.Float()
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total / 100, nil
}
