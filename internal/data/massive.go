// Package data provides market data provider implementations.
//
// This file contains a Massive-backed provider (Polygon-compatible REST API)
// that retrieves daily aggregates and option chain snapshots.
//
// Design notes:
//   - Raw HTTP calls, no SDK
//   - Pagination follows next_url until exhausted
//   - HTTP 429 waits until the next minute boundary, bounded by the context
//   - Logging is verbose at Debug/Trace levels for diagnostics
package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/contactkeval/option-wheel/internal/logger"
)

// DefaultMassiveBaseURL is the production Massive REST endpoint.
const DefaultMassiveBaseURL = "https://api.massive.com"

// ErrNoQuote reports that no usable option quote exists for a request.
var ErrNoQuote = errors.New("no option quote")

// massiveDataProvider implements PriceProvider and QuoteProvider using Massive APIs.
type massiveDataProvider struct {
	// APIKey used for authenticating requests with Massive.
	APIKey string

	// Client is the HTTP client used to make API requests.
	Client *http.Client

	// BaseURL is the root endpoint for Massive APIs
	// (e.g., https://api.massive.com).
	BaseURL string
}

// massiveAggsResp models the aggregates (bars) endpoint response.
type massiveAggsResp struct {
	Ticker  string `json:"ticker"`
	Status  string `json:"status"`
	Results []struct {
		Open      float64 `json:"o"`
		Close     float64 `json:"c"`
		High      float64 `json:"h"`
		Low       float64 `json:"l"`
		Volume    float64 `json:"v"`
		Timestamp int64   `json:"t"` // epoch millis
	} `json:"results"`
	NextURL string `json:"next_url"`
}

// massiveSnapshotResp models the option chain snapshot endpoint response.
type massiveSnapshotResp struct {
	Status  string `json:"status"`
	Results []struct {
		Details struct {
			ContractType   string  `json:"contract_type"`
			ExpirationDate string  `json:"expiration_date"`
			StrikePrice    float64 `json:"strike_price"`
			Ticker         string  `json:"ticker"`
		} `json:"details"`
		LastQuote struct {
			Bid float64 `json:"bid"`
			Ask float64 `json:"ask"`
		} `json:"last_quote"`
	} `json:"results"`
	NextURL string `json:"next_url"`
}

// NewMassiveDataProvider constructs a Massive-backed data provider.
//
// It initializes an HTTP client with sensible defaults for:
//   - timeouts
//   - connection pooling
//   - HTTP/2 support
//   - gzip decompression
//
// An empty baseURL selects DefaultMassiveBaseURL.
func NewMassiveDataProvider(apiKey, baseURL string) *massiveDataProvider {
	logger.Infof("initializing Massive data provider")

	if baseURL == "" {
		baseURL = DefaultMassiveBaseURL
	}

	return &massiveDataProvider{
		APIKey: apiKey,
		Client: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

// GetBars retrieves daily OHLCV bars for the given symbol and date range.
func (massiveDataProv *massiveDataProvider) GetBars(
	ctx context.Context,
	underlying string,
	fromDate, toDate time.Time,
) ([]Bar, error) {

	logger.Debugf(
		"fetching bars: %s from=%s to=%s",
		underlying,
		fromDate.Format(DateLayout),
		toDate.Format(DateLayout),
	)

	reqURL := fmt.Sprintf(
		"%s/v2/aggs/ticker/%s/range/1/day/%s/%s?adjusted=true&sort=asc&limit=50000",
		massiveDataProv.BaseURL,
		url.PathEscape(strings.ToUpper(underlying)),
		fromDate.Format(DateLayout),
		toDate.Format(DateLayout),
	)

	out := []Bar{}
	for reqURL != "" {
		var body massiveAggsResp
		if err := massiveDataProv.getJSON(ctx, reqURL, &body); err != nil {
			return nil, fmt.Errorf("massive bars %s: %w", underlying, err)
		}

		logger.Tracef("bars received: %d records", len(body.Results))

		for _, r := range body.Results {
			d := time.UnixMilli(r.Timestamp).UTC()
			out = append(out, Bar{
				Date:  time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
				Open:  r.Open,
				High:  r.High,
				Low:   r.Low,
				Close: r.Close,
				Vol:   r.Volume,
			})
		}
		reqURL = body.NextURL
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w for %s between %s and %s", ErrNoData, underlying,
			fromDate.Format(DateLayout), toDate.Format(DateLayout))
	}
	SortBars(out)
	return out, nil
}

// GetOptionQuote looks up the option chain snapshot for one expiry and option
// type and returns the quote of the strike nearest to the requested one.
func (massiveDataProv *massiveDataProvider) GetOptionQuote(
	ctx context.Context,
	underlying string,
	expiryDate time.Time,
	optType string,
	strike float64,
) (Quote, error) {

	logger.Debugf(
		"option quote lookup: %s %s strike=%.2f expiry=%s",
		underlying,
		optType,
		strike,
		expiryDate.Format(DateLayout),
	)

	u, err := url.Parse(massiveDataProv.BaseURL + "/v3/snapshot/options/" + url.PathEscape(strings.ToUpper(underlying)))
	if err != nil {
		return Quote{}, err
	}
	query := u.Query()
	query.Set("expiration_date", expiryDate.Format(DateLayout))
	query.Set("contract_type", strings.ToLower(optType))
	query.Set("limit", "250")
	u.RawQuery = query.Encode()
	reqURL := u.String()

	byStrike := map[float64]Quote{}
	for reqURL != "" {
		var body massiveSnapshotResp
		if err := massiveDataProv.getJSON(ctx, reqURL, &body); err != nil {
			return Quote{}, fmt.Errorf("massive snapshot %s: %w", underlying, err)
		}
		for _, r := range body.Results {
			if r.Details.ExpirationDate != expiryDate.Format(DateLayout) {
				continue
			}
			if _, seen := byStrike[r.Details.StrikePrice]; seen {
				continue
			}
			byStrike[r.Details.StrikePrice] = Quote{
				Strike: r.Details.StrikePrice,
				Bid:    r.LastQuote.Bid,
				Ask:    r.LastQuote.Ask,
			}
		}
		reqURL = body.NextURL
	}

	if len(byStrike) == 0 {
		return Quote{}, fmt.Errorf("%w: %s %s expiry %s not listed", ErrNoQuote, underlying, optType,
			expiryDate.Format(DateLayout))
	}

	strikes := make([]float64, 0, len(byStrike))
	for k := range byStrike {
		strikes = append(strikes, k)
	}
	sort.Float64s(strikes)
	nearest := Closest(strikes, strike)

	logger.Tracef("nearest listed strike %.2f for requested %.2f", nearest, strike)
	return byStrike[nearest], nil
}

// getJSON performs an authenticated GET and decodes a 200 response into v.
func (massiveDataProv *massiveDataProvider) getJSON(ctx context.Context, reqURL string, v any) error {
	logger.Tracef("request URL: %s", reqURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+massiveDataProv.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := massiveDataProv.processGetRequest(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if len(body) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// processGetRequest executes an HTTP GET request with rate-limit handling.
//
// Behavior:
//   - Retries on HTTP 429 after sleeping until the next minute boundary
//   - Returns immediately on success (<400)
//   - Returns an error carrying the API message for other status codes
//   - Gives up when ctx is done
func (massiveDataProv *massiveDataProvider) processGetRequest(
	ctx context.Context,
	req *http.Request,
) (*http.Response, error) {

	for {
		resp, err := massiveDataProv.Client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 400 {
			return resp, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()

			now := time.Now()
			sleepDuration := time.Until(now.Truncate(time.Minute).Add(time.Minute))

			logger.Infof("rate limit hit, sleeping for %s", sleepDuration)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(sleepDuration):
			}
			continue
		}

		var dbg struct {
			Message string `json:"message"`
		}
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		_ = json.Unmarshal(b, &dbg)

		logger.Errorf("massive API error status=%d message=%s", resp.StatusCode, dbg.Message)
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: status %d: %s", ErrNoData, resp.StatusCode, dbg.Message)
		}
		return nil, fmt.Errorf("massive returned status %d: %s", resp.StatusCode, dbg.Message)
	}
}
