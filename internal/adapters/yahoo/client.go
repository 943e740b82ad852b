package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"haBacktest/internal/domain"
	"haBacktest/internal/ports"
)

const (
	defaultBaseURL  = "https://query1.finance.yahoo.com"
	monthlyInterval = "1mo"
)

// DefaultAliases maps index names to Yahoo tickers.
var DefaultAliases = map[string]string{
	"NIFTY":     "^NSEI",
	"NIFTY50":   "^NSEI",
	"BANKNIFTY": "^NSEBANK",
	"SENSEX":    "^BSESN",
	"SPX":       "^GSPC",
	"SPX500":    "^GSPC",
}

// Client implements ports.BarProvider using the public Yahoo Finance chart API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	suffix     string
	aliases    map[string]string
	logger     ports.Logger
}

// Config holds configuration for the Yahoo adapter.
type Config struct {
	BaseURL      string
	SymbolSuffix string            // Appended to bare tickers, e.g. ".NS"
	Aliases      map[string]string // Nil means DefaultAliases
	Timeout      time.Duration
	Logger       ports.Logger
}

// New creates a Yahoo Finance client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Yahoo client")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	aliases := cfg.Aliases
	if aliases == nil {
		aliases = DefaultAliases
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    base,
		suffix:     cfg.SymbolSuffix,
		aliases:    aliases,
		logger:     cfg.Logger,
	}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string { return "yahoo" }

// Ticker resolves an instrument symbol to the Yahoo ticker.
// Aliases win; symbols that already carry an exchange suffix or index caret pass through.
func (c *Client) Ticker(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if mapped, ok := c.aliases[s]; ok {
		return mapped
	}
	if c.suffix == "" || strings.HasPrefix(s, "^") || strings.Contains(s, ".") {
		return s
	}
	return s + c.suffix
}

// chartResponse is the response structure from the chart API.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				GMTOffset int64 `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchMonthlyBars fetches monthly bars with start <= time <= end.
func (c *Client) FetchMonthlyBars(ctx context.Context, symbol string, start, end time.Time) ports.FetchResult {
	bars, err := c.fetchChart(ctx, c.Ticker(symbol), start, end)
	if err != nil {
		c.logger.Debug(ctx, "Yahoo fetch failed", map[string]interface{}{"symbol": symbol, "error": err.Error()})
		return ports.FetchError(err)
	}
	return ports.Fetched(bars)
}

func (c *Client) fetchChart(ctx context.Context, ticker string, start, end time.Time) ([]domain.Bar, error) {
	q := url.Values{}
	q.Set("interval", monthlyInterval)
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	// period2 is exclusive on the API side.
	q.Set("period2", strconv.FormatInt(end.AddDate(0, 0, 1).Unix(), 10))
	q.Set("events", "div,splits")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(ticker), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("yahoo build request: %w: %w", ports.ErrInvalidRequest, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w: %w", ports.ErrConnectionFailed, err)
	}

	var chart chartResponse
	decodeErr := json.Unmarshal(body, &chart)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("yahoo %s: %w", ticker, ports.ErrRateLimited)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("yahoo %s: %w", ticker, ports.ErrDataUnavailable)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("yahoo %s: status %d: %w", ticker, resp.StatusCode, ports.ErrUnknown)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("yahoo decode: %w: %w", ports.ErrMalformedData, decodeErr)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error for %s: %s: %w", ticker, chart.Chart.Error.Description, ports.ErrDataUnavailable)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, nil
	}

	result := chart.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	quote := result.Indicators.Quote[0]
	n := len(result.Timestamp)
	if len(quote.Open) != n || len(quote.High) != n || len(quote.Low) != n || len(quote.Close) != n {
		return nil, fmt.Errorf("yahoo %s: quote arrays do not match %d timestamps: %w", ticker, n, ports.ErrMalformedData)
	}

	bars := make([]domain.Bar, 0, n)
	for i, ts := range result.Timestamp {
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
			continue // null rows (halted months)
		}
		local := time.Unix(ts+result.Meta.GMTOffset, 0).UTC()
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
		bar := domain.Bar{
			Time:  day,
			Open:  *quote.Open[i],
			High:  *quote.High[i],
			Low:   *quote.Low[i],
			Close: *quote.Close[i],
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return monthlyWindow(bars, start, end), nil
}

// monthlyWindow keeps one bar per calendar month inside [start, end].
// The API appends a live quote row in the current month; the first row of a month wins.
func monthlyWindow(bars []domain.Bar, start, end time.Time) []domain.Bar {
	out := bars[:0]
	for _, b := range bars {
		if b.Time.Before(start) || b.Time.After(end) {
			continue
		}
		if n := len(out); n > 0 {
			prev := out[n-1].Time
			if prev.Year() == b.Time.Year() && prev.Month() == b.Time.Month() {
				continue
			}
		}
		out = append(out, b)
	}
	return out
}

func classifyTransportErr(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("yahoo fetch canceled: %w: %w", ports.ErrContextCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("yahoo fetch: %w: %w", ports.ErrTimeout, err)
	default:
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return fmt.Errorf("yahoo fetch: %w: %w", ports.ErrTimeout, err)
		}
		return fmt.Errorf("yahoo fetch: %w: %w", ports.ErrConnectionFailed, err)
	}
}
