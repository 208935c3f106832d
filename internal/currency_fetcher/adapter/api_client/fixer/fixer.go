package fixer

import (
	"bytes"
	"context"
	"encoding/json"
	"github.com/langowen/ratesync/internal/currency_fetcher/adapter/api_client/httpx"
	"github.com/langowen/ratesync/internal/currency_fetcher/provider"
	"github.com/langowen/ratesync/internal/entities"
	"github.com/pkg/errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultURL          = "http://data.fixer.io/api/latest"
	DefaultBaseCurrency = "EUR"

	name       = "Fixer.io"
	dateLayout = "2006-01-02"
)

var ErrInvalidFormat = errors.New("invalid response format from Fixer API")

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=fixer_test -destination=mock_http_client_test.go -source=fixer.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Provider reads the latest rates from the Fixer.io API. It is enabled only
// when an API key is configured.
type Provider struct {
	baseURL      string
	apiKey       string
	baseCurrency string
	httpClient   HTTPClient
	timeout      time.Duration
	now          func() time.Time
}

type Option func(*Provider)

func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		if baseURL != "" {
			p.baseURL = baseURL
		}
	}
}

func WithBaseCurrency(currency string) Option {
	return func(p *Provider) {
		if currency != "" {
			p.baseCurrency = currency
		}
	}
}

func WithHTTPClient(client HTTPClient) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(p *Provider) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithClock replaces the time source used when the payload carries no date.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

var _ provider.Provider = (*Provider)(nil)

func New(apiKey string, options ...Option) *Provider {
	p := &Provider{
		baseURL:      DefaultURL,
		apiKey:       apiKey,
		baseCurrency: DefaultBaseCurrency,
		httpClient:   http.DefaultClient,
		timeout:      provider.DefaultTimeout,
		now:          time.Now,
	}
	for _, option := range options {
		option(p)
	}

	return p
}

func (p *Provider) Name() string {
	return name
}

func (p *Provider) IsEnabled() bool {
	return p.apiKey != ""
}

func (p *Provider) BaseCurrency() string {
	return p.baseCurrency
}

func (p *Provider) FetchRates(ctx context.Context) ([]entities.RateData, error) {
	if !p.IsEnabled() {
		slog.Warn("Provider is disabled (no API key configured)", "provider", name)
		return []entities.RateData{}, nil
	}

	slog.Info("Fetching exchange rates", "provider", name, "base", p.baseCurrency)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	body, err := httpx.Get(ctx, p.httpClient, p.requestURL(), nil)
	if err != nil {
		return nil, p.fail(err)
	}

	rates, err := p.parse(body)
	if err != nil {
		return nil, p.fail(err)
	}

	slog.Info("Fetched exchange rates", "provider", name, "count", len(rates))

	return rates, nil
}

func (p *Provider) requestURL() string {
	q := url.Values{}
	q.Set("access_key", p.apiKey)
	q.Set("base", p.baseCurrency)

	return p.baseURL + "?" + q.Encode()
}

func (p *Provider) fail(err error) error {
	slog.Error("Failed to fetch exchange rates", "provider", name, "error", err)
	return entities.NewFetchError(name, err)
}

type apiError struct {
	Code int     `json:"code"`
	Info *string `json:"info"`
}

type apiResponse struct {
	Success *bool           `json:"success"`
	Error   json.RawMessage `json:"error"`
	Date    *string         `json:"date"`
	Rates   json.RawMessage `json:"rates"`
}

func (p *Provider) parse(body []byte) ([]entities.RateData, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "decode Fixer response")
	}

	if resp.Success == nil || !*resp.Success {
		return nil, errors.Errorf("Fixer API error: %s", errorInfo(resp.Error))
	}

	pairs, err := orderedRates(resp.Rates)
	if err != nil {
		return nil, err
	}

	observedAt := p.now()
	if resp.Date != nil {
		observedAt, err = time.Parse(dateLayout, *resp.Date)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid Fixer date %q", *resp.Date)
		}
	}

	rates := make([]entities.RateData, 0, len(pairs))
	for _, pr := range pairs {
		rates = append(rates, entities.NewRateData(p.baseCurrency, pr.currency, pr.ratio, observedAt))
	}

	return rates, nil
}

func errorInfo(raw json.RawMessage) string {
	var e apiError
	if len(raw) == 0 || json.Unmarshal(raw, &e) != nil || e.Info == nil {
		return "Unknown error"
	}
	return *e.Info
}

type ratePair struct {
	currency string
	ratio    float64
}

// orderedRates walks the rates object token by token so the records keep the
// order the API sent them in.
func orderedRates(raw json.RawMessage) ([]ratePair, error) {
	if len(raw) == 0 {
		return nil, ErrInvalidFormat
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(ErrInvalidFormat, err.Error())
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, ErrInvalidFormat
	}

	var pairs []ratePair
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(ErrInvalidFormat, err.Error())
		}
		currency, ok := keyTok.(string)
		if !ok {
			return nil, ErrInvalidFormat
		}

		var num json.Number
		if err := dec.Decode(&num); err != nil {
			return nil, errors.Wrapf(ErrInvalidFormat, "rate for %s: %v", currency, err)
		}

		ratio, err := num.Float64()
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidFormat, "rate for %s: %v", currency, err)
		}

		pairs = append(pairs, ratePair{currency: currency, ratio: ratio})
	}

	return pairs, nil
}
