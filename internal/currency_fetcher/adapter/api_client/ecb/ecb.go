package ecb

import (
	"bytes"
	"context"
	"encoding/xml"
	"github.com/langowen/ratesync/internal/currency_fetcher/adapter/api_client/httpx"
	"github.com/langowen/ratesync/internal/currency_fetcher/provider"
	"github.com/langowen/ratesync/internal/entities"
	"github.com/pkg/errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultURL = "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"

	name         = "ECB (European Central Bank)"
	baseCurrency = "EUR"
	vocabularyNS = "http://www.ecb.int/vocabulary/2002-08-01/eurofxref"
	dateLayout   = "2006-01-02"
)

var (
	ErrNoRoot          = errors.New("document has no root element")
	ErrTrailingContent = errors.New("content after the root element")
	ErrNoDate          = errors.New("could not extract date from ECB response")
	ErrNoRates         = errors.New("no exchange rates found in ECB response")
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=ecb_test -destination=mock_http_client_test.go -source=ecb.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Provider reads the ECB daily reference rates feed. It needs no
// credentials, so it is always enabled.
type Provider struct {
	url        string
	httpClient HTTPClient
	timeout    time.Duration
}

type Option func(*Provider)

func WithURL(url string) Option {
	return func(p *Provider) {
		if url != "" {
			p.url = url
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

var _ provider.Provider = (*Provider)(nil)

func New(options ...Option) *Provider {
	p := &Provider{
		url:        DefaultURL,
		httpClient: http.DefaultClient,
		timeout:    provider.DefaultTimeout,
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
	return true
}

func (p *Provider) FetchRates(ctx context.Context) ([]entities.RateData, error) {
	slog.Info("Fetching exchange rates", "provider", name)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	body, err := httpx.Get(ctx, p.httpClient, p.url, http.Header{"Accept": []string{"application/xml"}})
	if err != nil {
		return nil, p.fail(err)
	}

	rates, err := ParseDocument(body)
	if err != nil {
		return nil, p.fail(err)
	}

	slog.Info("Fetched exchange rates", "provider", name, "count", len(rates))

	return rates, nil
}

func (p *Provider) fail(err error) error {
	slog.Error("Failed to fetch exchange rates", "provider", name, "error", err)
	return entities.NewFetchError(name, err)
}

type rateCube struct {
	currency string
	rate     string
}

// ParseDocument extracts EUR based rates from an eurofxref document. The date
// comes from the first Cube with a time attribute, rates from every Cube
// carrying both currency and rate, in document order.
func ParseDocument(body []byte) ([]entities.RateData, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var (
		rootSeen   bool
		rootClosed bool
		depth      int
		dateFound  bool
		rawDate    string
		cubes      []rateCube
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "malformed ECB document")
		}

		var el xml.StartElement
		switch t := tok.(type) {
		case xml.StartElement:
			if rootClosed {
				return nil, errors.Wrap(ErrTrailingContent, "malformed ECB document")
			}
			el = t
			rootSeen = true
			depth++
		case xml.EndElement:
			depth--
			if depth == 0 {
				rootClosed = true
			}
			continue
		case xml.CharData:
			if rootClosed && len(bytes.TrimSpace(t)) > 0 {
				return nil, errors.Wrap(ErrTrailingContent, "malformed ECB document")
			}
			continue
		default:
			continue
		}

		if el.Name.Space != vocabularyNS || el.Name.Local != "Cube" {
			continue
		}

		attrs := attributes(el)

		if t, ok := attrs["time"]; ok && !dateFound {
			rawDate = t
			dateFound = true
		}

		currency, hasCurrency := attrs["currency"]
		rate, hasRate := attrs["rate"]
		if hasCurrency && hasRate {
			cubes = append(cubes, rateCube{currency: currency, rate: rate})
		}
	}

	if !rootSeen {
		return nil, errors.Wrap(ErrNoRoot, "malformed ECB document")
	}

	if !dateFound {
		return nil, ErrNoDate
	}

	date, err := time.Parse(dateLayout, strings.TrimSpace(rawDate))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid ECB date %q", rawDate)
	}

	if len(cubes) == 0 {
		return nil, ErrNoRates
	}

	rates := make([]entities.RateData, 0, len(cubes))
	for _, c := range cubes {
		ratio, err := strconv.ParseFloat(strings.TrimSpace(c.rate), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid rate for %s", c.currency)
		}

		rates = append(rates, entities.NewRateData(baseCurrency, c.currency, ratio, date))
	}

	return rates, nil
}

func attributes(el xml.StartElement) map[string]string {
	attrs := make(map[string]string, len(el.Attr))
	for _, a := range el.Attr {
		if a.Name.Space == "" {
			attrs[a.Name.Local] = a.Value
		}
	}
	return attrs
}
