package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cryptofolio/internal/config"
	"cryptofolio/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrSourceUnavailable wraps every failure to obtain prices: transport
// errors, non-success statuses and undecodable bodies. An empty QuoteSet
// returned with a nil error means the source answered and knew none of the
// ids.
var ErrSourceUnavailable = errors.New("price source unavailable")

type PriceProvider interface {
	FetchQuotes(ctx context.Context, ids []string) (models.QuoteSet, error)
}

// CoinGeckoService reads spot quotes from the CoinGecko simple/price API.
type CoinGeckoService struct {
	client   *http.Client
	endpoint string
	currency string
	retries  int
	backoff  time.Duration
	log      *logrus.Logger
}

func NewCoinGeckoService(cfg config.Config, log *logrus.Logger) *CoinGeckoService {
	return &CoinGeckoService{
		client:   &http.Client{Timeout: cfg.PriceTimeout},
		endpoint: cfg.PriceEndpoint,
		currency: cfg.QuoteCurrency,
		retries:  cfg.PriceRetries,
		backoff:  cfg.PriceBackoff,
		log:      log,
	}
}

func (p *CoinGeckoService) Currency() string {
	return p.currency
}

// FetchQuotes returns the quotes the source knows for ids. Ids are
// normalised first; an empty list costs no request.
func (p *CoinGeckoService) FetchQuotes(ctx context.Context, ids []string) (models.QuoteSet, error) {
	ids = models.NormalizeIDs(ids)
	if len(ids) == 0 {
		return models.QuoteSet{}, nil
	}

	u, err := url.Parse(p.endpoint)
	if err != nil {
		return models.QuoteSet{}, fmt.Errorf("%w: bad endpoint %q: %v", ErrSourceUnavailable, p.endpoint, err)
	}
	q := u.Query()
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", p.currency)
	q.Set("include_market_cap", "true")
	q.Set("include_24hr_change", "true")
	u.RawQuery = q.Encode()
	addr := u.String()

	op := func() (models.QuoteSet, error) {
		quotes, retry, err := p.fetchOnce(ctx, addr)
		if err != nil && !retry {
			return nil, backoff.Permanent(err)
		}
		return quotes, err
	}
	notify := func(err error, wait time.Duration) {
		p.log.Debugf("price fetch failed, retrying in %s: %v", wait, err)
	}
	quotes, err := backoff.RetryNotifyWithData(op, p.schedule(ctx), notify)
	if err != nil {
		if !errors.Is(err, ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		p.log.Warnf("price fetch for %s failed: %v", strings.Join(ids, ","), err)
		return models.QuoteSet{}, err
	}
	return quotes, nil
}

// schedule doubles the wait after every failed attempt, starting at the
// configured backoff, for at most the configured number of retries.
func (p *CoinGeckoService) schedule(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.backoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.retries)), ctx)
}

// fetchOnce performs a single GET. retry reports whether the failure is
// worth another attempt.
func (p *CoinGeckoService) fetchOnce(ctx context.Context, addr string) (quotes models.QuoteSet, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()
	p.log.Debugf("%v %v%v %v", req.Method, req.URL.Host, req.URL.Path, resp.Status)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retry = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retry, fmt.Errorf("%w: GET %v%v: %v", ErrSourceUnavailable, req.URL.Host, req.URL.Path, resp.Status)
	}

	var raw map[string]map[string]decimal.NullDecimal
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, false, fmt.Errorf("%w: decode response: %v", ErrSourceUnavailable, err)
	}
	return models.QuoteSetFromRaw(p.currency, raw), false, nil
}
