package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"cryptofolio/internal/database"
	"cryptofolio/internal/models"
	"cryptofolio/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPrices answers from a fixed quote set, or fails with err.
type stubPrices struct {
	quotes models.QuoteSet
	err    error
}

func (s *stubPrices) FetchQuotes(ctx context.Context, ids []string) (models.QuoteSet, error) {
	if s.err != nil {
		return models.QuoteSet{}, s.err
	}
	out := models.QuoteSet{}
	for _, id := range ids {
		if q, ok := s.quotes[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func priced(id, price string) models.Quote {
	return models.Quote{
		AssetID:   id,
		Price:     decimal.NewNullDecimal(decimal.RequireFromString(price)),
		Change24h: decimal.NewNullDecimal(decimal.RequireFromString("1.5")),
	}
}

type fixture struct {
	router *gin.Engine
	prices *stubPrices
	store  *database.FileStore
}

func newFixture(t *testing.T) *fixture {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	dir := t.TempDir()
	prices := &stubPrices{quotes: models.QuoteSet{
		"bitcoin":  priced("bitcoin", "50000"),
		"ethereum": priced("ethereum", "2500"),
	}}
	store := database.NewFileStore(filepath.Join(dir, "dane.json"), log)
	history := database.NewHistoryLog(filepath.Join(dir, "history.json"), "usd", log)
	svc := service.NewPortfolioService(store, history, prices, "usd", log)
	return &fixture{router: NewRouter(NewHandler(svc, log)), prices: prices, store: store}
}

func (f *fixture) do(method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestBuyJSONThenPortfolio(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/buy", "application/json", `{"crypto": "Bitcoin", "quantity": 2}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode(t, w)
	assert.Equal(t, "bitcoin", res["asset_id"])
	assert.Equal(t, "100000", res["cost"])

	f.prices.quotes["bitcoin"] = priced("bitcoin", "60000")
	w = f.do(http.MethodGet, "/api/portfolio", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "120000", body["total_value"])
	assert.Equal(t, false, body["degraded"])
	assert.Len(t, body["lines"], 1)
}

func TestPortfolioTotalMatchesLines(t *testing.T) {
	f := newFixture(t)
	f.prices.quotes["shiba-inu"] = priced("shiba-inu", "0.00001")
	require.NoError(t, f.store.Save(context.Background(), models.Ledger{
		"shiba-inu": decimal.NewFromInt(100),
		"ethereum":  decimal.RequireFromString("0.333"),
	}))

	w := f.do(http.MethodGet, "/api/portfolio", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Lines      []models.ValuationLine `json:"lines"`
		TotalValue decimal.Decimal        `json:"total_value"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Lines, 2)

	sum := decimal.Zero
	for _, l := range body.Lines {
		sum = sum.Add(l.Value)
	}
	assert.True(t, body.TotalValue.Equal(sum), "total %s, lines sum to %s", body.TotalValue, sum)
	assert.True(t, body.TotalValue.Equal(decimal.RequireFromString("832.501")))
}

func TestBuyFormRedirects(t *testing.T) {
	f := newFixture(t)
	form := url.Values{"crypto": {"ethereum"}, "quantity": {"0.5"}}
	w := f.do(http.MethodPost, "/buy", "application/x-www-form-urlencoded", form.Encode())
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/portfolio", w.Header().Get("Location"))

	l, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, l.Quantity("ethereum").Equal(decimal.RequireFromString("0.5")))
}

func TestBuyRejections(t *testing.T) {
	const form, jsonBody = "application/x-www-form-urlencoded", "application/json"
	cases := []struct {
		name        string
		contentType string
		body        string
		status      int
		code        string
	}{
		{"zero", form, url.Values{"crypto": {"bitcoin"}, "quantity": {"0"}}.Encode(), http.StatusBadRequest, "invalid_quantity"},
		{"negative", form, url.Values{"crypto": {"bitcoin"}, "quantity": {"-1"}}.Encode(), http.StatusBadRequest, "invalid_quantity"},
		{"not a number", form, url.Values{"crypto": {"bitcoin"}, "quantity": {"lots"}}.Encode(), http.StatusBadRequest, "invalid_quantity"},
		{"unknown", form, url.Values{"crypto": {"notacoin"}, "quantity": {"1"}}.Encode(), http.StatusBadRequest, "unknown_asset"},
		{"missing field", form, url.Values{"crypto": {"bitcoin"}}.Encode(), http.StatusBadRequest, "bad_request"},
		{"json not a number", jsonBody, `{"crypto": "bitcoin", "quantity": "lots"}`, http.StatusBadRequest, "invalid_quantity"},
		{"json boolean", jsonBody, `{"crypto": "bitcoin", "quantity": true}`, http.StatusBadRequest, "invalid_quantity"},
		{"json negative", jsonBody, `{"crypto": "bitcoin", "quantity": -2}`, http.StatusBadRequest, "invalid_quantity"},
		{"json unknown", jsonBody, `{"crypto": "notacoin", "quantity": "1"}`, http.StatusBadRequest, "unknown_asset"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			w := f.do(http.MethodPost, "/buy", tc.contentType, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Equal(t, tc.code, decode(t, w)["code"])

			l, err := f.store.Load(context.Background())
			require.NoError(t, err)
			assert.Empty(t, l)
		})
	}
}

func TestBuyDuringOutage(t *testing.T) {
	f := newFixture(t)
	f.prices.err = fmt.Errorf("%w: timeout", service.ErrSourceUnavailable)
	w := f.do(http.MethodPost, "/buy", "application/json", `{"crypto": "bitcoin", "quantity": "1"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "source_unavailable", decode(t, w)["code"])
}

func TestPortfolioPage(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Save(context.Background(), models.Ledger{
		"bitcoin":  decimal.NewFromInt(1),
		"dogecoin": decimal.NewFromInt(100),
	}))

	w := f.do(http.MethodGet, "/portfolio", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	page := w.Body.String()
	assert.Contains(t, page, "Bitcoin")
	assert.Contains(t, page, "$50000.00")
	// unpriced lines are shown, not dropped
	assert.Contains(t, page, "Dogecoin")
	assert.Contains(t, page, "no data")
	assert.Contains(t, page, "Total value: $50000.00")
}

func TestPortfolioDuringOutage(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Save(context.Background(), models.Ledger{"ethereum": decimal.NewFromInt(5)}))
	f.prices.err = fmt.Errorf("%w: 503", service.ErrSourceUnavailable)

	w := f.do(http.MethodGet, "/api/portfolio", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "0", body["total_value"])
	assert.Equal(t, true, body["degraded"])

	w = f.do(http.MethodGet, "/portfolio", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Prices are currently unavailable")
}

func TestGetPrice(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/price?crypto=BITCOIN", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"usd": 50000, "usd_24h_change": 1.5}`, w.Body.String())

	w = f.do(http.MethodGet, "/price?crypto=notacoin", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "unknown_asset", decode(t, w)["code"])

	w = f.do(http.MethodGet, "/price", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSnapshotAndHistory(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/snapshot", "application/json", `{"ids": ["bitcoin", "notacoin"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"data": {"bitcoin": {"usd": 50000, "usd_24h_change": 1.5}}}`, w.Body.String())

	w = f.do(http.MethodPost, "/snapshot", "application/json", `{"ids": ["notacoin"]}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodGet, "/history", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		History []struct {
			Timestamp string                        `json:"timestamp"`
			Data      map[string]map[string]float64 `json:"data"`
		} `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.History, 1)
	assert.Equal(t, 50000.0, body.History[0].Data["bitcoin"]["usd"])
}

func TestHistoryStatsAndExport(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/history/stats", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"currency": "usd", "stats": []}`, w.Body.String())

	for i := 0; i < 2; i++ {
		w = f.do(http.MethodPost, "/snapshot", "application/json", `{"ids": ["bitcoin", "ethereum"]}`)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w = f.do(http.MethodGet, "/history/stats", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Stats []models.PriceStats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Stats, 2)
	assert.Equal(t, "bitcoin", body.Stats[0].AssetID)
	assert.Equal(t, 2, body.Stats[0].Samples)
	assert.True(t, body.Stats[0].Mean.Equal(decimal.NewFromInt(50000)))
	assert.True(t, body.Stats[1].Change.Decimal.IsZero())

	w = f.do(http.MethodGet, "/history/export", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "timestamp,asset_id,price,market_cap,change_24h,currency", lines[0])
	assert.Contains(t, lines[1], ",bitcoin,50000,,1.5,usd")
}

func TestIndex(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/buy"`)
}
