package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"cryptofolio/internal/database"
	"cryptofolio/internal/display"
	"cryptofolio/internal/models"
	"cryptofolio/internal/service"
	"cryptofolio/internal/valuation"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	svc *service.PortfolioService
	log *logrus.Logger
}

func NewHandler(svc *service.PortfolioService, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes registers every endpoint on r.
func (h *Handler) Routes(r gin.IRouter) {
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/", h.Index)
	r.GET("/portfolio", h.PortfolioPage)
	r.GET("/api/portfolio", h.GetPortfolio)
	r.POST("/buy", h.PostBuy)
	r.GET("/price", h.GetPrice)
	r.POST("/snapshot", h.PostSnapshot)
	r.GET("/history", h.GetHistory)
	r.GET("/history/stats", h.GetHistoryStats)
	r.GET("/history/export", h.ExportHistory)
}

// fail maps service errors to a status and a stable error code.
// unknownStatus is the status used for an unknown asset.
func (h *Handler) fail(c *gin.Context, err error, unknownStatus int) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, valuation.ErrInvalidQuantity):
		status, code = http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, valuation.ErrUnknownAsset):
		status, code = unknownStatus, "unknown_asset"
	case errors.Is(err, service.ErrNoAssets):
		status, code = http.StatusBadRequest, "no_assets"
	case errors.Is(err, service.ErrNoData):
		status, code = http.StatusNotFound, "no_data"
	case errors.Is(err, service.ErrSourceUnavailable):
		status, code = http.StatusBadGateway, "source_unavailable"
	}
	if status >= 500 {
		h.log.Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	} else {
		h.log.Warnf("%s %s rejected: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "code": code})
}

func (h *Handler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{"Currency": h.svc.Currency()})
}

func (h *Handler) PortfolioPage(c *gin.Context) {
	report, err := h.svc.GetReport(c.Request.Context())
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.HTML(http.StatusOK, "portfolio.html", newPortfolioView(report))
}

func (h *Handler) GetPortfolio(c *gin.Context) {
	report, err := h.svc.GetReport(c.Request.Context())
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"lines":        report.Lines,
		"total_value":  report.TotalValue,
		"currency":     report.Currency,
		"degraded":     report.Degraded,
		"generated_at": report.GeneratedAt,
	})
}

type BuyRequest struct {
	Crypto   string        `form:"crypto" json:"crypto" binding:"required"`
	Quantity QuantityParam `form:"quantity" json:"quantity" binding:"required"`
}

// QuantityParam takes a JSON quantity as a number or a string and keeps its
// text; ParseQuantity decides whether it is valid.
type QuantityParam string

func (q *QuantityParam) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*q = QuantityParam(s)
		return nil
	}
	*q = QuantityParam(bytes.TrimSpace(b))
	return nil
}

// PostBuy accepts a form post from the HTML page or a JSON body. Forms are
// redirected to the portfolio page, JSON callers get the buy result.
func (h *Handler) PostBuy(c *gin.Context) {
	var req BuyRequest
	if err := c.ShouldBind(&req); err != nil {
		h.log.Warnf("invalid buy body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "bad_request"})
		return
	}

	q, err := valuation.ParseQuantity(string(req.Quantity))
	if err != nil {
		h.fail(c, err, http.StatusBadRequest)
		return
	}

	res, err := h.svc.Buy(c.Request.Context(), req.Crypto, q)
	if err != nil {
		h.fail(c, err, http.StatusBadRequest)
		return
	}
	if c.ContentType() == binding.MIMEJSON {
		c.JSON(http.StatusOK, res)
		return
	}
	c.Redirect(http.StatusSeeOther, "/portfolio")
}

func (h *Handler) GetPrice(c *gin.Context) {
	id := models.NormalizeID(c.Query("crypto"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "crypto query parameter is required", "code": "bad_request"})
		return
	}
	q, err := h.svc.GetQuote(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, q.Raw(h.svc.Currency()))
}

type SnapshotRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

func (h *Handler) PostSnapshot(c *gin.Context) {
	var req SnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid snapshot body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "bad_request"})
		return
	}
	quotes, err := h.svc.Snapshot(c.Request.Context(), req.IDs)
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": quotes.Raw(h.svc.Currency())})
}

func (h *Handler) GetHistory(c *gin.Context) {
	entries, err := h.svc.History(c.Request.Context())
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	res := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		res = append(res, gin.H{
			"timestamp": e.Timestamp.Format(database.TimestampLayout),
			"data":      e.Quotes.Raw(h.svc.Currency()),
		})
	}
	c.JSON(http.StatusOK, gin.H{"history": res})
}

func (h *Handler) GetHistoryStats(c *gin.Context) {
	st, err := h.svc.HistoryStats(c.Request.Context())
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currency": h.svc.Currency(), "stats": st})
}

// ExportHistory streams the history log as a CSV attachment.
func (h *Handler) ExportHistory(c *gin.Context) {
	entries, err := h.svc.History(c.Request.Context())
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	var buf bytes.Buffer
	if err := database.WriteHistoryCSV(&buf, entries, h.svc.Currency()); err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="history.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

type lineView struct {
	Name     string
	Amount   string
	Price    string
	Value    string
	HasPrice bool
}

type portfolioView struct {
	Lines      []lineView
	TotalValue string
	Degraded   bool
	UpdatedAt  string
}

func newPortfolioView(r models.ValuationReport) portfolioView {
	v := portfolioView{
		TotalValue: display.Money(r.TotalValue, r.Currency),
		Degraded:   r.Degraded,
		UpdatedAt:  r.GeneratedAt.Format(database.TimestampLayout),
	}
	for _, l := range r.Lines {
		v.Lines = append(v.Lines, lineView{
			Name:     display.Name(l.AssetID),
			Amount:   display.Quantity(l.Quantity),
			Price:    display.Price(l.UnitPrice, r.Currency),
			Value:    display.Money(l.Value, r.Currency),
			HasPrice: l.Priced(),
		})
	}
	return v
}
