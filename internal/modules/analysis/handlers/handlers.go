// Package handlers provides HTTP handlers for analysis and compute operations.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/finmetrics/internal/domain"
	"github.com/aristath/finmetrics/internal/modules/analysis"
	"github.com/aristath/finmetrics/internal/modules/metrics"
	"github.com/aristath/finmetrics/internal/modules/montecarlo"
	"github.com/aristath/finmetrics/internal/modules/optimization"
	"github.com/aristath/finmetrics/internal/modules/returns"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

const dateLayout = "2006-01-02"

// maxBodyBytes bounds compute request bodies
const maxBodyBytes = 8 << 20

// noBenchmark as the benchmark query value disables alpha/beta
const noBenchmark = "none"

// Handler handles analysis HTTP requests
type Handler struct {
	service   *analysis.Service
	engine    *metrics.Engine
	simulator *montecarlo.Simulator
	optimizer *optimization.MVOptimizer
	log       zerolog.Logger
	now       func() time.Time
}

// NewHandler creates a new analysis handler
func NewHandler(
	service *analysis.Service,
	engine *metrics.Engine,
	simulator *montecarlo.Simulator,
	optimizer *optimization.MVOptimizer,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service:   service,
		engine:    engine,
		simulator: simulator,
		optimizer: optimizer,
		log:       log.With().Str("handler", "analysis").Logger(),
		now:       time.Now,
	}
}

// HandleAnalyze handles GET /api/analysis/{symbol} and its sub-resources.
// view selects the part of the report written; empty writes the full report.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request, view string) {
	req, err := h.parseAnalysisRequest(r)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	report, err := h.service.Analyze(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	var data interface{}
	switch view {
	case "metrics":
		data = map[string]interface{}{
			"symbol":   report.Symbol(),
			"metrics":  report.Metrics(),
			"warnings": nonNil(report.Warnings()),
		}
	case "montecarlo":
		data = map[string]interface{}{
			"symbol":      report.Symbol(),
			"monte_carlo": report.MonteCarlo(),
		}
	case "portfolio":
		data = map[string]interface{}{
			"symbol":    report.Symbol(),
			"portfolio": report.Portfolio(),
		}
	case "charts":
		data = map[string]interface{}{
			"symbol": report.Symbol(),
			"charts": report.Charts(),
		}
	default:
		data = report
	}

	h.writeData(w, http.StatusOK, data)
}

// parseAnalysisRequest builds an analysis.Request from the path and query.
// The range defaults to the year ending today.
func (h *Handler) parseAnalysisRequest(r *http.Request) (analysis.Request, error) {
	q := r.URL.Query()
	req := analysis.Request{Symbol: strings.ToUpper(chi.URLParam(r, "symbol"))}

	today := h.now().UTC().Truncate(24 * time.Hour)
	req.End = today
	if v := q.Get("end"); v != "" {
		end, err := time.Parse(dateLayout, v)
		if err != nil {
			return req, domain.ValidationError{Field: "end", Message: "must be YYYY-MM-DD"}
		}
		req.End = end
	}
	req.Start = req.End.AddDate(-1, 0, 0)
	if v := q.Get("start"); v != "" {
		start, err := time.Parse(dateLayout, v)
		if err != nil {
			return req, domain.ValidationError{Field: "start", Message: "must be YYYY-MM-DD"}
		}
		req.Start = start
	}

	switch b := q.Get("benchmark"); {
	case strings.EqualFold(b, noBenchmark):
		req.NoBenchmark = true
	default:
		req.Benchmark = b
	}

	if v := q.Get("risk_free_rate"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, domain.ValidationError{Field: "risk_free_rate", Message: "must be a number"}
		}
		req.RiskFreeRate = &rate
	}
	if v := q.Get("simulations"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, domain.ValidationError{Field: "simulations", Message: "must be an integer"}
		}
		req.Simulations = n
	}
	if v := q.Get("confidence"); v != "" {
		c, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, domain.ValidationError{Field: "confidence", Message: "must be a number"}
		}
		req.Confidence = c
	}
	if v := q.Get("seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return req, domain.ValidationError{Field: "seed", Message: "must be a non-negative integer"}
		}
		req.Seed = &seed
	}

	return req, nil
}

// priceBarRequest accepts dates as YYYY-MM-DD or RFC 3339
type priceBarRequest struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

func toSeries(symbol string, bars []priceBarRequest, field string) (domain.PriceSeries, error) {
	series := domain.PriceSeries{Symbol: symbol, Bars: make([]domain.PriceBar, len(bars))}
	for i, b := range bars {
		date, err := parseDate(b.Date)
		if err != nil {
			return series, domain.ValidationError{Field: field, Message: fmt.Sprintf("bar %d: invalid date %q", i, b.Date)}
		}
		series.Bars[i] = domain.PriceBar{Date: date, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
	}
	if err := series.Validate(); err != nil {
		return series, domain.ValidationError{Field: field, Message: err.Error()}
	}
	return series, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// HandleComputeReturns handles POST /api/compute/returns
func (h *Handler) HandleComputeReturns(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Symbol string            `json:"symbol"`
		Prices []priceBarRequest `json:"prices"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	prices, err := toSeries(body.Symbol, body.Prices, "prices")
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	rets, err := returns.Compute(prices)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, http.StatusOK, rets)
}

// HandleComputeMetrics handles POST /api/compute/metrics
func (h *Handler) HandleComputeMetrics(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Symbol         string            `json:"symbol"`
		Prices         []priceBarRequest `json:"prices"`
		Benchmark      []priceBarRequest `json:"benchmark"`
		RiskFreeRate   *float64          `json:"risk_free_rate"`
		PeriodsPerYear int               `json:"periods_per_year"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	prices, err := toSeries(body.Symbol, body.Prices, "prices")
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	var benchmark *domain.PriceSeries
	if len(body.Benchmark) > 0 {
		b, err := toSeries("benchmark", body.Benchmark, "benchmark")
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		benchmark = &b
	}

	opts := h.engine.Options()
	if body.RiskFreeRate != nil {
		if math.IsNaN(*body.RiskFreeRate) || math.IsInf(*body.RiskFreeRate, 0) {
			h.writeServiceError(w, domain.ValidationError{Field: "risk_free_rate", Message: "must be finite"})
			return
		}
		opts.RiskFreeRate = *body.RiskFreeRate
	}
	if body.PeriodsPerYear < 0 {
		h.writeServiceError(w, domain.ValidationError{Field: "periods_per_year", Message: "must be positive"})
		return
	}
	if body.PeriodsPerYear > 0 {
		opts.PeriodsPerYear = body.PeriodsPerYear
	}

	record, warnings, err := h.engine.WithOptions(opts).ComputeFromPrices(prices, benchmark)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"metrics":  record,
		"warnings": nonNil(warnings),
	})
}

// HandleComputeMonteCarlo handles POST /api/compute/montecarlo
func (h *Handler) HandleComputeMonteCarlo(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Returns     []float64 `json:"returns"`
		Simulations int       `json:"simulations"`
		Confidence  float64   `json:"confidence"`
		Seed        *uint64   `json:"seed"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	if body.Simulations < 0 {
		h.writeServiceError(w, domain.ValidationError{Field: "simulations", Message: "must not be negative"})
		return
	}
	for i, v := range body.Returns {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			h.writeServiceError(w, domain.ValidationError{Field: "returns", Message: fmt.Sprintf("value %d is not finite", i)})
			return
		}
	}

	result, err := h.simulator.Run(r.Context(), body.Returns, montecarlo.Params{
		Simulations: body.Simulations,
		Confidence:  body.Confidence,
		Seed:        body.Seed,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, http.StatusOK, result)
}

// HandleComputePortfolio handles POST /api/compute/portfolio.
// Either returns (one row per period, one column per asset) or prices (bars
// keyed by asset) must be given. Price series are converted to returns and
// aligned on the dates every asset shares.
func (h *Handler) HandleComputePortfolio(w http.ResponseWriter, r *http.Request) {
	var body portfolioRequest
	if !h.decode(w, r, &body) {
		return
	}

	if len(body.Assets) == 0 {
		h.writeServiceError(w, domain.ValidationError{Field: "assets", Message: "at least one asset is required"})
		return
	}

	var (
		matrix *mat.Dense
		err    error
	)
	if len(body.Prices) > 0 {
		matrix, err = body.matrixFromPrices()
	} else {
		matrix, err = body.matrixFromReturns()
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	optimizer := h.optimizer
	if body.RiskFreeRate != nil {
		optimizer = optimizer.WithRiskFreeRate(*body.RiskFreeRate)
	}

	result, err := optimizer.Optimize(body.Assets, matrix)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, http.StatusOK, result)
}

type portfolioRequest struct {
	Assets       []string                     `json:"assets"`
	Returns      [][]float64                  `json:"returns"`
	Prices       map[string][]priceBarRequest `json:"prices"`
	RiskFreeRate *float64                     `json:"risk_free_rate"`
}

func (p portfolioRequest) matrixFromReturns() (*mat.Dense, error) {
	if len(p.Returns) == 0 {
		return nil, &domain.InsufficientDataError{What: "return periods", Required: 2, Got: 0}
	}

	cols := len(p.Assets)
	data := make([]float64, 0, len(p.Returns)*cols)
	for i, row := range p.Returns {
		if len(row) != cols {
			return nil, domain.ValidationError{
				Field:   "returns",
				Message: fmt.Sprintf("row %d has %d values, expected %d", i, len(row), cols),
			}
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(p.Returns), cols, data), nil
}

func (p portfolioRequest) matrixFromPrices() (*mat.Dense, error) {
	series := make([]domain.ReturnSeries, len(p.Assets))
	for i, asset := range p.Assets {
		bars, ok := p.Prices[asset]
		if !ok {
			return nil, domain.ValidationError{Field: "prices", Message: fmt.Sprintf("no prices for asset %q", asset)}
		}
		prices, err := toSeries(asset, bars, "prices."+asset)
		if err != nil {
			return nil, err
		}
		rets, err := returns.Compute(prices)
		if err != nil {
			return nil, err
		}
		series[i] = rets
	}

	m, _, err := returns.Matrix(p.Assets, series)
	return m, err
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// writeServiceError maps domain errors to HTTP status codes
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var (
		validation   domain.ValidationError
		insufficient *domain.InsufficientDataError
		unavailable  *domain.DataUnavailableError
		failure      *domain.OptimizationFailure
	)

	switch {
	case errors.As(err, &validation):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &failure):
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":        err.Error(),
			"status":       failure.Status,
			"last_weights": failure.LastWeights,
		})
	case errors.As(err, &insufficient):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &unavailable):
		h.writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		h.writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		h.log.Error().Err(err).Msg("Request failed")
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": h.now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
