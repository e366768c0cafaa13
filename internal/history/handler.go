package history

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/rickgao/quantdash/internal/api"
	"github.com/rickgao/quantdash/internal/model"
)

// MarketData serves live quotes and reference listings. Satisfied by *api.Client.
type MarketData interface {
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
	GetSymbols(ctx context.Context, exchange string) ([]api.SymbolInfo, error)
	GetCountries(ctx context.Context) ([]api.Country, error)
}

// DefaultExchange is listed by /api/v1/symbols when no exchange is given.
const DefaultExchange = "US"

// BarJSON is one bar in a history response.
type BarJSON struct {
	T int64   `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

// HistoryResponse is the body of GET /api/v1/history/{symbol}.
type HistoryResponse struct {
	Symbol     string    `json:"symbol"`
	Resolution string    `json:"resolution"`
	Status     string    `json:"status"`
	Source     string    `json:"source,omitempty"`
	Bars       []BarJSON `json:"bars"`
}

// QuoteResponse is the body of GET /api/v1/quote/{symbol}.
type QuoteResponse struct {
	Symbol string `json:"symbol"`
	api.QuoteResponse
}

// SymbolsResponse is the body of GET /api/v1/symbols.
type SymbolsResponse struct {
	Exchange string           `json:"exchange"`
	Count    int              `json:"count"`
	Symbols  []api.SymbolInfo `json:"symbols"`
}

// CountriesResponse is the body of GET /api/v1/countries.
type CountriesResponse struct {
	Count     int           `json:"count"`
	Countries []api.Country `json:"countries"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler exposes the service and market data over HTTP.
type Handler struct {
	service *Service
	market  MarketData
	logger  *slog.Logger
	now     func() time.Time
}

// NewHandler creates a handler. market may be nil, in which case only the
// history route is registered.
func NewHandler(service *Service, market MarketData, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, market: market, logger: logger, now: time.Now}
}

// Register mounts the routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/history/{symbol}", h.handleHistory).Methods(http.MethodGet).Name("history")
	if h.market != nil {
		r.HandleFunc("/api/v1/quote/{symbol}", h.handleQuote).Methods(http.MethodGet).Name("quote")
		r.HandleFunc("/api/v1/symbols", h.handleSymbols).Methods(http.MethodGet).Name("symbols")
		r.HandleFunc("/api/v1/countries", h.handleCountries).Methods(http.MethodGet).Name("countries")
	}
}

// handleHistory answers ?resolution=D&from=<unix>&to=<unix>. Missing values
// default to daily bars over the last 30 days.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	q := Query{
		Symbol:     mux.Vars(r)["symbol"],
		Resolution: params.Get("resolution"),
	}
	if q.Resolution == "" {
		q.Resolution = "D"
	}

	var err error
	if q.To, err = parseUnix(params.Get("to"), h.now().Unix()); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid to: "+err.Error())
		return
	}
	if q.From, err = parseUnix(params.Get("from"), q.To-int64(DefaultLookback/time.Second)); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid from: "+err.Error())
		return
	}

	res, err := h.service.Bars(r.Context(), q)
	switch {
	case errors.Is(err, ErrInvalidSymbol), errors.Is(err, ErrInvalidResolution), errors.Is(err, ErrInvalidRange):
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	resp := HistoryResponse{
		Symbol:     res.Symbol,
		Resolution: res.Resolution,
		Status:     api.StatusOK,
		Source:     res.Source,
		Bars:       make([]BarJSON, 0, len(res.Bars)),
	}
	if len(res.Bars) == 0 {
		resp.Status = api.StatusNoData
	}
	for _, b := range res.Bars {
		resp.Bars = append(resp.Bars, BarJSON{T: b.Timestamp, O: b.Open, H: b.High, L: b.Low, C: b.Close, V: b.Volume})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := model.NormalizeSymbol(mux.Vars(r)["symbol"])
	if symbol == "" {
		h.writeError(w, http.StatusBadRequest, ErrInvalidSymbol.Error())
		return
	}

	q, err := h.market.GetQuote(r.Context(), symbol)
	switch {
	case errors.Is(err, api.ErrUnknownSymbol):
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		h.logger.Warn("quote failed", "symbol", symbol, "error", err)
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, QuoteResponse{
		Symbol: q.Symbol,
		QuoteResponse: api.QuoteResponse{
			Current:       q.Current,
			Change:        q.Change,
			PercentChange: q.PercentChange,
			High:          q.High,
			Low:           q.Low,
			Open:          q.Open,
			PreviousClose: q.PreviousClose,
			Timestamp:     q.Timestamp,
		},
	})
}

// handleSymbols answers ?exchange=US with the exchange's listings.
func (h *Handler) handleSymbols(w http.ResponseWriter, r *http.Request) {
	exchange := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("exchange")))
	if exchange == "" {
		exchange = DefaultExchange
	}

	syms, err := h.market.GetSymbols(r.Context(), exchange)
	if err != nil {
		h.logger.Warn("symbol listing failed", "exchange", exchange, "error", err)
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, SymbolsResponse{Exchange: exchange, Count: len(syms), Symbols: syms})
}

func (h *Handler) handleCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := h.market.GetCountries(r.Context())
	if err != nil {
		h.logger.Warn("country listing failed", "error", err)
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, CountriesResponse{Count: len(countries), Countries: countries})
}

func parseUnix(s string, def int64) (int64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("write response failed", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}
