// Package api provides the HTTP REST API server for ratesd.
//
// It exposes endpoints for currency conversion against the ECB reference
// rates, historical timeframe queries, dataset status, and WebSocket
// streaming of refresh events.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/openfx/ratesd/internal/config"
	"github.com/openfx/ratesd/internal/ecb"
	"github.com/openfx/ratesd/internal/rates"
	"github.com/openfx/ratesd/pkg/utils"
)

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	handle  *rates.SharedDataset
	loader  *ecb.Loader
	wsHub   *WSHub
	version string
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, handle *rates.SharedDataset, loader *ecb.Loader, version string) *Server {
	srv := &Server{
		cfg:     cfg,
		handle:  handle,
		loader:  loader,
		wsHub:   NewWSHub(),
		version: version,
	}

	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server and shuts it down gracefully
// when ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start WebSocket hub
	go s.wsHub.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Println("Shutting down server...")
		shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutCtx)
	}
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)

	// Dataset index
	r.Get("/", s.handleIndex)

	// Conversion
	r.Get("/rates", s.handleRatesGet)
	r.Post("/rates", s.handleRatesPost)
	r.Post("/rates/timeframe", s.handleTimeframe)

	// Status
	r.Get("/status", s.handleStatus)

	// WebSocket
	r.Get("/ws", s.handleWebSocket)

	return r
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// RatesRequest is the body for POST /rates. GET /rates takes the same
// fields as query parameters, with to as a comma-separated list.
type RatesRequest struct {
	Date string   `json:"date,omitempty"` // YYYY-MM-DD, default latest
	From string   `json:"from,omitempty"` // base currency, default EUR
	To   []string `json:"to,omitempty"`   // filter, default all
}

// TimeframeRequest is the body for POST /rates/timeframe.
type TimeframeRequest struct {
	Start string   `json:"start,omitempty"` // YYYY-MM-DD, default dataset start
	End   string   `json:"end,omitempty"`   // YYYY-MM-DD, default dataset end
	From  string   `json:"from,omitempty"`  // base currency, default EUR
	To    []string `json:"to,omitempty"`    // filter, default all
}

// DayRates is one published day rebased to the requested currency.
// Currencies without a quote on that day carry a null rate.
type DayRates struct {
	Date  string              `json:"date"`
	Base  string              `json:"base"`
	Rates map[string]*float64 `json:"rates"`
}

// TimeframeDay is one day inside a timeframe response.
type TimeframeDay struct {
	Date  string              `json:"date"`
	Rates map[string]*float64 `json:"rates"`
}

// TimeframeRates is the payload for POST /rates/timeframe.
type TimeframeRates struct {
	Base  string         `json:"base"`
	Start string         `json:"start"`
	End   string         `json:"end"`
	Days  []TimeframeDay `json:"days"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":      "ok",
			"version":     s.version,
			"publication": utils.PublicationStatus(),
			"time_cet":    utils.FormatDateTimeCET(utils.NowCET()),
		},
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ds := s.handle.Snapshot()
	if len(ds.Days) == 0 {
		writeError(w, http.StatusInternalServerError, "no rates available")
		return
	}

	latest, _ := ds.Latest()
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"currencies": ds.Currencies,
			"timeframe": map[string]string{
				"start": utils.FormatDate(ds.Days[0].Date),
				"end":   utils.FormatDate(latest.Date),
			},
		},
	})
}

func (s *Server) handleRatesGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := RatesRequest{
		Date: q.Get("date"),
		From: q.Get("from"),
	}
	if to := q.Get("to"); to != "" {
		req.To = strings.Split(to, ",")
	}
	s.respondRates(w, req)
}

func (s *Server) handleRatesPost(w http.ResponseWriter, r *http.Request) {
	var req RatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.respondRates(w, req)
}

// respondRates resolves a single-day conversion request.
func (s *Server) respondRates(w http.ResponseWriter, req RatesRequest) {
	ds := s.handle.Snapshot()
	if len(ds.Days) == 0 {
		writeError(w, http.StatusInternalServerError, "no rates available")
		return
	}

	// Resolve the day: latest by default, otherwise the nearest
	// published day on or before the requested date.
	var day rates.Day
	if req.Date == "" {
		day, _ = ds.Latest()
	} else {
		date, err := utils.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q; use YYYY-MM-DD", req.Date))
			return
		}
		i, ok := ds.DayOnOrBefore(date)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no rates available on or before %s", req.Date))
			return
		}
		day = ds.Days[i]
	}

	base, to, ok := s.resolveCurrencies(w, ds, req.From, req.To)
	if !ok {
		return
	}

	rebased, ok := day.Rebase(base, ds.Currencies)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no %s rate published on %s", base, utils.FormatDate(day.Date)))
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: DayRates{
			Date:  utils.FormatDate(day.Date),
			Base:  base,
			Rates: rateMap(rebased, ds.Currencies, base, to),
		},
	})
}

func (s *Server) handleTimeframe(w http.ResponseWriter, r *http.Request) {
	var req TimeframeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ds := s.handle.Snapshot()
	if len(ds.Days) == 0 {
		writeError(w, http.StatusInternalServerError, "no rates available")
		return
	}

	var start, end *time.Time
	if req.Start != "" {
		t, err := utils.ParseDate(req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid start %q; use YYYY-MM-DD", req.Start))
			return
		}
		start = &t
	}
	if req.End != "" {
		t, err := utils.ParseDate(req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid end %q; use YYYY-MM-DD", req.End))
			return
		}
		end = &t
	}

	lo, hi, err := ds.Timeframe(start, end)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	base, to, ok := s.resolveCurrencies(w, ds, req.From, req.To)
	if !ok {
		return
	}

	// Days where the base has no quote are skipped rather than erroring
	// out the whole selection.
	days := make([]TimeframeDay, 0, hi-lo)
	for _, d := range ds.Days[lo:hi] {
		rebased, ok := d.Rebase(base, ds.Currencies)
		if !ok {
			continue
		}
		days = append(days, TimeframeDay{
			Date:  utils.FormatDate(d.Date),
			Rates: rateMap(rebased, ds.Currencies, base, to),
		})
	}

	if len(days) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no days with a published %s rate in the selected timeframe", base))
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: TimeframeRates{
			Base:  base,
			Start: days[0].Date,
			End:   days[len(days)-1].Date,
			Days:  days,
		},
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ds := s.handle.Snapshot()

	data := map[string]interface{}{
		"feed_url":              s.cfg.Feed.URL,
		"cache_path":            s.cfg.Cache.Path,
		"refresh_minute_of_day": s.cfg.Refresh.MinuteOfDay,
		"days":                  len(ds.Days),
		"currencies":            len(ds.Currencies),
		"stale":                 s.loader.Stale(ds),
		"publication":           utils.PublicationStatus(),
		"ws_clients":            s.wsHub.ClientCount(),
	}
	if latest, ok := ds.Latest(); ok {
		data["latest"] = utils.FormatDate(latest.Date)
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// NotifyRefresh broadcasts a dataset_refreshed event to WebSocket clients.
// Wired as the refresher's swap callback.
func (s *Server) NotifyRefresh(ds *rates.Dataset) {
	data := map[string]interface{}{
		"days":       len(ds.Days),
		"currencies": len(ds.Currencies),
	}
	if latest, ok := ds.Latest(); ok {
		data["latest"] = utils.FormatDate(latest.Date)
	}
	s.wsHub.Broadcast(WSMessage{
		Type: "dataset_refreshed",
		Data: data,
	})
}

// ============================================================
// Helpers
// ============================================================

var currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)

// parseCurrency uppercases and validates a currency code.
func parseCurrency(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if !currencyRe.MatchString(code) {
		return "", fmt.Errorf("invalid currency code %q", raw)
	}
	return code, nil
}

// resolveCurrencies validates the base and filter codes against the
// catalog, writing the error response itself when validation fails.
func (s *Server) resolveCurrencies(w http.ResponseWriter, ds *rates.Dataset, from string, toRaw []string) (string, []string, bool) {
	base := rates.EUR
	if from != "" {
		code, err := parseCurrency(from)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return "", nil, false
		}
		base = code
	}

	to := make([]string, 0, len(toRaw))
	for _, raw := range toRaw {
		code, err := parseCurrency(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return "", nil, false
		}
		to = append(to, code)
	}

	var missing []string
	if !ds.Currencies.Has(base) {
		missing = append(missing, base)
	}
	for _, code := range to {
		if !ds.Currencies.Has(code) {
			missing = append(missing, code)
		}
	}
	if len(missing) > 0 {
		writeError(w, http.StatusNotFound, "currencies not found: "+strings.Join(missing, ", "))
		return "", nil, false
	}

	return base, to, true
}

// rateMap projects a rebased day onto a currency-keyed map, excluding
// the base itself. A nil entry means no quote was published.
func rateMap(day rates.Day, catalog rates.Catalog, base string, to []string) map[string]*float64 {
	out := make(map[string]*float64)
	if len(to) > 0 {
		for _, code := range to {
			if code == base {
				continue
			}
			if i, ok := catalog.Index(code); ok {
				out[code] = day.Rates[i]
			}
		}
		return out
	}
	for i, code := range catalog {
		if code == base {
			continue
		}
		out[code] = day.Rates[i]
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

// ============================================================
// WebSocket Hub
// ============================================================

// WSMessage is a message sent over WebSocket connections.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// WSHub manages WebSocket connections and message broadcasting.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*WSClient]bool
	broadcast  chan WSMessage
	register   chan *WSClient
	unregister chan *WSClient
}

// WSClient represents a single WebSocket connection.
type WSClient struct {
	hub  *WSHub
	send chan WSMessage
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WSMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

// Run starts the hub event loop.
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Slow client; disconnect
					h.mu.RUnlock()
					h.mu.Lock()
					delete(h.clients, client)
					close(client.send)
					h.mu.Unlock()
					h.mu.RLock()
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast sends a message to all connected WebSocket clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		// Drop message if broadcast channel is full
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub.
func (h *WSHub) Register(client *WSClient) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *WSHub) Unregister(client *WSClient) {
	h.unregister <- client
}
