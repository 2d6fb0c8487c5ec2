package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/usmfum/usmd/internal/ledger"
	"github.com/usmfum/usmd/internal/logger"
	"github.com/usmfum/usmd/internal/oracle"
	"github.com/usmfum/usmd/internal/state"
	"github.com/usmfum/usmd/internal/types"
	"github.com/usmfum/usmd/internal/usm"
	"github.com/usmfum/usmd/internal/wadmath"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes the issuer's read surface and the mint/burn mutators as a
// JSON API for the caller-side strategy.
type WebServer struct {
	router *mux.Router
	port   string
	issuer *usm.USM
	ledger ledger.SupplyLedger
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, issuer *usm.USM, supplyLedger ledger.SupplyLedger) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		issuer: issuer,
		ledger: supplyLedger,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/pool", ws.handleGetPool).Methods("GET")
	api.HandleFunc("/supply", ws.handleGetSupply).Methods("GET")
	api.HandleFunc("/solvency", ws.handleGetSolvency).Methods("GET")
	api.HandleFunc("/receipts", ws.handleGetReceipts).Methods("GET")
	api.HandleFunc("/snapshots", ws.handleGetSnapshots).Methods("GET")
	api.HandleFunc("/mint", ws.handleMint).Methods("POST")
	api.HandleFunc("/burn", ws.handleBurn).Methods("POST")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if !dbHealthy {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":   ws.issuer.Name(),
			"symbol": ws.issuer.Symbol(),
		},
		"issuer_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"eth_pool":         ws.issuer.EthPool().String(),
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetPool returns the raw collateral pool value
func (ws *WebServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"eth_pool":  ws.issuer.EthPool().String(),
		"timestamp": time.Now().UTC(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetSupply returns the outstanding synthetic supply
func (ws *WebServer) handleGetSupply(w http.ResponseWriter, r *http.Request) {
	supply, err := ws.ledger.TotalSupply()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to read total supply")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to read total supply")
		return
	}

	response := map[string]interface{}{
		"total_supply": supply.String(),
		"symbol":       ws.issuer.Symbol(),
		"timestamp":    time.Now().UTC(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetSolvency returns live solvency metrics at the current oracle price
func (ws *WebServer) handleGetSolvency(w http.ResponseWriter, r *http.Request) {
	buffer, err := ws.issuer.EthBuffer()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to compute collateral buffer")
		ws.writeErrorResponse(w, statusForError(err), "Failed to compute collateral buffer")
		return
	}

	ratio, err := ws.issuer.DebtRatio()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to compute debt ratio")
		ws.writeErrorResponse(w, statusForError(err), "Failed to compute debt ratio")
		return
	}

	supply, err := ws.ledger.TotalSupply()
	if err != nil {
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to read total supply")
		return
	}

	response := map[string]interface{}{
		"eth_pool":     ws.issuer.EthPool().String(),
		"total_supply": supply.String(),
		"eth_buffer":   buffer.String(),
		"debt_ratio":   ratio.String(),
		"timestamp":    time.Now().UTC(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetReceipts returns recent operation receipts
func (ws *WebServer) handleGetReceipts(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20)

	receipts, err := state.GetRecentReceipts(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent receipts")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve receipts")
		return
	}

	response := map[string]interface{}{
		"receipts": receipts,
		"count":    len(receipts),
		"limit":    limit,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetSnapshots returns recent solvency snapshots
func (ws *WebServer) handleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20)

	snapshots, err := state.GetRecentSnapshots(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent snapshots")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve snapshots")
		return
	}

	response := map[string]interface{}{
		"snapshots": snapshots,
		"count":     len(snapshots),
		"limit":     limit,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// operationRequest is the body of mint and burn calls.
type operationRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"` // base-10 integer, smallest denomination
}

// handleMint mints synthetic units against deposited collateral
func (ws *WebServer) handleMint(w http.ResponseWriter, r *http.Request) {
	req, amount, ok := ws.decodeOperation(w, r)
	if !ok {
		return
	}

	usmAmount, err := ws.issuer.Mint(req.Account, amount)
	if err != nil {
		webLogger.Error().Err(err).Str("account", req.Account).Msg("Mint failed")
		ws.writeErrorResponse(w, statusForError(err), err.Error())
		return
	}

	receipt := types.OperationReceipt{
		OperationID: uuid.New().String(),
		Kind:        types.OperationMint,
		Account:     req.Account,
		EthAmount:   amount.String(),
		UsmAmount:   usmAmount.String(),
		Timestamp:   time.Now().UTC(),
	}
	ws.journal(receipt)

	ws.writeJSONResponse(w, http.StatusOK, receipt)
}

// handleBurn retires synthetic units and releases collateral
func (ws *WebServer) handleBurn(w http.ResponseWriter, r *http.Request) {
	req, amount, ok := ws.decodeOperation(w, r)
	if !ok {
		return
	}

	ethAmount, err := ws.issuer.Burn(req.Account, amount)
	if err != nil {
		webLogger.Error().Err(err).Str("account", req.Account).Msg("Burn failed")
		ws.writeErrorResponse(w, statusForError(err), err.Error())
		return
	}

	receipt := types.OperationReceipt{
		OperationID: uuid.New().String(),
		Kind:        types.OperationBurn,
		Account:     req.Account,
		EthAmount:   ethAmount.String(),
		UsmAmount:   amount.String(),
		Timestamp:   time.Now().UTC(),
	}
	ws.journal(receipt)

	ws.writeJSONResponse(w, http.StatusOK, receipt)
}

// decodeOperation validates a mint/burn request body.
func (ws *WebServer) decodeOperation(w http.ResponseWriter, r *http.Request) (operationRequest, sdkmath.Int, bool) {
	var req operationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return req, sdkmath.ZeroInt(), false
	}
	if req.Account == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Account is required")
		return req, sdkmath.ZeroInt(), false
	}

	amount, ok := sdkmath.NewIntFromString(req.Amount)
	if !ok || amount.IsNegative() {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Amount must be a non-negative base-10 integer")
		return req, sdkmath.ZeroInt(), false
	}

	return req, amount, true
}

// journal saves a receipt; failures are logged, never surfaced to the caller,
// since the operation itself has already committed.
func (ws *WebServer) journal(receipt types.OperationReceipt) {
	if _, err := state.SaveOperationReceipt(receipt); err != nil {
		webLogger.Error().Err(err).Str("operation_id", receipt.OperationID).Msg("Failed to journal operation receipt")
	}
}

// statusForError maps core error classes onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, oracle.ErrPrice):
		return http.StatusBadGateway
	case errors.Is(err, wadmath.ErrUnderflow),
		errors.Is(err, wadmath.ErrOverflow),
		errors.Is(err, wadmath.ErrDivisionByZero):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusConflict
	case errors.Is(err, usm.ErrInvariant):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func parseLimit(r *http.Request, fallback int) int {
	limit := fallback
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}
	return limit
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
