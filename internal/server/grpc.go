package server

import (
	"StableLedger/internal/ingestion"
	"StableLedger/internal/observability"
	"StableLedger/internal/persistence"
	"StableLedger/internal/projection"
	"StableLedger/internal/query"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// GRPCServer wraps the gRPC server and the HTTP/JSON mux. The gRPC side
// carries health and reflection; the read and admin APIs are served as
// HTTP/JSON routes on a gateway mux.
type GRPCServer struct {
	grpcServer    *grpc.Server
	httpServer    *http.Server
	grpcAddr      string
	httpAddr      string
	deps          *ServerDeps
	healthChecker *observability.HealthChecker
}

// ServerDeps holds all dependencies needed by the API handlers.
type ServerDeps struct {
	DB              *sql.DB
	QueryService    *query.QueryService
	IngestService   *ingestion.GRPCIngestService
	SnapshotMgr     *persistence.SnapshotManager
	RewardHistory   *projection.RewardHistoryProjection
	CollateralAsset string
	StableAsset     string
	StartTime       time.Time
	HealthChecker   *observability.HealthChecker
}

// NewGRPCServer creates a new server with health and reflection registered.
func NewGRPCServer(grpcAddr, httpAddr string, deps *ServerDeps) *GRPCServer {
	grpcServer := grpc.NewServer()

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// Reflection for grpcurl / grpcui
	reflection.Register(grpcServer)

	return &GRPCServer{
		grpcServer:    grpcServer,
		grpcAddr:      grpcAddr,
		httpAddr:      httpAddr,
		deps:          deps,
		healthChecker: deps.HealthChecker,
	}
}

// StartGRPC starts the gRPC server (blocking).
func (s *GRPCServer) StartGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		log.Println("INFO: gRPC server shutting down...")
		s.grpcServer.GracefulStop()
	}()

	log.Printf("INFO: gRPC server listening on %s", s.grpcAddr)
	return s.grpcServer.Serve(lis)
}

// StartHTTPGateway starts the HTTP/JSON API (blocking). Served for tooling,
// dashboards, curl.
func (s *GRPCServer) StartHTTPGateway(ctx context.Context) error {
	mux := runtime.NewServeMux()

	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{"GET", "/v1/pools", s.handlePoolOverview},
		{"GET", "/v1/rewards/{owner}", s.handleRewardBalance},
		{"GET", "/v1/rewards/{owner}/history", s.handleRewardHistory},
		{"GET", "/v1/liquidations", s.handleLiquidationHistory},
		{"GET", "/v1/journals/{owner}", s.handleJournalHistory},
		{"GET", "/v1/admin/integrity", s.handleVerifyIntegrity},
		{"GET", "/v1/admin/eventlog", s.handleEventLogInfo},
		{"POST", "/v1/admin/projections/rebuild", s.handleRebuildProjections},
		{"POST", "/v1/admin/params", s.handleParamUpdate},
	}
	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.pattern, r.handler); err != nil {
			return fmt.Errorf("register %s %s: %w", r.method, r.pattern, err)
		}
	}

	httpMux := http.NewServeMux()
	if s.healthChecker != nil {
		httpMux.HandleFunc("/healthz", s.healthChecker.LivenessHandler)
		httpMux.HandleFunc("/readyz", s.healthChecker.ReadinessHandler)
	} else {
		httpMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"status":"ok"}`)
		})
	}
	httpMux.Handle("/", mux)

	s.httpServer = &http.Server{
		Addr:    s.httpAddr,
		Handler: httpMux,
	}

	go func() {
		<-ctx.Done()
		log.Println("INFO: HTTP gateway shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("INFO: HTTP gateway listening on %s", s.httpAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// ============================================================================
// Query handlers
// ============================================================================

func (s *GRPCServer) handlePoolOverview(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	overview, err := s.deps.QueryService.GetPoolOverview(r.Context(), s.deps.CollateralAsset, s.deps.StableAsset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, overview)
}

func (s *GRPCServer) handleRewardBalance(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	owner, err := uuid.Parse(pathParams["owner"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid owner: %w", err))
		return
	}

	asset := r.URL.Query().Get("asset")
	if asset == "" {
		asset = s.deps.CollateralAsset
	}

	bal, err := s.deps.QueryService.GetRewardBalance(r.Context(), owner, asset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, bal)
}

func (s *GRPCServer) handleRewardHistory(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	owner, err := uuid.Parse(pathParams["owner"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid owner: %w", err))
		return
	}

	limit := parseLimit(r, 50, 500)
	entries := s.deps.RewardHistory.QueryByOwner(owner, limit)

	resp := make([]query.RewardHistoryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, query.RewardHistoryResponse{
			Owner:     e.Owner,
			Asset:     s.deps.CollateralAsset,
			Amount:    e.Amount,
			JournalID: e.JournalID,
			Sequence:  e.Sequence,
			Timestamp: e.Timestamp,
		})
	}
	writeJSON(w, resp)
}

func (s *GRPCServer) handleLiquidationHistory(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var positionID *string
	if p := r.URL.Query().Get("position_id"); p != "" {
		positionID = &p
	}

	var afterSeq *int64
	if a := r.URL.Query().Get("after_sequence"); a != "" {
		seq, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid after_sequence: %w", err))
			return
		}
		afterSeq = &seq
	}

	limit := parseLimit(r, 50, 500)
	history, err := s.deps.QueryService.GetLiquidationHistory(r.Context(), positionID, limit, afterSeq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, history)
}

func (s *GRPCServer) handleJournalHistory(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	owner, err := uuid.Parse(pathParams["owner"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid owner: %w", err))
		return
	}

	var afterSeq *int64
	if a := r.URL.Query().Get("after_sequence"); a != "" {
		seq, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid after_sequence: %w", err))
			return
		}
		afterSeq = &seq
	}

	limit := parseLimit(r, 100, 500)
	entries, err := s.deps.QueryService.GetJournalHistory(r.Context(), owner, limit, afterSeq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, entries)
}

// ============================================================================
// Admin handlers
// ============================================================================

func (s *GRPCServer) handleVerifyIntegrity(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	report, err := s.deps.QueryService.VerifyIntegrity(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, report)
}

func (s *GRPCServer) handleEventLogInfo(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	latestSeq, err := s.deps.SnapshotMgr.GetLatestSequence(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"last_sequence": latestSeq,
		"uptime_s":      int64(time.Since(s.deps.StartTime).Seconds()),
	})
}

func (s *GRPCServer) handleRebuildProjections(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if err := projection.RebuildProjections(r.Context(), s.deps.DB); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]bool{"rebuilt": true})
}

type paramUpdateRequest struct {
	LiquidationThreshold uint8 `json:"liquidation_threshold"`
	LoanToValue          uint8 `json:"loan_to_value"`
	MinCollateralRatio   uint8 `json:"min_collateral_ratio"`
	EffectiveSeq         int64 `json:"effective_seq"`
	Sequence             int64 `json:"sequence"`
}

func (s *GRPCServer) handleParamUpdate(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req paramUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}

	err := s.deps.IngestService.InjectParamUpdate(r.Context(),
		req.LiquidationThreshold, req.LoanToValue, req.MinCollateralRatio,
		req.EffectiveSeq, req.Sequence)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, map[string]bool{"accepted": true})
}

// ============================================================================
// Helpers
// ============================================================================

func parseLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > max {
		return def
	}
	return limit
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("WARN: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
