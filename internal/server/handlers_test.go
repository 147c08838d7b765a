package server

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/internal/database"
	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/engine"
	"github.com/aristath/allocator/internal/modules/correlation"
	"github.com/aristath/allocator/internal/modules/estimation"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/internal/modules/regime"
	"github.com/aristath/allocator/internal/modules/risk"
	"github.com/aristath/allocator/internal/modules/scheduling"
	"github.com/aristath/allocator/internal/modules/snapshots"
)

func newTestRouter(t *testing.T) (*chi.Mux, *snapshots.Store) {
	t.Helper()
	log := zerolog.Nop()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "snapshots.db"),
		Name: "snapshots-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := snapshots.NewStore(db, log)
	require.NoError(t, err)

	eng := engine.NewService(
		estimation.NewHistoricalEstimator(),
		correlation.NewEngine(correlation.DefaultConfig(), log),
		optimization.NewMVOptimizer(log),
		risk.NewAnalyzer(risk.DefaultConfig(), log),
		scheduling.NewScheduler(scheduling.DefaultConfig(), log),
		snapshots.NewExporter(log),
		regime.RotationForecast{},
		optimization.DefaultConfig(),
		log,
	)

	handlers := NewHandlers(log, eng, store, nil)
	router := chi.NewRouter()
	router.Post("/api/analysis", handlers.HandleAnalysis)
	router.Get("/api/snapshots", handlers.HandleListSnapshots)
	router.Get("/api/snapshots/{id}", handlers.HandleGetSnapshot)
	return router, store
}

func analysisBody() []byte {
	symbols := []string{"BTCUSD", "EURUSD", "SPX", "XAUUSD"}
	freqs := []float64{1.0, 1.3, 1.7, 2.3}
	returns := make(map[string][]float64, len(symbols))
	for k, symbol := range symbols {
		series := make([]float64, 120)
		for i := range series {
			series[i] = 0.027 * math.Sin(float64(i)*freqs[k])
		}
		returns[symbol] = series
	}

	req := engine.AnalysisRequest{
		Assets: []domain.Asset{
			{Symbol: "BTCUSD", Class: "crypto"},
			{Symbol: "EURUSD", Class: "forex"},
			{Symbol: "SPX", Class: "equity"},
			{Symbol: "XAUUSD", Class: "commodity"},
		},
		Returns: returns,
		Weights: map[string]float64{
			"BTCUSD": 0.25, "EURUSD": 0.25, "SPX": 0.25, "XAUUSD": 0.25,
		},
	}
	body, _ := json.Marshal(req)
	return body
}

func TestHandleAnalysis(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/analysis", bytes.NewReader(analysisBody()))
	router.ServeHTTP(rec, req)

	// The optimizer may legitimately report infeasibility for a synthetic
	// universe; that maps to 422, anything else is a handler bug.
	if rec.Code == http.StatusUnprocessableEntity {
		var errBody map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
		assert.Equal(t, "optimization_failure", errBody["error"])
		return
	}

	require.Equal(t, http.StatusOK, rec.Code)
	var snapshot snapshots.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.NotEmpty(t, snapshot.ID)
	assert.Equal(t, 4, snapshot.Summary.NumAssets)
}

func TestHandleAnalysis_InvalidBody(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/analysis", bytes.NewReader([]byte("{not json")))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnalysis_TooFewAssets(t *testing.T) {
	router, _ := newTestRouter(t)

	body, _ := json.Marshal(engine.AnalysisRequest{
		Assets: []domain.Asset{{Symbol: "BTCUSD", Class: "crypto"}},
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/analysis", bytes.NewReader(body))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var errBody map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, "insufficient_data", errBody["error"])
}

func TestHandleGetSnapshot_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/snapshots/missing", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListSnapshots(t *testing.T) {
	router, store := newTestRouter(t)

	require.NoError(t, store.Save(&snapshots.Snapshot{ID: "snap-1"}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/snapshots", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Snapshots []snapshots.ListItem `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Snapshots, 1)
	assert.Equal(t, "snap-1", body.Snapshots[0].ID)
}

func TestHandleListSnapshots_BadLimit(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/snapshots?limit=zero", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
