package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wheel-screener/models"
	"wheel-screener/services"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	provider := services.NewDataProvider(services.NewSyntheticSource(7, nil, 0), nil, nil, 0)
	svc := services.NewScreeningService(provider, services.NewScreener(), services.SourceSynthetic, models.DefaultCriteria(), time.Minute)

	r := gin.New()
	NewScreenerController(svc).RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	w := doJSON(t, newTestRouter(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestHandleScreen(t *testing.T) {
	r := newTestRouter()

	w := doJSON(t, r, http.MethodPost, "/api/v1/screen", gin.H{
		"tickers": []string{"AAPL", "MSFT"},
		"source":  "synthetic",
		"criteria": gin.H{
			"min_yield_pct": 0,
			"max_dte":       60,
			"max_abs_delta": 1,
			"k_param":       10,
			"sort_field":    "yield",
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp services.ScreenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, services.ScreenOK, resp.Status)
	assert.NotEmpty(t, resp.RunID)
	require.NotEmpty(t, resp.Candidates)
	for i := 1; i < len(resp.Candidates); i++ {
		assert.GreaterOrEqual(t, resp.Candidates[i-1].PremiumYieldPct, resp.Candidates[i].PremiumYieldPct)
	}
}

func TestHandleScreen_BadRequests(t *testing.T) {
	r := newTestRouter()

	tests := []struct {
		name string
		body interface{}
	}{
		{"no tickers", gin.H{"tickers": []string{}}},
		{"bad source", gin.H{"tickers": []string{"AAPL"}, "source": "yahoo"}},
		{"bad criteria", gin.H{"tickers": []string{"AAPL"}, "criteria": gin.H{"max_abs_delta": 2, "k_param": 10}}},
		{"bad json", "not an object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/api/v1/screen", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
			assert.NotEmpty(t, body["details"])
		})
	}
}

func TestHandleCompareAndCandidate(t *testing.T) {
	r := newTestRouter()

	w := doJSON(t, r, http.MethodPost, "/api/v1/screen", gin.H{
		"tickers":  []string{"AAPL"},
		"criteria": gin.H{"max_dte": 60, "max_abs_delta": 1, "k_param": 10},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp services.ScreenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.GreaterOrEqual(t, len(resp.Candidates), 2)

	w = doJSON(t, r, http.MethodPost, "/api/v1/compare", gin.H{"run_id": resp.RunID, "indices": []int{0, 1}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var cmp services.Comparison
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cmp))
	assert.Len(t, cmp.Radar, 2)

	w = doJSON(t, r, http.MethodPost, "/api/v1/compare", gin.H{"run_id": resp.RunID, "indices": []int{0, 999}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/compare", gin.H{"run_id": "unknown", "indices": []int{0}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/runs/"+resp.RunID+"/candidates/0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail services.CandidateDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Len(t, detail.Payoff, services.DefaultPayoffPoints)

	w = doJSON(t, r, http.MethodGet, "/api/v1/runs/"+resp.RunID+"/candidates/x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlePayoff(t *testing.T) {
	r := newTestRouter()

	w := doJSON(t, r, http.MethodPost, "/api/v1/payoff", gin.H{"strike": 95, "premium": 2, "spot": 100, "points": 5})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Breakeven float64                `json:"breakeven"`
		Points    []services.PayoffPoint `json:"points"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 93.0, body.Breakeven)
	assert.Len(t, body.Points, 5)

	for _, body := range []gin.H{
		{"strike": -1, "premium": 2, "spot": 100},
		{"strike": 95, "premium": 2, "spot": 100, "points": 1_000_000_000},
		{"strike": 95, "premium": 2, "spot": 100, "points": 1},
	} {
		w = doJSON(t, r, http.MethodPost, "/api/v1/payoff", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestHandleScreen_PartialCriteria(t *testing.T) {
	r := newTestRouter()

	w := doJSON(t, r, http.MethodPost, "/api/v1/screen", gin.H{
		"tickers":  []string{"AAPL"},
		"criteria": gin.H{"min_yield_pct": 1},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp services.ScreenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	want := models.DefaultCriteria()
	want.MinYieldPct = 1
	assert.Equal(t, want, resp.Criteria)

	w = doJSON(t, r, http.MethodPost, "/api/v1/screen", gin.H{
		"tickers":  []string{"AAPL"},
		"criteria": gin.H{"sort_field": "assignment_score"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp = services.ScreenResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.SortByAssignmentScore, resp.Criteria.SortField)
	assert.True(t, resp.Criteria.SortAscending)
	for i := 1; i < len(resp.Candidates); i++ {
		assert.LessOrEqual(t, resp.Candidates[i-1].AssignmentScore, resp.Candidates[i].AssignmentScore)
	}
}

func TestHandleScreen_BlankTickers(t *testing.T) {
	w := doJSON(t, newTestRouter(), http.MethodPost, "/api/v1/screen", gin.H{"tickers": []string{"", " "}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetSources(t *testing.T) {
	w := doJSON(t, newTestRouter(), http.MethodGet, "/api/v1/sources", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Sources []services.SourceStatus `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Sources, 3)
	assert.True(t, body.Sources[0].Configured)
	assert.False(t, body.Sources[2].Configured)
}

func TestHandleFlushCache(t *testing.T) {
	w := doJSON(t, newTestRouter(), http.MethodDelete, "/api/v1/cache", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"flushed":0`)
}
