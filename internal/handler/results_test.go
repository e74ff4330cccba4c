package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"camnet/internal/dto"
	"camnet/internal/logger"
	"camnet/internal/model"
	"camnet/internal/repository/sqlite"
)

func seedResults(t *testing.T, repo *sqlite.ResultRepository) {
	t.Helper()

	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	results := []model.Result{
		{FrameID: "f1", Camera: "porch", Timestamp: base, ElapsedMs: 12, TopLabel: "tabby cat", TopConfidence: 0.8,
			Predictions: []model.Prediction{
				{Rank: 1, ClassIndex: 281, Label: "tabby cat", Confidence: 0.8},
				{Rank: 2, ClassIndex: 282, Label: "tiger cat", Confidence: 0.1},
			}},
		{FrameID: "f2", Camera: "porch", Timestamp: base.Add(time.Second), ElapsedMs: 11, TopLabel: "goldfish", TopConfidence: 0.6,
			Predictions: []model.Prediction{{Rank: 1, ClassIndex: 1, Label: "goldfish", Confidence: 0.6}}},
		{FrameID: "f3", Camera: "garden", Timestamp: base.Add(2 * time.Second), ElapsedMs: 13, TopLabel: "tabby cat", TopConfidence: 0.7},
	}
	if err := repo.InsertBatch(results); err != nil {
		t.Fatalf("Failed to insert results: %v", err)
	}
}

func TestResultsHandler(t *testing.T) {
	resultRepo := sqlite.NewResultRepository(setupTestDB(t))
	seedResults(t, resultRepo)
	handler := ResultsHandler(logger.Discard(), resultRepo)

	tests := []struct {
		name    string
		query   string
		want    []string
		pages   int
		details bool
	}{
		{"all", "", []string{"f3", "f2", "f1"}, 1, false},
		{"by camera", "?camera=porch", []string{"f2", "f1"}, 1, false},
		{"by label", "?label=tabby%20cat", []string{"f3", "f1"}, 1, false},
		{"paged", "?limit=2&page=2", []string{"f1"}, 2, false},
		{"with predictions", "?camera=porch&predictions=true", []string{"f2", "f1"}, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/results"+tt.query, nil))
			if rr.Code != http.StatusOK {
				t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
			}

			var data dto.ResultsData
			if err := json.NewDecoder(rr.Body).Decode(&data); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if len(data.Results) != len(tt.want) {
				t.Fatalf("Expected %d results, got %d", len(tt.want), len(data.Results))
			}
			for i, id := range tt.want {
				if data.Results[i].FrameID != id {
					t.Errorf("Result %d: expected %s, got %s", i, id, data.Results[i].FrameID)
				}
			}
			if data.TotalPages != tt.pages {
				t.Errorf("Expected %d pages, got %d", tt.pages, data.TotalPages)
			}

			last := data.Results[len(data.Results)-1]
			if tt.details && len(last.Predictions) != 2 {
				t.Errorf("Expected 2 predictions on f1, got %d", len(last.Predictions))
			}
			if !tt.details && len(last.Predictions) != 0 {
				t.Errorf("Predictions returned without being asked for")
			}
		})
	}
}

func TestClearResultsHandler(t *testing.T) {
	resultRepo := sqlite.NewResultRepository(setupTestDB(t))
	seedResults(t, resultRepo)
	handler := ClearResultsHandler(logger.Discard(), resultRepo)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/results/clear", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status %d, got %d", http.StatusMethodNotAllowed, rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/results/clear", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Expected status %d, got %d", http.StatusNoContent, rr.Code)
	}
	if count, _ := resultRepo.GetTotalCount(nil); count != 0 {
		t.Errorf("Expected empty history, got %d results", count)
	}
}
