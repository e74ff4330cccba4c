package handler

import (
	"net/http"

	"camnet/internal/dto"
	"camnet/internal/logger"
	"camnet/internal/model"
	"camnet/internal/repository"
)

// ResultsHandler returns a page of the classification history, newest first.
func ResultsHandler(logger *logger.Logger, resultRepo repository.ResultRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 50)

		filter := &dto.ResultFilters{
			Camera: q.Get("camera"),
			Label:  q.Get("label"),
			Since:  parseDate(q.Get("since")),
			Limit:  limit,
			Offset: (page - 1) * limit,
		}

		results, err := resultRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying results from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if q.Get("predictions") == "true" {
			for i := range results {
				results[i].Predictions, err = resultRepo.GetPredictions(results[i].ID)
				if err != nil {
					logger.Error("Error getting predictions for result %d: %v", results[i].ID, err)
				}
			}
		}

		totalCount, err := resultRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting results: %v", err)
			totalCount = len(results)
		}

		if results == nil {
			results = []model.Result{}
		}
		writeJSON(w, http.StatusOK, dto.ResultsData{
			Results:     results,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// ClearResultsHandler deletes the classification history.
func ClearResultsHandler(logger *logger.Logger, resultRepo repository.ResultRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := resultRepo.DeleteAll(); err != nil {
			logger.Error("Error clearing results: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		logger.Info("Classification history cleared")
		w.WriteHeader(http.StatusNoContent)
	}
}
