package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"camnet/internal/config"
	"camnet/internal/dto"
	"camnet/internal/logger"
	"camnet/internal/repository"
)

// GetPhotosHandler returns a filtered, paginated list of stored photos.
func GetPhotosHandler(cfg *config.Config, logger *logger.Logger, photoRepo repository.PhotoRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &dto.PhotoFilters{
			Camera:     q.Get("camera"),
			Label:      q.Get("label"),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
			TimeAfter:  parseTimeOfDay(q.Get("timeAfter")),
			TimeBefore: parseTimeOfDay(q.Get("timeBefore")),
			Limit:      limit,
			Offset:     (page - 1) * limit,
		}

		photos, err := photoRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying photos from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalSize, err := photoRepo.GetTotalSize()
		if err != nil {
			logger.Error("Error getting photo size: %v", err)
			totalSize = 0
		}

		totalCount, err := photoRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting photos: %v", err)
			totalCount = len(photos)
		}

		labels, err := photoRepo.GetLabels()
		if err != nil {
			logger.Error("Error getting photo labels: %v", err)
		}

		infos := make([]dto.PhotoInfo, 0, len(photos))
		for _, photo := range photos {
			infos = append(infos, dto.PhotoInfo{
				Name:      photo.Filename,
				Date:      photo.Timestamp,
				TimeOfDay: photo.Timestamp,
				Camera:    photo.Camera,
				Label:     photo.Label,
			})
		}

		writeJSON(w, http.StatusOK, dto.PhotosData{
			Photos:      infos,
			Labels:      labels,
			ImagesDir:   cfg.ImageDirectory,
			Size:        totalSize,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// DeletePhotoHandler removes a photo from disk and database.
func DeletePhotoHandler(cfg *config.Config, logger *logger.Logger, photoRepo repository.PhotoRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := r.URL.Query().Get("filename")
		if !validFilename(filename) {
			http.Error(w, "Valid filename required", http.StatusBadRequest)
			return
		}

		filePath := filepath.Join(cfg.ImageDirectory, filename)
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			logger.Error("Failed to delete file %s: %v", filePath, err)
		}

		if err := photoRepo.DeleteByFilename(filename); err != nil {
			logger.Error("Failed to delete from database: %v", err)
		}

		logger.Info("Deleted photo: %s", filename)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "filename": filename})
	}
}

// ClearPhotosHandler deletes all files from the image directory and clears the database.
func ClearPhotosHandler(cfg *config.Config, logger *logger.Logger, photoRepo repository.PhotoRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		files, err := os.ReadDir(cfg.ImageDirectory)
		if err != nil && !os.IsNotExist(err) {
			logger.Error("Error reading photo directory: %v", err)
			http.Error(w, "Unable to read photo directory", http.StatusInternalServerError)
			return
		}

		for _, file := range files {
			if !file.IsDir() {
				if err := os.Remove(filepath.Join(cfg.ImageDirectory, file.Name())); err != nil {
					logger.Error("Error deleting file %s: %v", file.Name(), err)
				}
			}
		}

		if err := photoRepo.DeleteAll(); err != nil {
			logger.Error("Error clearing database: %v", err)
		}

		logger.Info("All photos cleared from directory: %s", cfg.ImageDirectory)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ViewPhotoHandler serves a single photo named by the "image" query parameter.
func ViewPhotoHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		image := r.URL.Query().Get("image")
		if !validFilename(image) {
			http.Error(w, "Image parameter is required", http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, filepath.Join(cfg.ImageDirectory, image))
	}
}

// validFilename accepts plain file names only, no paths.
func validFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return false
	}
	return filepath.Base(name) == name
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" from the request (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseTimeOfDay parses a time-of-day string in the format "15:04" from the request (HTML input format).
func parseTimeOfDay(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return time.Time{}
	}
	return t
}
