package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"camnet/internal/config"
	"camnet/internal/dto"
	"camnet/internal/logger"
	"camnet/internal/model"
	"camnet/internal/repository/sqlite"
)

// ========================================
// Test Setup Helpers
// ========================================

func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setupTestConfig(t *testing.T) (*config.Config, string) {
	t.Helper()

	dir := t.TempDir()
	return &config.Config{ImageDirectory: dir, Password: "secret"}, dir
}

func createTestImageFile(t *testing.T, dir, filename string, content []byte) string {
	t.Helper()

	if content == nil {
		content = []byte("fake image data for testing purposes")
	}

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return path
}

func insertPhoto(t *testing.T, repo *sqlite.PhotoRepository, filename, camera, label string, ts time.Time) {
	t.Helper()

	_, err := repo.Insert(&model.Photo{
		Filename:  filename,
		Camera:    camera,
		Label:     label,
		Timestamp: ts,
		FilePath:  "/images/" + filename,
		FileSize:  100,
	})
	if err != nil {
		t.Fatalf("Failed to insert photo: %v", err)
	}
}

// ========================================
// Gallery Handler Tests
// ========================================

func TestGalleryHandler_DeletePhoto_Success(t *testing.T) {
	db := setupTestDB(t)
	cfg, imageDir := setupTestConfig(t)

	testFilename := "to_delete_handler.jpg"
	createTestImageFile(t, imageDir, testFilename, nil)

	photoRepo := sqlite.NewPhotoRepository(db)
	insertPhoto(t, photoRepo, testFilename, "cam1", "tabby cat", time.Now())

	handler := DeletePhotoHandler(cfg, logger.Discard(), photoRepo)

	req := httptest.NewRequest(http.MethodDelete, "/api/photos/delete?filename="+testFilename, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}

	if _, err := os.Stat(filepath.Join(imageDir, testFilename)); !os.IsNotExist(err) {
		t.Error("File should be deleted from disk")
	}

	retrieved, _ := photoRepo.GetByFilename(testFilename)
	if retrieved != nil {
		t.Error("Photo should be deleted from database")
	}
}

func TestGalleryHandler_DeletePhoto_InvalidFilename(t *testing.T) {
	cfg, _ := setupTestConfig(t)
	handler := DeletePhotoHandler(cfg, logger.Discard(), nil)

	for _, query := range []string{"", "?filename=", "?filename=../secret.jpg"} {
		req := httptest.NewRequest(http.MethodDelete, "/api/photos/delete"+query, nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("%q: expected status %d, got %d", query, http.StatusBadRequest, rr.Code)
		}
	}
}

func TestGalleryHandler_ClearPhotos_Success(t *testing.T) {
	db := setupTestDB(t)
	cfg, imageDir := setupTestConfig(t)

	photoRepo := sqlite.NewPhotoRepository(db)
	for i := 0; i < 3; i++ {
		filename := "clear_" + string(rune('a'+i)) + ".jpg"
		createTestImageFile(t, imageDir, filename, nil)
		insertPhoto(t, photoRepo, filename, "cam1", "", time.Now())
	}

	handler := ClearPhotosHandler(cfg, logger.Discard(), photoRepo)

	req := httptest.NewRequest(http.MethodPost, "/api/photos/clear", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected status %d, got %d", http.StatusNoContent, rr.Code)
	}

	files, _ := os.ReadDir(imageDir)
	if len(files) != 0 {
		t.Errorf("Expected 0 files, got %d", len(files))
	}
	if count, _ := photoRepo.GetTotalCount(nil); count != 0 {
		t.Errorf("Expected empty photo table, got %d rows", count)
	}
}

func TestGalleryHandler_ViewPhoto_MissingParam(t *testing.T) {
	cfg, _ := setupTestConfig(t)
	handler := ViewPhotoHandler(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/photos/view", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestGalleryHandler_ViewPhoto_Success(t *testing.T) {
	cfg, imageDir := setupTestConfig(t)

	testFilename := "view_test.jpg"
	testContent := []byte("JPEG image content here")
	createTestImageFile(t, imageDir, testFilename, testContent)

	handler := ViewPhotoHandler(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/photos/view?image="+testFilename, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if rr.Body.String() != string(testContent) {
		t.Error("Response body should match file content")
	}
}

func TestGalleryHandler_GetPhotos_Success(t *testing.T) {
	db := setupTestDB(t)
	cfg, _ := setupTestConfig(t)

	photoRepo := sqlite.NewPhotoRepository(db)
	labels := []string{"tabby cat", "tabby cat", "goldfish"}
	for i, label := range labels {
		insertPhoto(t, photoRepo, "gallery_"+string(rune('a'+i))+".jpg", "cam1", label, time.Now())
	}

	handler := GetPhotosHandler(cfg, logger.Discard(), photoRepo)

	req := httptest.NewRequest(http.MethodGet, "/api/photos?page=1&limit=10", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if length := int(response["length"].(float64)); length != 3 {
		t.Errorf("Expected 3 photos, got %d", length)
	}
	if page := int(response["currentPage"].(float64)); page != 1 {
		t.Errorf("Expected page 1, got %d", page)
	}
	if got := response["labels"].([]interface{}); len(got) != 2 {
		t.Errorf("Expected 2 distinct labels, got %v", got)
	}
}

func TestGalleryHandler_GetPhotos_FilterByLabel(t *testing.T) {
	db := setupTestDB(t)
	cfg, _ := setupTestConfig(t)

	photoRepo := sqlite.NewPhotoRepository(db)
	insertPhoto(t, photoRepo, "a.jpg", "cam1", "tabby cat", time.Now())
	insertPhoto(t, photoRepo, "b.jpg", "cam2", "goldfish", time.Now())

	handler := GetPhotosHandler(cfg, logger.Discard(), photoRepo)

	req := httptest.NewRequest(http.MethodGet, "/api/photos?label=goldfish", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var response dto.PhotosData
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Length != 1 || len(response.Photos) != 1 {
		t.Fatalf("Expected one photo, got %+v", response)
	}
	if response.Photos[0].Name != "b.jpg" || response.Photos[0].Camera != "cam2" {
		t.Errorf("Unexpected photo %+v", response.Photos[0])
	}
}

func TestGalleryHandler_GetPhotos_WithPagination(t *testing.T) {
	db := setupTestDB(t)
	cfg, _ := setupTestConfig(t)

	photoRepo := sqlite.NewPhotoRepository(db)
	for i := 0; i < 25; i++ {
		insertPhoto(t, photoRepo, "page_"+string(rune('a'+i))+".jpg", "cam1", "", time.Now())
	}

	handler := GetPhotosHandler(cfg, logger.Discard(), photoRepo)

	req := httptest.NewRequest(http.MethodGet, "/api/photos?page=3&limit=10", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var response map[string]interface{}
	json.NewDecoder(rr.Body).Decode(&response)

	if totalPages := int(response["totalPages"].(float64)); totalPages != 3 {
		t.Errorf("Expected 3 total pages, got %d", totalPages)
	}
	if photos := response["photos"].([]interface{}); len(photos) != 5 {
		t.Errorf("Expected 5 photos on the last page, got %d", len(photos))
	}
}

// ========================================
// Helper Function Tests
// ========================================

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"1", 0, 1},
		{"999", 0, 999},
		{"", 5, 5},
		{"abc", 10, 10},
		{"-1", 5, 5},
		{"0", 5, 5},
		{"12.5", 5, 5},
		{"12abc", 5, 5},
	}

	for _, tt := range tests {
		result := atoiDefault(tt.input, tt.def)
		if result != tt.expected {
			t.Errorf("atoiDefault(%q, %d) = %d, expected %d", tt.input, tt.def, result, tt.expected)
		}
	}
}

func TestParseDateAndTime(t *testing.T) {
	if d := parseDate("2025-06-15"); !d.Equal(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected date %v", d)
	}
	if d := parseDate("15-06-2025"); !d.IsZero() {
		t.Errorf("Expected zero time for bad date, got %v", d)
	}
	if tod := parseTimeOfDay("14:30"); tod.Hour() != 14 || tod.Minute() != 30 {
		t.Errorf("Unexpected time of day %v", tod)
	}
	if tod := parseTimeOfDay("2pm"); !tod.IsZero() {
		t.Errorf("Expected zero time for bad time, got %v", tod)
	}
}

func TestValidFilename(t *testing.T) {
	valid := []string{
		"image.jpg",
		"photo_001.png",
		"2025-01-04_14-30_00.000_cam1_tabby-cat.jpg",
		"test-file.jpeg",
	}
	for _, filename := range valid {
		if !validFilename(filename) {
			t.Errorf("Expected %s to be valid", filename)
		}
	}

	invalid := []string{
		"",
		".",
		"..",
		"../secret.jpg",
		"/etc/passwd",
		"dir\\file.jpg",
		"file\x00name.jpg",
	}
	for _, filename := range invalid {
		if validFilename(filename) {
			t.Errorf("Expected %q to be invalid", filename)
		}
	}
}
