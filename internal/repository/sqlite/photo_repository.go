package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"camnet/internal/dto"
	"camnet/internal/model"
)

// PhotoRepository implements repository.PhotoRepository for SQLite.
type PhotoRepository struct {
	db *DB
}

// NewPhotoRepository creates a new SQLite photo repository.
func NewPhotoRepository(db *DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

// Insert adds a new photo record to the database. Timestamps are stored in
// UTC so that date and time filters compare alike.
func (r *PhotoRepository) Insert(photo *model.Photo) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO photos (filename, camera, timestamp, filepath, filesize, label)
		VALUES (?, ?, ?, ?, ?, ?)
	`, photo.Filename, photo.Camera, photo.Timestamp.UTC(), photo.FilePath, photo.FileSize, photo.Label)
	if err != nil {
		return 0, fmt.Errorf("failed to insert photo: %w", err)
	}

	return result.LastInsertId()
}

// GetByFilename retrieves a photo by its filename, or nil if there is none.
func (r *PhotoRepository) GetByFilename(filename string) (*model.Photo, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var photo model.Photo
	err := r.db.Conn().QueryRow(`
		SELECT id, filename, camera, timestamp, filepath, filesize, label
		FROM photos WHERE filename = ?
	`, filename).Scan(&photo.ID, &photo.Filename, &photo.Camera, &photo.Timestamp, &photo.FilePath, &photo.FileSize, &photo.Label)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}
	return &photo, nil
}

// photoWhere builds the WHERE clause shared by listing and counting.
func photoWhere(filter *dto.PhotoFilters) (string, []interface{}) {
	where := " WHERE 1=1"
	args := []interface{}{}
	if filter == nil {
		return where, args
	}

	if filter.Camera != "" {
		where += " AND camera = ?"
		args = append(args, filter.Camera)
	}

	if filter.Label != "" {
		where += " AND label = ?"
		args = append(args, filter.Label)
	}

	if !filter.DateAfter.IsZero() {
		where += " AND DATE(timestamp) >= DATE(?)"
		args = append(args, filter.DateAfter.Format("2006-01-02"))
	}

	if !filter.DateBefore.IsZero() {
		where += " AND DATE(timestamp) <= DATE(?)"
		args = append(args, filter.DateBefore.Format("2006-01-02"))
	}

	if !filter.TimeAfter.IsZero() {
		where += " AND TIME(timestamp) >= TIME(?)"
		args = append(args, filter.TimeAfter.Format("15:04:05"))
	}

	if !filter.TimeBefore.IsZero() {
		where += " AND TIME(timestamp) <= TIME(?)"
		args = append(args, filter.TimeBefore.Format("15:04:05"))
	}

	return where, args
}

// GetAll retrieves photos based on filter criteria, newest first.
func (r *PhotoRepository) GetAll(filter *dto.PhotoFilters) ([]model.Photo, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := photoWhere(filter)
	query := `SELECT id, filename, camera, timestamp, filepath, filesize, label FROM photos` + where +
		" ORDER BY timestamp DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query photos: %w", err)
	}
	defer rows.Close()

	var photos []model.Photo
	for rows.Next() {
		var photo model.Photo
		if err := rows.Scan(&photo.ID, &photo.Filename, &photo.Camera, &photo.Timestamp, &photo.FilePath, &photo.FileSize, &photo.Label); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, photo)
	}

	return photos, rows.Err()
}

// GetTotalCount returns the number of photos matching the filter.
func (r *PhotoRepository) GetTotalCount(filter *dto.PhotoFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := photoWhere(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM photos`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count photos: %w", err)
	}
	return count, nil
}

// GetTotalSize returns the size in bytes of all stored photos.
func (r *PhotoRepository) GetTotalSize() (int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var size int64
	if err := r.db.Conn().QueryRow(`SELECT COALESCE(SUM(filesize), 0) FROM photos`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to sum photo sizes: %w", err)
	}
	return size, nil
}

// GetLabels returns the distinct labels photos were taken with.
func (r *PhotoRepository) GetLabels() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT DISTINCT label FROM photos WHERE label != '' ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// DeleteByFilename removes a photo by its filename.
func (r *PhotoRepository) DeleteByFilename(filename string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM photos WHERE filename = ?`, filename); err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	return nil
}

// DeleteAll removes all photo records.
func (r *PhotoRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM photos`); err != nil {
		return fmt.Errorf("failed to delete photos: %w", err)
	}
	return nil
}
