package sqlite

import (
	"fmt"

	"camnet/internal/dto"
	"camnet/internal/model"
)

// ResultRepository implements repository.ResultRepository for SQLite.
type ResultRepository struct {
	db *DB
}

// NewResultRepository creates a new SQLite result repository.
func NewResultRepository(db *DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// InsertBatch stores results and their predictions in a single transaction
// and fills in the generated IDs.
func (r *ResultRepository) InsertBatch(results []model.Result) error {
	if len(results) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	resultStmt, err := tx.Prepare(`
		INSERT INTO results (frame_id, camera, timestamp, elapsed_ms, top_label, top_confidence)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer resultStmt.Close()

	predictionStmt, err := tx.Prepare(`
		INSERT INTO predictions (result_id, rank, class_index, label, confidence)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer predictionStmt.Close()

	for i := range results {
		res := &results[i]
		inserted, err := resultStmt.Exec(res.FrameID, res.Camera, res.Timestamp.UTC(), res.ElapsedMs, res.TopLabel, res.TopConfidence)
		if err != nil {
			return fmt.Errorf("failed to insert result: %w", err)
		}
		id, err := inserted.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read result id: %w", err)
		}
		res.ID = id

		for j := range res.Predictions {
			p := &res.Predictions[j]
			p.ResultID = id
			if _, err := predictionStmt.Exec(id, p.Rank, p.ClassIndex, p.Label, p.Confidence); err != nil {
				return fmt.Errorf("failed to insert prediction: %w", err)
			}
		}
	}

	return tx.Commit()
}

func resultWhere(filter *dto.ResultFilters) (string, []interface{}) {
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
		where += " AND top_label = ?"
		args = append(args, filter.Label)
	}
	if !filter.Since.IsZero() {
		where += " AND timestamp >= ?"
		args = append(args, filter.Since.UTC())
	}
	return where, args
}

// GetAll returns results matching filter, newest first, without their
// predictions.
func (r *ResultRepository) GetAll(filter *dto.ResultFilters) ([]model.Result, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := resultWhere(filter)
	query := `SELECT id, frame_id, camera, timestamp, elapsed_ms, top_label, top_confidence FROM results` + where +
		" ORDER BY timestamp DESC, id DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		var res model.Result
		if err := rows.Scan(&res.ID, &res.FrameID, &res.Camera, &res.Timestamp, &res.ElapsedMs, &res.TopLabel, &res.TopConfidence); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// GetTotalCount returns the number of results matching filter.
func (r *ResultRepository) GetTotalCount(filter *dto.ResultFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := resultWhere(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM results`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return count, nil
}

// GetPredictions retrieves the ranked predictions of a result.
func (r *ResultRepository) GetPredictions(resultID int64) ([]model.Prediction, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, result_id, rank, class_index, label, confidence
		FROM predictions WHERE result_id = ? ORDER BY rank
	`, resultID)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var predictions []model.Prediction
	for rows.Next() {
		var p model.Prediction
		if err := rows.Scan(&p.ID, &p.ResultID, &p.Rank, &p.ClassIndex, &p.Label, &p.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}

// DeleteAll removes the whole classification history.
func (r *ResultRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM predictions`); err != nil {
		return fmt.Errorf("failed to delete predictions: %w", err)
	}
	if _, err := r.db.Conn().Exec(`DELETE FROM results`); err != nil {
		return fmt.Errorf("failed to delete results: %w", err)
	}
	return nil
}
