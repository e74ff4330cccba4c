package model

import "time"

// Result represents one persisted classification.
type Result struct {
	ID            int64        `json:"id"`
	FrameID       string       `json:"frame_id"`
	Camera        string       `json:"camera"`
	Timestamp     time.Time    `json:"timestamp"`
	ElapsedMs     float64      `json:"elapsed_ms"`
	TopLabel      string       `json:"top_label"`
	TopConfidence float64      `json:"top_confidence"`
	Predictions   []Prediction `json:"predictions,omitempty"`
}

// Prediction is one ranked class of a persisted result.
type Prediction struct {
	ID         int64   `json:"id"`
	ResultID   int64   `json:"result_id"`
	Rank       int     `json:"rank"`
	ClassIndex int     `json:"class_index"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}
