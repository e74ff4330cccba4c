package ai

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prediction is one ranked class.
type Prediction struct {
	Index      int     `json:"index"`
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
}

// Result is the classification of one frame. It is not modified after the
// engine hands it out.
type Result struct {
	FrameID     uuid.UUID     `json:"frame_id"`
	Camera      string        `json:"camera"`
	Timestamp   time.Time     `json:"timestamp"`
	Elapsed     time.Duration `json:"elapsed"`
	Predictions []Prediction  `json:"predictions"`
}

// Top returns the best prediction, if any.
func (r *Result) Top() (Prediction, bool) {
	if r == nil || len(r.Predictions) == 0 {
		return Prediction{}, false
	}
	return r.Predictions[0], true
}

// Text renders the result for the display: the elapsed time followed by one
// ranked line per prediction.
func (r *Result) Text() string {
	lines := []string{fmt.Sprintf("Elapsed: %.4f s", r.Elapsed.Seconds())}
	for i, p := range r.Predictions {
		lines = append(lines, fmt.Sprintf("%d: %s (%3.2f%%)", i+1, p.Label, p.Confidence*100))
	}
	return strings.Join(lines, "\n\n")
}

// ranksBefore orders scores descending with NaN after every number.
func ranksBefore(x, y float32) bool {
	if math.IsNaN(float64(x)) {
		return false
	}
	if math.IsNaN(float64(y)) {
		return true
	}
	return x > y
}

// TopK ranks scores by descending confidence and keeps at most k of them.
// Ties keep the lower class index first.
func TopK(scores []float32, k int, labels Labels) []Prediction {
	if k <= 0 || len(scores) == 0 {
		return []Prediction{}
	}

	indexes := make([]int, len(scores))
	for i := range indexes {
		indexes[i] = i
	}
	sort.SliceStable(indexes, func(a, b int) bool {
		return ranksBefore(scores[indexes[a]], scores[indexes[b]])
	})

	if k > len(indexes) {
		k = len(indexes)
	}
	predictions := make([]Prediction, k)
	for i := 0; i < k; i++ {
		idx := indexes[i]
		predictions[i] = Prediction{
			Index:      idx,
			Label:      labels.Lookup(idx),
			Confidence: scores[idx],
		}
	}
	return predictions
}

// Softmax normalizes raw scores into probabilities in place.
func Softmax(scores []float32) {
	if len(scores) == 0 {
		return
	}
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	var sum float64
	for i, s := range scores {
		e := math.Exp(float64(s - max))
		scores[i] = float32(e)
		sum += e
	}
	for i := range scores {
		scores[i] = float32(float64(scores[i]) / sum)
	}
}
