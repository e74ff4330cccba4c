package dto

import (
	"encoding/json"
	"time"
)

// PhotoInfo represents metadata about a stored photo.
type PhotoInfo struct {
	Name      string    `json:"name"`
	Date      time.Time `json:"date"`
	TimeOfDay time.Time `json:"timeOfDay"`
	Camera    string    `json:"camera"`
	Label     string    `json:"label"`
}

// MarshalJSON customizes JSON output for PhotoInfo to format date and time-of-day.
func (p PhotoInfo) MarshalJSON() ([]byte, error) {
	type Alias PhotoInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      p.Date.Format("02-01-2006"),
		TimeOfDay: p.TimeOfDay.Format("15:04"),
		Alias:     (Alias)(p),
	})
}
