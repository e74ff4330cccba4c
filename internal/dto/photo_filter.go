// PhotoFilters describe user-provided filters to narrow the photo list.
package dto

import "time"

type PhotoFilters struct {
	Camera     string
	Label      string
	DateAfter  time.Time
	DateBefore time.Time
	TimeAfter  time.Time
	TimeBefore time.Time
	Limit      int
	Offset     int
}

// ResultFilters narrow the classification history.
type ResultFilters struct {
	Camera string
	Label  string
	Since  time.Time
	Limit  int
	Offset int
}
