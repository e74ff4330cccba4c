// PhotosData is a paginated response payload for the photo gallery.
package dto

import "camnet/internal/model"

type PhotosData struct {
	Photos      []PhotoInfo `json:"photos"`
	Labels      []string    `json:"labels"`
	ImagesDir   string      `json:"imagesDir"`
	Size        int64       `json:"size"`
	Length      int         `json:"length"`
	TotalPages  int         `json:"totalPages"`
	CurrentPage int         `json:"currentPage"`
	Limit       int         `json:"pageSize"`
}

// ResultsData is a paginated page of the classification history.
type ResultsData struct {
	Results     []model.Result `json:"results"`
	Length      int            `json:"length"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	Limit       int            `json:"pageSize"`
}
