package repository

import (
	"camnet/internal/dto"
	"camnet/internal/model"
)

// PhotoRepository defines the interface for photo data operations.
type PhotoRepository interface {
	// Create operations
	Insert(photo *model.Photo) (int64, error)

	// Read operations
	GetByFilename(filename string) (*model.Photo, error)
	GetAll(filter *dto.PhotoFilters) ([]model.Photo, error)
	GetTotalCount(filter *dto.PhotoFilters) (int, error)
	GetTotalSize() (int64, error)
	GetLabels() ([]string, error)

	// Delete operations
	DeleteByFilename(filename string) error
	DeleteAll() error
}

// ResultRepository defines the interface for classification history.
type ResultRepository interface {
	// Create operations
	InsertBatch(results []model.Result) error

	// Read operations
	GetAll(filter *dto.ResultFilters) ([]model.Result, error)
	GetTotalCount(filter *dto.ResultFilters) (int, error)
	GetPredictions(resultID int64) ([]model.Prediction, error)

	// Delete operations
	DeleteAll() error
}
