package services

import "errors"

// Service errors
var (
	// Period errors
	ErrPeriodNotFound      = errors.New("period not found")
	ErrInsufficientPeriods = errors.New("at least two periods are required")
	ErrSamePeriod          = errors.New("reference and base period must differ")

	// Entity errors
	ErrEntityRequired = errors.New("entity is required")

	// Ingest errors
	ErrNoSourceFiles = errors.New("no source spreadsheets found")
	ErrIngestRunning = errors.New("ingestion already running")

	// General errors
	ErrInvalidInput       = errors.New("invalid input")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)
