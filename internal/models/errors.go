package models

import "errors"

var (
	// ErrTransport covers network failures, timeouts and rejected requests (including exhausted quota)
	ErrTransport = errors.New("transport error")
	// ErrResponse is a malformed or unusable backend payload
	ErrResponse = errors.New("invalid response")
	// ErrFilesystem is a failure creating a directory or writing a media file
	ErrFilesystem = errors.New("filesystem error")

	ErrInvalidURL     = errors.New("invalid media URL")
	ErrUnknownScraper = errors.New("unknown scraper")
)
