package models

// APIResponse is the envelope returned by JSON scraper backends
type APIResponse[T any] struct {
	Result    T      `json:"result"`
	Message   string `json:"message,omitempty"`
	Allowance *int   `json:"allowance,omitempty"`
}
