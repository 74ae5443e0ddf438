// Package models defines the data structures shared by the search and
// recommendation services and the HTTP API.
package models

// ScoredItem is one ranked catalog hit.
type ScoredItem struct {
	Path    string  `json:"path"`
	Caption string  `json:"caption"`
	Score   float64 `json:"score"`
}

// Recommendation is a blended, ranked recommendation list with a
// human-readable reason for how it was produced.
type Recommendation struct {
	Items        []ScoredItem `json:"items"`
	Reason       string       `json:"reason"`
	Personalized bool         `json:"personalized"`
}

// SearchResponse is the response for a text or image search request.
type SearchResponse struct {
	Results   []ScoredItem `json:"results"`
	Query     string       `json:"query"`
	QueryTime int64        `json:"query_time_ms"`
}
