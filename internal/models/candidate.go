package models

// Candidate is a ticker proposed by the symbol extractor with a confidence in [0, 1].
type Candidate struct {
	Symbol     string  `json:"symbol"`
	Confidence float64 `json:"confidence"`
}
