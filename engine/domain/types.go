// Package domain defines the request types, equipment classification and
// validation shared by the fault-code analyzer. It is the validation gate in
// front of the resolution pipeline.
package domain

// AnalyzeRequest is what a caller submits for analysis.
type AnalyzeRequest struct {
	Equipment string `json:"equipment"`
	Code      string `json:"code"`
}

// Category is the broad equipment family a free-text description belongs to.
// It selects search phrasing and whether automotive sites are scraped.
type Category string

const (
	CategoryAutomotive Category = "automotive"
	CategoryAircraft   Category = "aircraft"
	CategoryIndustrial Category = "industrial"
	CategoryTechnology Category = "technology"
	CategoryGeneric    Category = "generic"
)
