package faultcode

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/faultscope/faultscope/engine/domain"
)

// Harvested is one fault code collected by the harvester, before it is
// folded into a table. The same code may appear several times for different
// manufacturers and models.
type Harvested struct {
	Code         string   `json:"code"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	Description  string   `json:"description"`
	Causes       []string `json:"causes"`
	Solutions    []string `json:"solutions"`
	Severity     string   `json:"severity"`
}

// ReadHarvest loads a harvest file written by the harvester.
func ReadHarvest(path string) ([]Harvested, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []Harvested
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode harvest %s: %w", path, err)
	}
	return out, nil
}

// Import folds harvested codes into records. Codes already present in
// records are left alone, and among harvested duplicates the first one wins.
// Safety text is derived from severity. Returns the number of codes added.
func Import(records map[string]Record, harvested []Harvested) int {
	added := 0
	for _, h := range harvested {
		code := domain.NormalizeCode(h.Code)
		if code == "" {
			continue
		}
		if _, ok := records[code]; ok {
			continue
		}
		records[code] = Record{
			Code:        code,
			Description: h.Description,
			Causes:      h.Causes,
			Solutions:   h.Solutions,
			Severity:    h.Severity,
			Safety:      DeriveSafety(h.Severity),
		}
		added++
	}
	return added
}
