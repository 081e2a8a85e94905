package domain

import (
	"regexp"
	"strings"
)

// obdCodeRe matches a generic OBD-II code: system letter plus four digits.
var obdCodeRe = regexp.MustCompile(`^[PBCU]\d{4}$`)

// NormalizeCode trims and uppercases a fault code. Table keys are stored in
// this form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsOBDCode reports whether code has the generic OBD-II shape.
func IsOBDCode(code string) bool {
	return obdCodeRe.MatchString(NormalizeCode(code))
}

// ValidateAnalyzeRequest requires both equipment and code to be non-blank.
func ValidateAnalyzeRequest(req AnalyzeRequest) error {
	if strings.TrimSpace(req.Equipment) == "" {
		return NewValidationError("equipment", req.Equipment, ErrMissingInput)
	}
	if strings.TrimSpace(req.Code) == "" {
		return NewValidationError("code", req.Code, ErrMissingInput)
	}
	return nil
}
