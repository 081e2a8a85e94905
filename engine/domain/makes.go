package domain

import "strings"

// Manufacturers is the fixed list of makes known to the manufacturer-specific
// lookup site, in its URL form: lowercase, hyphen for space.
var Manufacturers = []string{
	"acura", "alfa-romeo", "audi", "bmw", "buick", "cadillac", "chevrolet",
	"chrysler", "citroen", "dacia", "dodge", "fiat", "ford", "gmc", "honda",
	"hyundai", "infiniti", "jaguar", "jeep", "kia", "land-rover", "lexus",
	"lincoln", "mazda", "mercedes-benz", "mercury", "mini", "mitsubishi",
	"nissan", "opel", "peugeot", "pontiac", "porsche", "renault", "saab",
	"seat", "skoda", "subaru", "suzuki", "toyota", "volkswagen", "volvo",
}

// manufacturerAliases maps common brand nicknames to a Manufacturers entry.
// Consulted only when no manufacturer name matched directly.
var manufacturerAliases = []struct{ alias, brand string }{
	{"chevy", "chevrolet"},
	{"vw", "volkswagen"},
	{"mercedes", "mercedes-benz"},
	{"benz", "mercedes-benz"},
	{"range rover", "land-rover"},
	{"landrover", "land-rover"},
	{"alfa", "alfa-romeo"},
}

var categoryKeywords = []struct {
	category Category
	words    []string
}{
	{CategoryAircraft, []string{"aircraft", "airplane", "plane", "boeing", "airbus", "cessna", "helicopter", "jet", "avionics"}},
	{CategoryIndustrial, []string{"plc", "cnc", "hvac", "compressor", "boiler", "generator", "forklift", "pump", "chiller", "inverter", "industrial"}},
	{CategoryTechnology, []string{"printer", "laptop", "computer", "router", "washer", "dishwasher", "dryer", "refrigerator", "fridge", "oven", "microwave", "appliance", "phone", "tv"}},
	{CategoryAutomotive, []string{"car", "truck", "vehicle", "suv", "van", "auto", "sedan", "pickup", "motorcycle", "obd", "engine"}},
}

// InferManufacturer guesses the make from free-text equipment. It lowercases
// the text and looks for each manufacturer as a substring, with hyphens read
// as spaces ("land-rover" matches "Land Rover"), then falls back to brand
// aliases and finally to model names unique to one make ("2018 Camry").
// Returns "" when nothing matches. This is a heuristic, not a
// classifier: "seat" also matches "seating".
func InferManufacturer(equipment string) string {
	text := strings.ToLower(equipment)
	if text == "" {
		return ""
	}
	for _, m := range Manufacturers {
		if strings.Contains(text, m) || strings.Contains(text, strings.ReplaceAll(m, "-", " ")) {
			return m
		}
	}
	for _, a := range manufacturerAliases {
		if containsWord(text, a.alias) {
			return a.brand
		}
	}
	return makeFromModel(text)
}

// Classify maps free-text equipment to a Category by keyword. A recognised
// manufacturer always means automotive.
func Classify(equipment string) Category {
	text := strings.ToLower(equipment)
	for _, ck := range categoryKeywords {
		for _, w := range ck.words {
			if containsWord(text, w) {
				return ck.category
			}
		}
	}
	if InferManufacturer(equipment) != "" {
		return CategoryAutomotive
	}
	return CategoryGeneric
}

// IsAutomotive reports whether the equipment text suggests a road vehicle.
func IsAutomotive(equipment string) bool {
	return Classify(equipment) == CategoryAutomotive
}

// containsWord reports whether word occurs in text bounded by non-alphanumerics.
func containsWord(text, word string) bool {
	for i := 0; ; {
		idx := strings.Index(text[i:], word)
		if idx < 0 {
			return false
		}
		start := i + idx
		end := start + len(word)
		if (start == 0 || !isAlnum(text[start-1])) && (end == len(text) || !isAlnum(text[end])) {
			return true
		}
		i = start + 1
	}
}

func isAlnum(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
