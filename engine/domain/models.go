package domain

import (
	"strings"
	"unicode"
)

// modelsByMake lists well-known model names per make, keyed by the
// Manufacturers URL form. Names that double as everyday words are left out.
var modelsByMake = map[string][]string{
	"toyota":        {"Camry", "Corolla", "RAV4", "Highlander", "Tacoma", "Tundra", "Prius", "4Runner", "Sienna", "Supra", "GR86", "Venza", "C-HR", "Sequoia", "Land Cruiser"},
	"honda":         {"Civic", "Accord", "CR-V", "Odyssey", "HR-V", "Ridgeline"},
	"ford":          {"F-150", "F-250", "F-350", "Mustang", "Bronco", "Maverick", "Fiesta"},
	"chevrolet":     {"Silverado", "Equinox", "Malibu", "Tahoe", "Suburban", "Camaro", "Traverse", "Impala", "Trax", "Cruze"},
	"bmw":           {"3 Series", "5 Series", "7 Series", "X3", "X5", "X1", "X7", "M3", "M5", "i4", "iX", "4 Series", "2 Series", "X6"},
	"mercedes-benz": {"C-Class", "E-Class", "S-Class", "GLC", "GLE", "A-Class", "CLA", "GLA", "GLB", "GLS", "EQS", "EQE"},
	"audi":          {"A4", "A6", "A3", "Q5", "Q7", "Q3", "A5", "A8", "Q8", "e-tron", "RS5", "RS7", "S4", "TT"},
	"nissan":        {"Altima", "Sentra", "Pathfinder", "Maxima", "Murano", "Kicks", "Versa", "Armada"},
	"hyundai":       {"Elantra", "Sonata", "Tucson", "Santa Fe", "Kona", "Palisade", "Ioniq 5", "Ioniq 6", "Santa Cruz"},
	"kia":           {"K5", "Sportage", "Telluride", "Sorento", "Seltos", "EV6", "EV9", "Rio", "Niro"},
	"volkswagen":    {"Jetta", "Tiguan", "Passat", "Taos", "ID.4", "GTI", "Arteon"},
	"subaru":        {"Outback", "Forester", "Crosstrek", "Impreza", "WRX", "BRZ", "Solterra"},
	"mazda":         {"Mazda3", "Mazda6", "CX-5", "CX-9", "CX-30", "CX-50", "MX-5", "CX-90"},
	"jeep":          {"Wrangler", "Grand Cherokee", "Cherokee", "Renegade", "Gladiator", "Wagoneer"},
	"gmc":           {"Acadia", "Yukon"},
	"dodge":         {"Durango"},
	"acura":         {"TLX", "MDX", "RDX", "Integra", "ILX", "NSX"},
	"porsche":       {"911", "Cayenne", "Macan", "Taycan", "Panamera", "Boxster", "Cayman"},
	"volvo":         {"XC90", "XC60", "XC40", "S60", "S90", "V60", "V90", "C40"},
	"buick":         {"Enclave", "LaCrosse"},
	"cadillac":      {"Escalade", "CT5", "CT4", "XT5", "XT4", "XT6", "Lyriq"},
	"lincoln":       {"Corsair", "Nautilus"},
	"infiniti":      {"Q50", "Q60", "QX50", "QX60", "QX80"},
	"mitsubishi":    {"Outlander"},
	"chrysler":      {"Pacifica"},
	"land-rover":    {"Evoque"},
	"jaguar":        {"F-Pace", "E-Pace", "XF", "XE", "F-Type", "I-Pace"},
	"alfa-romeo":    {"Giulia", "Stelvio", "Tonale"},
	"fiat":          {"500X"},
	"mini":          {"Countryman", "Clubman"},
}

// uniqueModels maps a lowercased model to its make when the model name
// identifies the make on its own.
var uniqueModels = buildUniqueModels(modelsByMake)

func buildUniqueModels(byMake map[string][]string) map[string]string {
	count := make(map[string]int)
	owner := make(map[string]string)
	for brand, models := range byMake {
		for _, m := range models {
			ml := strings.ToLower(m)
			count[ml]++
			owner[ml] = brand
		}
	}
	unique := make(map[string]string, len(owner))
	for ml, brand := range owner {
		if count[ml] == 1 && distinctive(ml) {
			unique[ml] = brand
		}
	}
	return unique
}

// distinctive rejects model names too short or too numeric to stand alone:
// "Z", "IS" and "300" are all common words or numbers in equipment text.
func distinctive(model string) bool {
	if len(model) <= 2 && !strings.Contains(model, "-") {
		return false
	}
	for _, r := range model {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// makeFromModel returns the make of the longest distinctive model named in
// text, or "". text must already be lowercased.
func makeFromModel(text string) string {
	best, bestLen := "", 0
	for ml, brand := range uniqueModels {
		if len(ml) < bestLen || !containsWord(text, ml) {
			continue
		}
		if len(ml) == bestLen && brand >= best {
			continue
		}
		best, bestLen = brand, len(ml)
	}
	return best
}
