package scraper

import "github.com/faultscope/faultscope/engine/domain"

// ManufacturerTarget is the make-specific lookup consulted first for
// generic OBD codes.
func ManufacturerTarget() Target {
	return Target{
		Name:    "faultcodes-make",
		BaseURL: "https://faultcodes.co",
		Path:    "/cars/{make}/{code_lower}",
		Applies: domain.IsOBDCode,
		Selectors: Selectors{
			Description: ".fault-description h1, .fault-description h2",
			Causes:      ".fault-causes ul li",
			Solutions:   ".fault-solutions ul li",
			Severity:    ".severity-level",
		},
	}
}

// DefaultTargets lists the specialized OBD sites in priority order.
func DefaultTargets() []Target {
	return []Target{
		{
			Name:    "obd-codes",
			BaseURL: "https://www.obd-codes.com",
			Path:    "/{code_lower}",
			Applies: domain.IsOBDCode,
			Selectors: Selectors{
				Description: "#main h2:first-of-type, .code-meaning",
				Causes:      ".causes ul li, #causes + ul li",
				Solutions:   ".solutions ul li, #repairs + ul li",
				Severity:    ".severity",
			},
		},
		{
			Name:    "engine-codes",
			BaseURL: "https://www.engine-codes.com",
			Path:    "/{code_lower}.html",
			Applies: domain.IsOBDCode,
			Selectors: Selectors{
				Description: ".code-description, h2.definition",
				Causes:      ".possible-causes li",
				Solutions:   ".possible-solutions li",
				Severity:    ".code-severity",
			},
		},
		{
			Name:    "autocodes",
			BaseURL: "https://www.autocodes.com",
			Path:    "/{code_lower}.html",
			Applies: domain.IsOBDCode,
			Selectors: Selectors{
				Description: ".desc h2, .meaning",
				Causes:      ".causes li",
				Solutions:   ".fixes li",
				Severity:    ".severity-level",
			},
		},
		{
			Name:    "faultcodes-generic",
			BaseURL: "https://faultcodes.co",
			Path:    "/code/{code_lower}",
			Selectors: Selectors{
				Description: ".fault-description h1, .fault-description h2",
				Causes:      ".fault-causes ul li",
				Solutions:   ".fault-solutions ul li",
				Severity:    ".severity-level",
			},
		},
	}
}

// DefaultSearch is the HTML search endpoint used as the last scrape resort.
func DefaultSearch() SearchConfig {
	return SearchConfig{
		URL:            "https://html.duckduckgo.com/html/?q=%s",
		ResultSelector: "a.result__a",
	}
}
