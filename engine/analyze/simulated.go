package analyze

import (
	"strings"

	"github.com/faultscope/faultscope/engine/faultcode"
)

// SafetyNotice closes every simulated and generated analysis.
const SafetyNotice = "This analysis is an estimate. Always consult the equipment manual or a qualified technician, and follow standard safety procedures before attempting repairs."

type category struct {
	name        string
	description string
	causes      []string
	solutions   []string
}

var categories = map[byte]category{
	'P': {
		name:        "Powertrain",
		description: "powertrain fault affecting the engine, transmission or emissions system",
		causes:      []string{"Faulty sensor or sensor wiring", "Vacuum or exhaust leak", "Fuel delivery or ignition problem", "Engine control module fault"},
		solutions:   []string{"Read freeze-frame data with an OBD-II scanner", "Inspect related sensors, connectors and wiring", "Check for vacuum and exhaust leaks", "Clear the code and road test to confirm the repair"},
	},
	'C': {
		name:        "Chassis",
		description: "chassis fault affecting braking, steering or suspension",
		causes:      []string{"Wheel speed sensor failure", "ABS or stability control module fault", "Damaged wiring to chassis sensors"},
		solutions:   []string{"Inspect wheel speed sensors and tone rings", "Check brake fluid level and ABS fuses", "Scan the chassis control modules for related codes"},
	},
	'B': {
		name:        "Body",
		description: "body system fault affecting comfort, lighting or safety restraints",
		causes:      []string{"Faulty body control module input", "Airbag or restraint circuit fault", "Corroded connector or damaged harness"},
		solutions:   []string{"Inspect body harness connectors", "Check restraint system wiring with the battery disconnected", "Scan the body control module for stored codes"},
	},
	'U': {
		name:        "Network",
		description: "network communication fault between control modules",
		causes:      []string{"Lost communication with a control module", "CAN bus wiring fault", "Low battery voltage or poor ground"},
		solutions:   []string{"Check battery voltage and main grounds", "Inspect CAN bus wiring and terminating resistors", "Verify each module powers up and responds to a scan"},
	},
	'A': {
		name:        "Aircraft",
		description: "aircraft system fault reported by onboard monitoring",
		causes:      []string{"Sensor or line-replaceable unit failure", "Wiring or connector fault", "Software or configuration mismatch"},
		solutions:   []string{"Consult the aircraft maintenance manual for the fault code", "Perform the prescribed built-in test", "Replace the affected unit per approved procedures"},
	},
	'I': {
		name:        "Industrial",
		description: "industrial equipment fault reported by the controller",
		causes:      []string{"Sensor or limit switch failure", "Overload or overheating", "Controller parameter or power supply fault"},
		solutions:   []string{"Check the controller alarm history", "Inspect sensors, motors and power supply", "Reset the fault after correcting the cause and monitor operation"},
	},
	'T': {
		name:        "Technology",
		description: "device fault reported by its self-diagnostics",
		causes:      []string{"Firmware or software error", "Component or sensor failure", "Power supply or connectivity problem"},
		solutions:   []string{"Power cycle the device", "Update firmware or software", "Contact the manufacturer's support with the error code"},
	},
}

// Simulate produces a templated analysis from the first character of code.
// It never fails.
func Simulate(code, equipment string) faultcode.Report {
	code = strings.ToUpper(strings.TrimSpace(code))

	var prefix byte
	if code != "" {
		prefix = code[0]
	}
	if prefix == 'E' {
		prefix = 'T'
	}

	cat, ok := categories[prefix]
	if !ok {
		return faultcode.Report{
			Code:        code,
			Equipment:   equipment,
			Description: "Unknown category fault code " + code + ". The code format is not recognised, so only general guidance is available.",
			Causes:      []string{"Component or sensor failure", "Wiring or connection problem", "Software or configuration error"},
			Solutions:   []string{"Consult the equipment manual for this code", "Inspect visible components and connections", "Contact the manufacturer or a qualified technician"},
			Safety:      SafetyNotice,
		}
	}

	return faultcode.Report{
		Code:        code,
		Equipment:   equipment,
		Description: cat.name + " fault code " + code + ": a " + cat.description + ".",
		Causes:      append([]string(nil), cat.causes...),
		Solutions:   append([]string(nil), cat.solutions...),
		Safety:      SafetyNotice,
	}
}
