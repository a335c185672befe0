package inspector

import (
	"encoding/json"
	"fmt"
)

type CheckStatus string

const (
	CheckPass CheckStatus = "pass"
	CheckWarn CheckStatus = "warn"
	CheckFail CheckStatus = "fail"
)

// Check is one line of an inspection report.
type Check struct {
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
}

// InspectionReport pairs a raw agent card with the checks run against it.
type InspectionReport struct {
	Card   json.RawMessage `json:"card"`
	Checks []Check         `json:"checks"`
	// Passed is false when any check failed. Warnings do not fail a card.
	Passed bool `json:"passed"`
}

var requiredCardFields = []string{"name", "version", "capabilities", "url"}

// InspectCard evaluates the card checklist over the raw document. Fields are
// read from the generic JSON value so absent and empty fields can be told apart.
func InspectCard(raw json.RawMessage) (*InspectionReport, error) {
	var card map[string]any
	if err := json.Unmarshal(raw, &card); err != nil {
		return nil, fmt.Errorf("agent card is not a JSON object: %w", err)
	}

	report := &InspectionReport{Card: raw}
	add := func(status CheckStatus, format string, args ...any) {
		report.Checks = append(report.Checks, Check{Status: status, Message: fmt.Sprintf(format, args...)})
	}

	for _, field := range requiredCardFields {
		if isEmptyValue(card[field]) {
			add(CheckFail, "Missing required field: %s", field)
		} else {
			add(CheckPass, "Required field '%s' is present", field)
		}
	}

	if value, ok := card["capabilities"]; ok {
		if caps, ok := value.(map[string]any); ok {
			add(CheckPass, "Capabilities structure is valid")
			if truthy(caps["streaming"]) {
				add(CheckPass, "Streaming capability supported")
			} else {
				add(CheckWarn, "Streaming capability not supported")
			}
			if truthy(caps["pushNotifications"]) {
				add(CheckPass, "Push notifications supported")
			} else {
				add(CheckWarn, "Push notifications not supported")
			}
		} else {
			add(CheckFail, "Capabilities must be an object")
		}
	}

	if value, ok := card["skills"]; ok {
		if skills, ok := value.([]any); ok {
			if len(skills) > 0 {
				add(CheckPass, "Agent has %d skills defined", len(skills))
			} else {
				add(CheckWarn, "No skills defined")
			}
		} else {
			add(CheckFail, "Skills must be an array")
		}
	}

	report.Passed = true
	for _, c := range report.Checks {
		if c.Status == CheckFail {
			report.Passed = false
			break
		}
	}
	return report, nil
}

func isEmptyValue(v any) bool {
	return !truthy(v)
}

// truthy treats null, false, zero, "" and empty containers as absent.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
