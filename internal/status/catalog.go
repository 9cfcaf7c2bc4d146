// Package status defines the fixed catalogue of agent presence statuses.
package status

import "fmt"

// Category groups statuses for aggregate floor-time reporting.
type Category string

const (
	CategoryWorking     Category = "working"
	CategoryBreak       Category = "break"
	CategoryUnavailable Category = "unavailable"
)

// Recognized status codes. The catalogue is fixed at process start; status
// rows in the ledger reference these codes by value.
const (
	Available   = "available"
	Break1      = "break_1"
	Lunch       = "lunch"
	Break2      = "break_2"
	Meeting     = "meeting"
	Training    = "training"
	Briefing    = "briefing"
	Unavailable = "unavailable"
	Offline     = "offline"
)

// Status describes one entry in the catalogue.
type Status struct {
	Code     string
	Label    string
	Category Category
}

// catalog is ordered for display; lookup goes through byCode.
var catalog = []Status{
	{Code: Available, Label: "Available", Category: CategoryWorking},
	{Code: Break1, Label: "Break 1", Category: CategoryBreak},
	{Code: Lunch, Label: "Lunch", Category: CategoryBreak},
	{Code: Break2, Label: "Break 2", Category: CategoryBreak},
	{Code: Meeting, Label: "Meeting", Category: CategoryWorking},
	{Code: Training, Label: "Training", Category: CategoryWorking},
	{Code: Briefing, Label: "Briefing", Category: CategoryWorking},
	{Code: Unavailable, Label: "Unavailable", Category: CategoryUnavailable},
	{Code: Offline, Label: "Offline", Category: CategoryUnavailable},
}

var byCode = func() map[string]Status {
	m := make(map[string]Status, len(catalog))
	for _, s := range catalog {
		m[s.Code] = s
	}
	return m
}()

// All returns the catalogue in display order. The returned slice is a copy.
func All() []Status {
	out := make([]Status, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the Status for a code.
func Lookup(code string) (Status, error) {
	s, ok := byCode[code]
	if !ok {
		return Status{}, fmt.Errorf("status: unknown status %q", code)
	}
	return s, nil
}

// Valid reports whether code is in the catalogue.
func Valid(code string) bool {
	_, ok := byCode[code]
	return ok
}

// CategoryOf returns the category for a code, or empty for unknown codes.
func CategoryOf(code string) Category {
	return byCode[code].Category
}

// Codes returns all recognized codes in display order.
func Codes() []string {
	out := make([]string, len(catalog))
	for i, s := range catalog {
		out[i] = s.Code
	}
	return out
}
