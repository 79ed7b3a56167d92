package common

import "fmt"

// Status of a processed scene or area in the run report.
type Status int

const (
	StatusNEW Status = iota
	StatusDONE
	StatusEMPTY
	StatusSKIPPED
	StatusFAILED
)

func (s Status) String() string {
	switch s {
	case StatusNEW:
		return "NEW"
	case StatusDONE:
		return "DONE"
	case StatusEMPTY:
		return "EMPTY"
	case StatusSKIPPED:
		return "SKIPPED"
	case StatusFAILED:
		return "FAILED"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalJSON implements json.Marshaler
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}
