package analyzer

import (
	"encoding/json"
	"fmt"

	"github.com/txn2/mcp-kusto/pkg/kql"
)

// Severity ranks a diagnostic. Only SeverityError fails validation.
type Severity int

// Severity levels.
const (
	SeverityError Severity = iota
	SeverityWarning
	SeveritySuggestion
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeveritySuggestion:
		return "suggestion"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// MarshalJSON renders the severity by name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Diagnostic codes.
const (
	CodeSyntax          = "KQL001"
	CodeUnknownTable    = "KQL002"
	CodeUnknownColumn   = "KQL003"
	CodeUnknownFunction = "KQL004"
	CodeResolution      = "KQL005"
	CodeTypeMismatch    = "KQL006"
	CodePredicateType   = "KQL007"
	CodeAggregate       = "KQL008"
	CodeArity           = "KQL009"
	CodeDuplicateColumn = "KQL010"
	CodePreferHas       = "KQL011"
	CodeOpaqueOperator  = "KQL012"
)

// Diagnostic is one finding about a query.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Pos      kql.Pos  `json:"position"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s at %s: %s", d.Severity, d.Code, d.Pos, d.Message)
}
