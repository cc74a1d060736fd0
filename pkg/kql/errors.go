package kql

import "fmt"

// ParseError is a syntax error with its position in the query text.
type ParseError struct {
	Pos     Pos
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Common error messages.
const (
	errUnexpectedToken = "unexpected %s, expected %s"
	errEmptyQuery      = "query is empty"
	errUserFunction    = "user-defined functions are not supported"
	errUnknownOperator = "unknown query operator %s"
	errMissingOperator = "expected a query operator after '|'"
)
