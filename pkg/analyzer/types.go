package analyzer

import "strings"

// Scalar type names. TypeUnknown marks a value whose type cannot be
// inferred; it is compatible with everything so that one unresolved name
// does not cascade into further diagnostics.
const (
	TypeUnknown  = ""
	TypeBool     = "bool"
	TypeInt      = "int"
	TypeLong     = "long"
	TypeReal     = "real"
	TypeDecimal  = "decimal"
	TypeString   = "string"
	TypeDatetime = "datetime"
	TypeTimespan = "timespan"
	TypeGUID     = "guid"
	TypeDynamic  = "dynamic"
)

var typeAliases = map[string]string{
	"bool":     TypeBool,
	"boolean":  TypeBool,
	"int":      TypeInt,
	"int32":    TypeInt,
	"long":     TypeLong,
	"int64":    TypeLong,
	"real":     TypeReal,
	"double":   TypeReal,
	"decimal":  TypeDecimal,
	"string":   TypeString,
	"datetime": TypeDatetime,
	"date":     TypeDatetime,
	"timespan": TypeTimespan,
	"time":     TypeTimespan,
	"guid":     TypeGUID,
	"uuid":     TypeGUID,
	"uniqueid": TypeGUID,
	"dynamic":  TypeDynamic,

	// .NET names reported by older schema formats
	"system.boolean":                  TypeBool,
	"system.sbyte":                    TypeBool,
	"system.int32":                    TypeInt,
	"system.int64":                    TypeLong,
	"system.double":                   TypeReal,
	"system.data.sqltypes.sqldecimal": TypeDecimal,
	"system.string":                   TypeString,
	"system.datetime":                 TypeDatetime,
	"system.timespan":                 TypeTimespan,
	"system.guid":                     TypeGUID,
	"system.object":                   TypeDynamic,
}

// NormalizeType maps a Kusto type name or alias to its canonical name.
// Unrecognized names map to TypeUnknown.
func NormalizeType(name string) string {
	return typeAliases[strings.ToLower(strings.TrimSpace(name))]
}

func isNumeric(t string) bool {
	switch t {
	case TypeInt, TypeLong, TypeReal, TypeDecimal:
		return true
	}
	return false
}

// isLoose reports whether t defers checking to run time.
func isLoose(t string) bool {
	return t == TypeUnknown || t == TypeDynamic
}

// promote returns the common numeric type of a and b.
func promote(a, b string) string {
	switch {
	case a == TypeReal || b == TypeReal:
		return TypeReal
	case a == TypeDecimal || b == TypeDecimal:
		return TypeDecimal
	case a == TypeLong || b == TypeLong:
		return TypeLong
	}
	return TypeInt
}

// canCompare reports whether values of types a and b may be compared.
func canCompare(a, b string) bool {
	if isLoose(a) || isLoose(b) || a == b {
		return true
	}
	return isNumeric(a) && isNumeric(b)
}

// arithmetic returns the result type of a op b, or ok=false when the
// operator is not defined for the operand types.
func arithmetic(op, a, b string) (string, bool) {
	if isLoose(a) || isLoose(b) {
		return TypeUnknown, true
	}
	if isNumeric(a) && isNumeric(b) {
		return promote(a, b), true
	}
	if op == "%" {
		return "", false
	}

	switch {
	case a == TypeDatetime && b == TypeDatetime && op == "-":
		return TypeTimespan, true
	case a == TypeDatetime && b == TypeTimespan && (op == "+" || op == "-"):
		return TypeDatetime, true
	case a == TypeTimespan && b == TypeDatetime && op == "+":
		return TypeDatetime, true
	case a == TypeTimespan && b == TypeTimespan:
		switch op {
		case "+", "-":
			return TypeTimespan, true
		case "/":
			return TypeReal, true
		}
	case a == TypeTimespan && isNumeric(b) && (op == "*" || op == "/"):
		return TypeTimespan, true
	case isNumeric(a) && b == TypeTimespan && op == "*":
		return TypeTimespan, true
	}
	return "", false
}
