package analyzer

import (
	"fmt"
)

// function describes a built-in function.
type function struct {
	minArgs int
	maxArgs int // -1 for variadic
	// aggregate functions are only valid in summarize; prefix names their
	// result column (prefix_Column, or prefix_ for computed arguments).
	aggregate bool
	prefix    string
	result    func(args []string) string
}

func fixed(t string) func([]string) string {
	return func([]string) string { return t }
}

// argType returns the type of argument i.
func argType(i int) func([]string) string {
	return func(args []string) string {
		if i < len(args) {
			return args[i]
		}
		return TypeUnknown
	}
}

// sumType is the result type of sum-like aggregates.
func sumType(args []string) string {
	if len(args) == 0 {
		return TypeUnknown
	}
	switch t := args[0]; t {
	case TypeInt, TypeLong:
		return TypeLong
	case TypeReal, TypeDecimal, TypeTimespan:
		return t
	}
	return TypeUnknown
}

// firstKnown returns the first argument type that is not loose.
func firstKnown(from, step int) func([]string) string {
	return func(args []string) string {
		for i := from; i < len(args); i += step {
			if !isLoose(args[i]) {
				return args[i]
			}
		}
		return TypeUnknown
	}
}

func scalar(minArgs, maxArgs int, result func([]string) string) *function {
	return &function{minArgs: minArgs, maxArgs: maxArgs, result: result}
}

func aggregate(prefix string, minArgs, maxArgs int, result func([]string) string) *function {
	return &function{minArgs: minArgs, maxArgs: maxArgs, aggregate: true, prefix: prefix, result: result}
}

// builtins is the function table used for name resolution and return type
// inference.
var builtins = map[string]*function{
	// conversion
	"tostring":   scalar(1, 1, fixed(TypeString)),
	"toint":      scalar(1, 1, fixed(TypeInt)),
	"tolong":     scalar(1, 1, fixed(TypeLong)),
	"toreal":     scalar(1, 1, fixed(TypeReal)),
	"todouble":   scalar(1, 1, fixed(TypeReal)),
	"todecimal":  scalar(1, 1, fixed(TypeDecimal)),
	"tobool":     scalar(1, 1, fixed(TypeBool)),
	"toboolean":  scalar(1, 1, fixed(TypeBool)),
	"todatetime": scalar(1, 1, fixed(TypeDatetime)),
	"totimespan": scalar(1, 1, fixed(TypeTimespan)),
	"toguid":     scalar(1, 1, fixed(TypeGUID)),
	"todynamic":  scalar(1, 1, fixed(TypeDynamic)),
	"parse_json": scalar(1, 1, fixed(TypeDynamic)),
	"gettype":    scalar(1, 1, fixed(TypeString)),

	// logical and conditional
	"not":        scalar(1, 1, fixed(TypeBool)),
	"isnull":     scalar(1, 1, fixed(TypeBool)),
	"isnotnull":  scalar(1, 1, fixed(TypeBool)),
	"isempty":    scalar(1, 1, fixed(TypeBool)),
	"isnotempty": scalar(1, 1, fixed(TypeBool)),
	"iff":        scalar(3, 3, firstKnown(1, 1)),
	"iif":        scalar(3, 3, firstKnown(1, 1)),
	"case":       scalar(3, -1, firstKnown(1, 2)),
	"coalesce":   scalar(1, -1, firstKnown(0, 1)),
	"max_of":     scalar(1, -1, firstKnown(0, 1)),
	"min_of":     scalar(1, -1, firstKnown(0, 1)),

	// strings
	"strlen":         scalar(1, 1, fixed(TypeLong)),
	"tolower":        scalar(1, 1, fixed(TypeString)),
	"toupper":        scalar(1, 1, fixed(TypeString)),
	"strcat":         scalar(1, -1, fixed(TypeString)),
	"strcat_delim":   scalar(2, -1, fixed(TypeString)),
	"substring":      scalar(2, 3, fixed(TypeString)),
	"trim":           scalar(2, 2, fixed(TypeString)),
	"trim_start":     scalar(2, 2, fixed(TypeString)),
	"trim_end":       scalar(2, 2, fixed(TypeString)),
	"replace_string": scalar(3, 3, fixed(TypeString)),
	"replace_regex":  scalar(3, 3, fixed(TypeString)),
	"reverse":        scalar(1, 1, fixed(TypeString)),
	"extract":        scalar(3, 4, fixed(TypeString)),
	"extract_all":    scalar(2, 3, fixed(TypeDynamic)),
	"split":          scalar(2, 3, fixed(TypeDynamic)),
	"indexof":        scalar(2, 5, fixed(TypeLong)),
	"countof":        scalar(2, 3, fixed(TypeLong)),
	"strcmp":         scalar(2, 2, fixed(TypeInt)),
	"strrep":         scalar(2, 3, fixed(TypeString)),
	"url_encode":     scalar(1, 1, fixed(TypeString)),
	"url_decode":     scalar(1, 1, fixed(TypeString)),
	"hash":           scalar(1, 2, fixed(TypeLong)),
	"hash_sha256":    scalar(1, 1, fixed(TypeString)),
	"new_guid":       scalar(0, 0, fixed(TypeGUID)),

	"base64_encode_tostring": scalar(1, 1, fixed(TypeString)),
	"base64_decode_tostring": scalar(1, 1, fixed(TypeString)),

	// math
	"abs":     scalar(1, 1, argType(0)),
	"round":   scalar(1, 2, argType(0)),
	"floor":   scalar(2, 2, argType(0)),
	"bin":     scalar(2, 2, argType(0)),
	"bin_at":  scalar(3, 3, argType(0)),
	"ceiling": scalar(1, 1, argType(0)),
	"sqrt":    scalar(1, 1, fixed(TypeReal)),
	"exp":     scalar(1, 1, fixed(TypeReal)),
	"log":     scalar(1, 1, fixed(TypeReal)),
	"log10":   scalar(1, 1, fixed(TypeReal)),
	"log2":    scalar(1, 1, fixed(TypeReal)),
	"pow":     scalar(2, 2, fixed(TypeReal)),
	"rand":    scalar(0, 1, fixed(TypeReal)),
	"sign":    scalar(1, 1, argType(0)),

	// date and time
	"now":             scalar(0, 1, fixed(TypeDatetime)),
	"ago":             scalar(1, 1, fixed(TypeDatetime)),
	"startofday":      scalar(1, 2, fixed(TypeDatetime)),
	"startofweek":     scalar(1, 2, fixed(TypeDatetime)),
	"startofmonth":    scalar(1, 2, fixed(TypeDatetime)),
	"startofyear":     scalar(1, 2, fixed(TypeDatetime)),
	"endofday":        scalar(1, 2, fixed(TypeDatetime)),
	"endofweek":       scalar(1, 2, fixed(TypeDatetime)),
	"endofmonth":      scalar(1, 2, fixed(TypeDatetime)),
	"endofyear":       scalar(1, 2, fixed(TypeDatetime)),
	"datetime_add":    scalar(3, 3, fixed(TypeDatetime)),
	"datetime_diff":   scalar(3, 3, fixed(TypeLong)),
	"datetime_part":   scalar(2, 2, fixed(TypeInt)),
	"format_datetime": scalar(2, 2, fixed(TypeString)),
	"format_timespan": scalar(2, 2, fixed(TypeString)),
	"make_datetime":   scalar(3, 7, fixed(TypeDatetime)),
	"make_timespan":   scalar(2, 4, fixed(TypeTimespan)),
	"dayofweek":       scalar(1, 1, fixed(TypeTimespan)),
	"dayofmonth":      scalar(1, 1, fixed(TypeInt)),
	"dayofyear":       scalar(1, 1, fixed(TypeInt)),
	"hourofday":       scalar(1, 1, fixed(TypeInt)),
	"getmonth":        scalar(1, 1, fixed(TypeInt)),
	"monthofyear":     scalar(1, 1, fixed(TypeInt)),
	"getyear":         scalar(1, 1, fixed(TypeInt)),
	"week_of_year":    scalar(1, 1, fixed(TypeInt)),

	"unixtime_seconds_todatetime":      scalar(1, 1, fixed(TypeDatetime)),
	"unixtime_milliseconds_todatetime": scalar(1, 1, fixed(TypeDatetime)),

	// dynamic
	"array_length":    scalar(1, 1, fixed(TypeLong)),
	"array_concat":    scalar(1, -1, fixed(TypeDynamic)),
	"array_slice":     scalar(3, 3, fixed(TypeDynamic)),
	"array_sort_asc":  scalar(1, -1, fixed(TypeDynamic)),
	"array_sort_desc": scalar(1, -1, fixed(TypeDynamic)),
	"bag_keys":        scalar(1, 1, fixed(TypeDynamic)),
	"bag_merge":       scalar(1, -1, fixed(TypeDynamic)),
	"pack":            scalar(0, -1, fixed(TypeDynamic)),
	"bag_pack":        scalar(0, -1, fixed(TypeDynamic)),
	"pack_all":        scalar(0, 1, fixed(TypeDynamic)),
	"pack_array":      scalar(0, -1, fixed(TypeDynamic)),
	"set_has_element": scalar(2, 2, fixed(TypeBool)),
	"zip":             scalar(2, -1, fixed(TypeDynamic)),

	// window and tabular helpers
	"row_number": scalar(0, 3, fixed(TypeLong)),
	"prev":       scalar(1, 3, argType(0)),
	"next":       scalar(1, 3, argType(0)),
	"toscalar":   scalar(1, 1, fixed(TypeUnknown)),

	// aggregates
	"count":          aggregate("count", 0, 0, fixed(TypeLong)),
	"countif":        aggregate("countif", 1, 1, fixed(TypeLong)),
	"dcount":         aggregate("dcount", 1, 2, fixed(TypeLong)),
	"dcountif":       aggregate("dcountif", 2, 3, fixed(TypeLong)),
	"count_distinct": aggregate("count_distinct", 1, 1, fixed(TypeLong)),
	"sum":            aggregate("sum", 1, 1, sumType),
	"sumif":          aggregate("sumif", 2, 2, sumType),
	"avg":            aggregate("avg", 1, 1, fixed(TypeReal)),
	"avgif":          aggregate("avgif", 2, 2, fixed(TypeReal)),
	"min":            aggregate("min", 1, 1, argType(0)),
	"max":            aggregate("max", 1, 1, argType(0)),
	"minif":          aggregate("minif", 2, 2, argType(0)),
	"maxif":          aggregate("maxif", 2, 2, argType(0)),
	"any":            aggregate("any", 1, -1, argType(0)),
	"take_any":       aggregate("any", 1, -1, argType(0)),
	"stdev":          aggregate("stdev", 1, 1, fixed(TypeReal)),
	"variance":       aggregate("variance", 1, 1, fixed(TypeReal)),
	"percentile":     aggregate("percentile", 2, 2, argType(0)),
	"make_list":      aggregate("list", 1, 2, fixed(TypeDynamic)),
	"make_set":       aggregate("set", 1, 2, fixed(TypeDynamic)),
	"make_bag":       aggregate("bag", 1, 2, fixed(TypeDynamic)),
	"hll":            aggregate("hll", 1, 2, fixed(TypeDynamic)),
	"arg_max":        aggregate("", 2, -1, argType(0)),
	"arg_min":        aggregate("", 2, -1, argType(0)),
}

// lookupFunction returns the built-in function called name.
func lookupFunction(name string) (*function, bool) {
	f, ok := builtins[name]
	return f, ok
}

// arity describes the accepted argument count.
func (f *function) arity() string {
	switch {
	case f.minArgs == f.maxArgs:
		return plural(f.minArgs)
	case f.maxArgs < 0:
		return "at least " + plural(f.minArgs)
	}
	return fmt.Sprintf("between %d and %d arguments", f.minArgs, f.maxArgs)
}

func plural(n int) string {
	if n == 1 {
		return "1 argument"
	}
	return fmt.Sprintf("%d arguments", n)
}

func (f *function) accepts(n int) bool {
	return n >= f.minArgs && (f.maxArgs < 0 || n <= f.maxArgs)
}
