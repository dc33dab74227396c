// ABOUTME: Lenient numeric parsing of free-text item values
// ABOUTME: Unparseable input counts as zero rather than an error

package trade

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var valueReplacer = strings.NewReplacer(",", "", "$", "")

// decimalPattern accepts plain decimal notation with an optional exponent.
// Underscores may separate digits. Hex floats, NaN and Inf do not match.
var decimalPattern = regexp.MustCompile(`^[+-]?(\d(_?\d)*(\.(\d(_?\d)*)?)?|\.\d(_?\d)*)([eE][+-]?\d(_?\d)*)?$`)

// ParseValue converts a typed value such as "$1,234.50" to a number.
// Thousands separators, dollar signs and surrounding whitespace are stripped.
// Anything that is not a decimal number afterwards is 0.
func ParseValue(raw string) float64 {
	s := strings.TrimSpace(valueReplacer.Replace(raw))
	if !decimalPattern.MatchString(s) {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, "_", ""), 64)
	if err != nil || math.IsInf(v, 0) {
		return 0
	}
	return v
}
