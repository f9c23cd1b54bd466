package validate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tbxark/intakeagent/form"
)

// Rule checks a candidate value. On success it returns the normalized value.
type Rule func(d form.Descriptor, value string, now time.Time) (string, error)

var rules = map[string]Rule{
	form.RuleText:    checkText,
	form.RuleVIN:     checkVIN,
	form.RuleUSState: checkState,
	form.RuleYear:    checkYear,
	form.RuleNumber:  checkNumber,
	form.RuleCount:   checkCount,
	form.RuleYesNo:   checkYesNo,
	form.RuleDate:    checkDate,
}

func checkText(d form.Descriptor, value string, _ time.Time) (string, error) {
	v := strings.Join(strings.Fields(value), " ")
	minLen := 1
	if d.Min != nil && int(*d.Min) > minLen {
		minLen = int(*d.Min)
	}
	if len([]rune(v)) < minLen {
		if minLen == 1 {
			return "", fmt.Errorf("%s cannot be empty", d.Name)
		}
		return "", fmt.Errorf("%s needs a bit more detail (at least %d characters)", d.Name, minLen)
	}
	return v, nil
}

func checkVIN(d form.Descriptor, value string, _ time.Time) (string, error) {
	v := strings.ToUpper(strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(value)))
	if len(v) != 17 {
		return "", fmt.Errorf("a VIN must be exactly 17 characters, %q has %d", v, len(v))
	}
	for _, r := range v {
		switch {
		case r == 'I' || r == 'O' || r == 'Q':
			return "", fmt.Errorf("a VIN never contains the letters I, O or Q (found %q)", r)
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		default:
			return "", fmt.Errorf("a VIN only contains letters and digits (found %q)", r)
		}
	}
	return v, nil
}

var usStates = map[string]string{
	"AL": "ALABAMA", "AK": "ALASKA", "AZ": "ARIZONA", "AR": "ARKANSAS", "CA": "CALIFORNIA",
	"CO": "COLORADO", "CT": "CONNECTICUT", "DE": "DELAWARE", "FL": "FLORIDA", "GA": "GEORGIA",
	"HI": "HAWAII", "ID": "IDAHO", "IL": "ILLINOIS", "IN": "INDIANA", "IA": "IOWA",
	"KS": "KANSAS", "KY": "KENTUCKY", "LA": "LOUISIANA", "ME": "MAINE", "MD": "MARYLAND",
	"MA": "MASSACHUSETTS", "MI": "MICHIGAN", "MN": "MINNESOTA", "MS": "MISSISSIPPI", "MO": "MISSOURI",
	"MT": "MONTANA", "NE": "NEBRASKA", "NV": "NEVADA", "NH": "NEW HAMPSHIRE", "NJ": "NEW JERSEY",
	"NM": "NEW MEXICO", "NY": "NEW YORK", "NC": "NORTH CAROLINA", "ND": "NORTH DAKOTA", "OH": "OHIO",
	"OK": "OKLAHOMA", "OR": "OREGON", "PA": "PENNSYLVANIA", "RI": "RHODE ISLAND", "SC": "SOUTH CAROLINA",
	"SD": "SOUTH DAKOTA", "TN": "TENNESSEE", "TX": "TEXAS", "UT": "UTAH", "VT": "VERMONT",
	"VA": "VIRGINIA", "WA": "WASHINGTON", "WV": "WEST VIRGINIA", "WI": "WISCONSIN", "WY": "WYOMING",
	"DC": "DISTRICT OF COLUMBIA",
}

func checkState(d form.Descriptor, value string, _ time.Time) (string, error) {
	v := strings.ToUpper(strings.Join(strings.Fields(strings.ReplaceAll(value, ".", "")), " "))
	if _, ok := usStates[v]; ok {
		return v, nil
	}
	for code, name := range usStates {
		if name == v {
			return code, nil
		}
	}
	return "", fmt.Errorf("%q is not a US state code; use the 2-letter abbreviation like CA or TX", value)
}

func bounds(d form.Descriptor) (lo, hi float64) {
	lo, hi = math.Inf(-1), math.Inf(1)
	if d.Min != nil {
		lo = *d.Min
	}
	if d.Max != nil {
		hi = *d.Max
	}
	return lo, hi
}

func parseNumber(value string) (float64, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, unit := range []string{"miles per hour", "mph", "km/h", "miles", "mi"} {
		v = strings.TrimSpace(strings.TrimSuffix(v, unit))
	}
	v = strings.ReplaceAll(v, ",", "")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func checkYear(d form.Descriptor, value string, now time.Time) (string, error) {
	f, ok := parseNumber(value)
	if !ok || f != math.Trunc(f) {
		return "", fmt.Errorf("%s should be a 4-digit year, got %q", d.Name, value)
	}
	lo, _ := bounds(d)
	hi := float64(now.Year() + 1)
	if d.Max != nil {
		hi = *d.Max
	}
	if f < lo || f > hi {
		return "", fmt.Errorf("%s must be between %d and %d", d.Name, int(lo), int(hi))
	}
	return strconv.Itoa(int(f)), nil
}

func checkNumber(d form.Descriptor, value string, _ time.Time) (string, error) {
	f, ok := parseNumber(value)
	if !ok {
		return "", fmt.Errorf("%s should be a number, got %q", d.Name, value)
	}
	lo, hi := bounds(d)
	if f < lo || f > hi {
		return "", fmt.Errorf("%s must be between %s and %s", d.Name, fmtFloat(lo), fmtFloat(hi))
	}
	return fmtFloat(f), nil
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var countWords = map[string]int{
	"no": 0, "none": 0, "zero": 0, "nobody": 0, "no one": 0, "nope": 0,
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// defaultMaxCount caps counts whose descriptor declares no max.
const defaultMaxCount = 1000

func checkCount(d form.Descriptor, value string, _ time.Time) (string, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if n, ok := countWords[v]; ok {
		return strconv.Itoa(n), nil
	}
	f, ok := parseNumber(v)
	if !ok || f < 0 || f != math.Trunc(f) {
		return "", fmt.Errorf("%s should be a whole number of people, got %q", d.Name, value)
	}
	hi := float64(defaultMaxCount)
	if d.Max != nil {
		hi = *d.Max
	}
	if f > hi {
		return "", fmt.Errorf("%s must be at most %s", d.Name, fmtFloat(hi))
	}
	return strconv.Itoa(int(f)), nil
}

func checkYesNo(d form.Descriptor, value string, _ time.Time) (string, error) {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(value), ".!")) {
	case "yes", "y", "true", "yeah", "yep", "there was":
		return "Yes", nil
	case "no", "n", "false", "nope", "none", "there wasn't", "there was not":
		return "No", nil
	}
	return "", fmt.Errorf("%s should be yes or no, got %q", d.Name, value)
}

func checkDate(d form.Descriptor, value string, now time.Time) (string, error) {
	v := strings.ReplaceAll(strings.TrimSpace(value), "/", "-")
	t, err := time.ParseInLocation("2006-01-02", v, now.Location())
	if err != nil {
		return "", fmt.Errorf("%s should be a date like 2024-03-15, got %q", d.Name, value)
	}
	if t.After(now) {
		return "", fmt.Errorf("%s cannot be in the future", d.Name)
	}
	return t.Format("2006-01-02"), nil
}
