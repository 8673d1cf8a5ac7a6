package utils

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ParseFloatParam retrieves a float64 value from the provided URL query parameters.
// If the key is not present it returns 0. Invalid values are reported in fieldErrors.
func ParseFloatParam(params url.Values, key string, fieldErrors map[string][]string) (float64, map[string][]string) {
	if fieldErrors == nil {
		fieldErrors = make(map[string][]string)
	}

	val := params.Get(key)
	if val == "" {
		return 0, fieldErrors
	}

	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		fieldErrors[key] = append(fieldErrors[key], fmt.Sprintf("Invalid field value for field %q.", key))
	}
	return f, fieldErrors
}

// ParseBoolParam reads a true/false query parameter. A missing key is false.
func ParseBoolParam(params url.Values, key string, fieldErrors map[string][]string) (bool, map[string][]string) {
	if fieldErrors == nil {
		fieldErrors = make(map[string][]string)
	}

	val := params.Get(key)
	if val == "" {
		return false, fieldErrors
	}

	b, err := strconv.ParseBool(val)
	if err != nil {
		fieldErrors[key] = append(fieldErrors[key], fmt.Sprintf("Invalid field value for field %q.", key))
	}
	return b, fieldErrors
}

// ParseListParam splits a comma separated query parameter, dropping blanks.
func ParseListParam(params url.Values, key string) []string {
	var out []string
	for _, raw := range params[key] {
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// ParseDateParameter parses a YYYY-MM-DD path or query value into a day in loc.
// An empty value means today. It returns the normalized date string, any field errors
// encountered, and a boolean indicating if the parsing was successful.
func ParseDateParameter(dateParam string, loc *time.Location) (string, map[string][]string, bool) {
	if dateParam == "" {
		return time.Now().In(loc).Format("2006-01-02"), nil, true
	}

	parsed, err := time.ParseInLocation("2006-01-02", dateParam, loc)
	if err != nil {
		fieldErrors := map[string][]string{
			"date": {"Invalid field value for field \"date\"."},
		}
		return "", fieldErrors, false
	}

	return parsed.Format("2006-01-02"), nil, true
}
