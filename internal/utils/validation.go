package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// IDs become store path segments, so dots are not allowed
	validIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	dangerousPattern = regexp.MustCompile(`[<>]|--|\/\*|\*\/|;.*--`)

	htmlTagPattern = regexp.MustCompile(`<[^>]*>`)
)

// ValidateID validates that an ID is safe to use as a store path segment
func ValidateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}

	if len(id) > 100 {
		return errors.New("id too long (max 100 characters)")
	}

	if !validIDPattern.MatchString(id) {
		return errors.New("id contains invalid characters")
	}

	return nil
}

// ValidateText validates free text such as incident descriptions and driver messages
func ValidateText(text string, maxLen int) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("text cannot be empty")
	}

	if len(text) > maxLen {
		return fmt.Errorf("text too long (max %d characters)", maxLen)
	}

	if dangerousPattern.MatchString(text) {
		return errors.New("text contains invalid characters")
	}

	return nil
}

// ValidateLatitude validates latitude values
func ValidateLatitude(lat float64) error {
	if lat < -90.0 || lat > 90.0 {
		return errors.New("latitude must be between -90 and 90")
	}
	return nil
}

// ValidateLongitude validates longitude values
func ValidateLongitude(lon float64) error {
	if lon < -180.0 || lon > 180.0 {
		return errors.New("longitude must be between -180 and 180")
	}
	return nil
}

// ValidateDate validates date strings in YYYY-MM-DD format
func ValidateDate(date string) error {
	if date == "" {
		return nil
	}

	if _, err := time.Parse("2006-01-02", date); err != nil {
		return errors.New("invalid date format, use YYYY-MM-DD")
	}

	return nil
}

// SanitizeInput removes HTML tags and surrounding whitespace
func SanitizeInput(input string) string {
	sanitized := htmlTagPattern.ReplaceAllString(input, "")
	return strings.TrimSpace(sanitized)
}

// ValidateLocation validates a coordinate pair and reports problems per field
func ValidateLocation(lat, lon float64) map[string][]string {
	fieldErrors := make(map[string][]string)

	if err := ValidateLatitude(lat); err != nil {
		fieldErrors["lat"] = append(fieldErrors["lat"], err.Error())
	}

	if err := ValidateLongitude(lon); err != nil {
		fieldErrors["lon"] = append(fieldErrors["lon"], err.Error())
	}

	return fieldErrors
}
