// Package recognition extracts a license plate and vehicle class from an
// image using an external inference service.
package recognition

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoPlate is returned when the service found no plate-like text.
var ErrNoPlate = errors.New("no license plate detected")

var nonPlateChars = regexp.MustCompile(`[^A-Z0-9]`)

// plateShape accepts 4–10 letters and digits with at least one of each.
var plateShape = regexp.MustCompile(`^[A-Z0-9]{4,10}$`)

// cleanPlate upper-cases text and drops spaces and punctuation.
func cleanPlate(text string) string {
	return nonPlateChars.ReplaceAllString(strings.ToUpper(text), "")
}

func looksLikePlate(p string) bool {
	return plateShape.MatchString(p) &&
		strings.ContainsAny(p, "0123456789") &&
		strings.ContainsAny(p, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
}
