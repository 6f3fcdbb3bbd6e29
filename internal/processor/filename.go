package processor

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var nonFilenameRun = regexp.MustCompile(`[^a-z0-9_-]+`)
var digitsOnly = regexp.MustCompile(`[^0-9]`)

// ArtifactName builds the deterministic artifact filename:
// call_<date>_<name>_<last-4-of-phone>_<unix-ms>.json
func ArtifactName(date, name, phone string, now time.Time) string {
	return fmt.Sprintf("call_%s_%s_%s_%d.json",
		sanitize(date), sanitize(name), phoneSuffix(phone), now.UnixMilli())
}

// sanitize lowercases and collapses any run of characters outside
// [a-z0-9_-] into a single underscore.
func sanitize(s string) string {
	s = nonFilenameRun.ReplaceAllString(strings.ToLower(s), "_")
	return strings.Trim(s, "_")
}

func phoneSuffix(phone string) string {
	digits := digitsOnly.ReplaceAllString(phone, "")
	if len(digits) > 4 {
		return digits[len(digits)-4:]
	}
	return digits
}
