package booking

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
)

const (
	trackingPrefix = "TR-"
	trackingMin    = 1000
	trackingMax    = 9999
)

var trackingIDPattern = regexp.MustCompile(`^TR-\d{4}$`)

// TrackingGenerator mints customer-facing tracking identifiers.
// Implementations need not guarantee uniqueness; the service checks both tables.
type TrackingGenerator interface {
	Generate() string
}

// RandomTrackingGenerator draws uniformly from TR-1000..TR-9999.
type RandomTrackingGenerator struct{}

// Generate returns a fresh tracking id.
func (RandomTrackingGenerator) Generate() string {
	return fmt.Sprintf("%s%d", trackingPrefix, trackingMin+rand.IntN(trackingMax-trackingMin+1))
}

// IsTrackingID reports whether s is a well-formed tracking id.
func IsTrackingID(s string) bool {
	return trackingIDPattern.MatchString(s)
}

func normalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
