package delivery

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const namePrefix = "briefing_"

// Name is the collision-resistant base name shared by the audio file and
// its script, e.g. briefing_20261016_070000_1a2b3c4d
type Name string

// NewName derives a name from the delivery time and a random suffix
func NewName(now time.Time) Name {
	return NameWithSuffix(now, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// NameWithSuffix builds a name with an explicit suffix
func NameWithSuffix(now time.Time, suffix string) Name {
	return Name(namePrefix + now.UTC().Format("20060102_150405") + "_" + suffix)
}

// Audio returns the audio file name
func (n Name) Audio() string { return string(n) + ".wav" }

// Script returns the script file name
func (n Name) Script() string { return string(n) + ".txt" }
