package youtube

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"seconds only", "PT45S", 45},
		{"minutes and seconds", "PT3M20S", 200},
		{"hours minutes seconds", "PT1H23M45S", 5025},
		{"hours only", "PT2H", 7200},
		{"zero time", "PT0S", 0},
		{"zero days", "P0D", 0},
		{"days and time", "P1DT2H", 93600},
		{"weeks", "P2W", 1209600},
		{"fractional seconds truncated", "PT1M30.9S", 90},
		{"comma decimal separator", "PT0,5H", 1800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseDuration(tt.input)
			if err != nil {
				t.Fatalf("ParseDuration(%q) error = %v", tt.input, err)
			}
			if result != tt.expected {
				t.Errorf("ParseDuration(%q) = %d, want %d", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseDuration_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty string", ""},
		{"no prefix", "T1H"},
		{"garbage", "one hour"},
		{"calendar years", "P1Y"},
		{"calendar months", "P2M"},
		{"dangling number", "PT15"},
		{"number before T", "P5T1H"},
		{"missing number", "PTS"},
		{"time designator outside time", "P1H"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseDuration(tt.input); err == nil {
				t.Errorf("ParseDuration(%q) expected error, got nil", tt.input)
			}
		})
	}
}

// Formatting h/m/s into an ISO-8601 duration and parsing it back always
// yields the same whole-second total, on every run.
func TestParseDuration_RoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("round-trips whole seconds", prop.ForAll(
		func(h, m, s int) bool {
			encoded := fmt.Sprintf("PT%dH%dM%dS", h, m, s)
			want := h*3600 + m*60 + s

			first, err := ParseDuration(encoded)
			if err != nil {
				return false
			}
			second, err := ParseDuration(encoded)
			if err != nil {
				return false
			}
			return first == want && second == want
		},
		gen.IntRange(0, 200),
		gen.IntRange(0, 300),
		gen.IntRange(0, 300),
	))

	properties.TestingRun(t)
}
