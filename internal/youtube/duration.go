package youtube

import (
	"strconv"
	"strings"
)

// ParseDuration parses an ISO-8601 duration string (as returned in a video's
// contentDetails.duration, e.g. "PT1H23M45S") into whole seconds. Fractional
// seconds are truncated. Calendar components (years, months) are rejected:
// they have no fixed length and the API never emits them for video durations.
func ParseDuration(s string) (int, error) {
	orig := s
	if !strings.HasPrefix(s, "P") {
		return 0, &PayloadError{Field: "duration", Reason: "not an ISO-8601 duration: " + orig}
	}
	s = s[1:]

	var total float64
	inTime := false
	var num strings.Builder

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			num.WriteByte(c)
		case c == '.' || c == ',':
			num.WriteByte('.')
		case c == 'T':
			if num.Len() > 0 {
				return 0, &PayloadError{Field: "duration", Reason: "dangling number in " + orig}
			}
			inTime = true
		default:
			if num.Len() == 0 {
				return 0, &PayloadError{Field: "duration", Reason: "missing number before designator in " + orig}
			}
			v, err := strconv.ParseFloat(num.String(), 64)
			if err != nil {
				return 0, &PayloadError{Field: "duration", Reason: "bad number in " + orig}
			}
			num.Reset()

			var unit float64
			switch {
			case c == 'W' && !inTime:
				unit = 7 * 24 * 3600
			case c == 'D' && !inTime:
				unit = 24 * 3600
			case c == 'H' && inTime:
				unit = 3600
			case c == 'M' && inTime:
				unit = 60
			case c == 'S' && inTime:
				unit = 1
			case (c == 'Y' || c == 'M') && !inTime:
				return 0, &PayloadError{Field: "duration", Reason: "calendar component in " + orig}
			default:
				return 0, &PayloadError{Field: "duration", Reason: "bad designator in " + orig}
			}
			total += v * unit
		}
	}

	if num.Len() > 0 {
		return 0, &PayloadError{Field: "duration", Reason: "trailing number in " + orig}
	}

	return int(total), nil
}
