package guidance

import (
	"fmt"
	"lintang/deliverynav/pkg/datastructure"
	"lintang/deliverynav/pkg/geo"
	"regexp"
	"strings"
)

// ParseManeuver maps a provider maneuver string to one of the supported maneuvers.
// Anything unrecognised becomes continue.
func ParseManeuver(raw string) datastructure.Maneuver {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "turn-left", "turn-slight-left", "turn-sharp-left":
		return datastructure.ManeuverTurnLeft
	case "turn-right", "turn-slight-right", "turn-sharp-right":
		return datastructure.ManeuverTurnRight
	case "roundabout", "roundabout-left", "roundabout-right", "rotary":
		return datastructure.ManeuverRoundabout
	case "arrive":
		return datastructure.ManeuverArrive
	default:
		return datastructure.ManeuverContinue
	}
}

// Describe builds the banner text for an instruction when the provider did not supply one.
func Describe(ins datastructure.Instruction) string {
	street := strings.TrimSpace(ins.Street)

	switch ins.Maneuver {
	case datastructure.ManeuverTurnLeft:
		return withStreet("Turn left", "onto", street)
	case datastructure.ManeuverTurnRight:
		return withStreet("Turn right", "onto", street)
	case datastructure.ManeuverRoundabout:
		return withStreet("At the roundabout, take the exit", "onto", street)
	case datastructure.ManeuverArrive:
		return "You have arrived at your destination"
	default:
		return withStreet("Continue", "onto", street)
	}
}

func withStreet(dir, prep, street string) string {
	if street == "" {
		return dir
	}
	return fmt.Sprintf("%s %s %s", dir, prep, street)
}

// DescribeStart is the first banner of a route, e.g. "Head North East toward Jalan Slamet Riyadi".
func DescribeStart(heading float64, street string) string {
	dir := CompassDirection(heading)
	if strings.TrimSpace(street) == "" {
		return fmt.Sprintf("Head %s", dir)
	}
	return fmt.Sprintf("Head %s toward %s", dir, street)
}

// Announce prefixes the instruction text with the distance left to its maneuver point.
func Announce(ins datastructure.Instruction, distanceKm float64) string {
	text := ins.Description
	if text == "" {
		text = Describe(ins)
	}
	if distanceKm <= 0 {
		return text
	}
	if ins.Maneuver == datastructure.ManeuverArrive {
		return fmt.Sprintf("Your destination is in %s", geo.FormatDistance(distanceKm))
	}
	return fmt.Sprintf("In %s, %s", geo.FormatDistance(distanceKm), lowerFirst(text))
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// StripHTML turns provider html instructions ("Turn <b>left</b> onto <b>Jl. Sudirman</b>") into plain text.
func StripHTML(s string) string {
	s = htmlTag.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func CompassDirection(azimuth float64) string {
	if azimuth < 22.5 {
		return "North"
	} else if azimuth < 67.5 {
		return "North East"
	} else if azimuth < 112.5 {
		return "East"
	} else if azimuth < 157.5 {
		return "South East"
	} else if azimuth < 202.5 {
		return "South"
	} else if azimuth < 247.5 {
		return "South West"
	} else if azimuth < 292.5 {
		return "West"
	} else if azimuth < 337.5 {
		return "North West"
	} else {
		return "North"
	}
}
