package traffic

import (
	"fmt"
	"lintang/deliverynav/pkg/datastructure"
	"lintang/deliverynav/pkg/geo"
)

// ChangeBandMinutes is how far the average delay has to move before it counts as a change.
const ChangeBandMinutes = 5.0

func DetectTrafficChanges(prev, cur datastructure.TrafficSnapshot) datastructure.TrafficChange {
	diff := cur.AverageDelayMinutes - prev.AverageDelayMinutes
	switch {
	case diff > ChangeBandMinutes:
		return datastructure.TrafficWorsened
	case diff < -ChangeBandMinutes:
		return datastructure.TrafficImproved
	default:
		return datastructure.TrafficStable
	}
}

// AlertMessage is the banner text for a snapshot. It returns false when the snapshot has no
// incidents and nothing should be shown.
func AlertMessage(s datastructure.TrafficSnapshot) (string, bool) {
	if len(s.Incidents) == 0 {
		return "", false
	}
	high := 0
	var worst datastructure.Incident
	for _, in := range s.Incidents {
		if in.Severity == datastructure.SeverityHigh {
			if high == 0 {
				worst = in
			}
			high++
		}
	}

	delay := geo.FormatDuration(s.AverageDelayMinutes)
	if high > 0 {
		msg := fmt.Sprintf("Severe traffic ahead: %s", worst.Description)
		if len(s.Incidents) > 1 {
			msg += fmt.Sprintf(" (%d incidents on your route)", len(s.Incidents))
		}
		return msg + fmt.Sprintf(". Average delay %s, consider an alternative route", delay), true
	}
	if len(s.Incidents) == 1 {
		return fmt.Sprintf("Traffic ahead: %s. Average delay %s", s.Incidents[0].Description, delay), true
	}
	return fmt.Sprintf("Traffic ahead: %d congested stretches on your route. Average delay %s", len(s.Incidents), delay), true
}
