package routing

import "lintang/deliverynav/pkg/datastructure"

// ClassifyTraffic buckets the delay of durationInTraffic over the free-flow duration:
// below 10% low, below 30% medium, below 50% high, otherwise blocked.
func ClassifyTraffic(durationSec, durationInTrafficSec float64) datastructure.TrafficLevel {
	if durationSec <= 0 {
		return datastructure.TrafficLow
	}
	delay := (durationInTrafficSec - durationSec) * 100
	switch {
	case delay < 10*durationSec:
		return datastructure.TrafficLow
	case delay < 30*durationSec:
		return datastructure.TrafficMedium
	case delay < 50*durationSec:
		return datastructure.TrafficHigh
	default:
		return datastructure.TrafficBlocked
	}
}
