package wait

import "time"

// ElasticTime stretches every timeout by a constant factor so a suite tuned on
// a fast workstation survives a slow CI box.
type ElasticTime struct {
	Factor float64
}

// Scale returns d multiplied by the factor. A zero or negative factor is
// treated as 1.
func (e ElasticTime) Scale(d time.Duration) time.Duration {
	if e.Factor <= 0 {
		return d
	}
	return time.Duration(float64(d) * e.Factor)
}

// Millis is Scale for a duration given in milliseconds.
func (e ElasticTime) Millis(ms int64) time.Duration {
	return e.Scale(time.Duration(ms) * time.Millisecond)
}
