package dialogue

import "time"

func finalizeResult(res *Result, started time.Time, status string) {
	res.Status = status
	res.EndedAt = time.Now().UTC()
	res.Metrics.LatencyMS = time.Since(started).Milliseconds()
}
