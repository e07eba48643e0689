package scoring

// Score distribution bands, lowest first
const (
	BucketPoor      = "poor_0_19"
	BucketBelowAvg  = "below_avg_20_39"
	BucketAverage   = "average_40_59"
	BucketGood      = "good_60_79"
	BucketExcellent = "excellent_80_100"
)

// Buckets lists every band in ascending order
var Buckets = []string{BucketPoor, BucketBelowAvg, BucketAverage, BucketGood, BucketExcellent}

// Bucket classifies a composite score. Bands are closed below: 79.9 is good,
// 80.0 is excellent.
func Bucket(score float64) string {
	switch {
	case score >= 80:
		return BucketExcellent
	case score >= 60:
		return BucketGood
	case score >= 40:
		return BucketAverage
	case score >= 20:
		return BucketBelowAvg
	default:
		return BucketPoor
	}
}

// Distribution counts scores per band; every band is present
func Distribution(scores []float64) map[string]int {
	dist := make(map[string]int, len(Buckets))
	for _, b := range Buckets {
		dist[b] = 0
	}
	for _, s := range scores {
		dist[Bucket(s)]++
	}
	return dist
}
