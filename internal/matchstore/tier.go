package matchstore

import "fmt"

// Tier buckets total scores for listing and presentation.
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierStrong    Tier = "strong"
	TierGood      Tier = "good"
	TierFair      Tier = "fair"
	TierNone      Tier = ""
)

var tierFloors = []struct {
	tier  Tier
	floor int
}{
	{TierExcellent, 80},
	{TierStrong, 65},
	{TierGood, 50},
	{TierFair, 30},
}

// TierFor returns the tier for a total score, or TierNone below the lowest floor.
func TierFor(total int) Tier {
	for _, t := range tierFloors {
		if total >= t.floor {
			return t.tier
		}
	}
	return TierNone
}

// Bounds returns the inclusive score range of the tier.
func (t Tier) Bounds() (lo, hi int) {
	hi = 100
	for _, tf := range tierFloors {
		if tf.tier == t {
			return tf.floor, hi
		}
		hi = tf.floor - 1
	}
	return 0, 100
}

func ParseTier(s string) (Tier, error) {
	if s == "" {
		return TierNone, nil
	}
	for _, t := range tierFloors {
		if string(t.tier) == s {
			return t.tier, nil
		}
	}
	return TierNone, fmt.Errorf("unknown tier %q", s)
}
