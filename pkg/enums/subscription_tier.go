package enums

import "fmt"

// SubscriptionTier is the content-gating level attached to a profile and to
// every course. The set is closed and totally ordered: free < basic < premium.
type SubscriptionTier string

const (
	SubscriptionTierFree    SubscriptionTier = "free"
	SubscriptionTierBasic   SubscriptionTier = "basic"
	SubscriptionTierPremium SubscriptionTier = "premium"
)

var validSubscriptionTiers = []SubscriptionTier{
	SubscriptionTierFree,
	SubscriptionTierBasic,
	SubscriptionTierPremium,
}

// tierRanks is the single source of truth for the ordering. Adding a tier
// means adding it here and to validSubscriptionTiers in the same change.
var tierRanks = map[SubscriptionTier]int{
	SubscriptionTierFree:    0,
	SubscriptionTierBasic:   1,
	SubscriptionTierPremium: 2,
}

// Rank returns the tier's position in the total order. Unknown values rank
// below free so a corrupted profile never unlocks paid content.
func (t SubscriptionTier) Rank() int {
	if rank, ok := tierRanks[t]; ok {
		return rank
	}
	return -1
}

// String implements fmt.Stringer.
func (t SubscriptionTier) String() string {
	return string(t)
}

// IsValid reports whether the value is a known tier.
func (t SubscriptionTier) IsValid() bool {
	_, ok := tierRanks[t]
	return ok
}

// ParseSubscriptionTier converts raw input into a SubscriptionTier.
func ParseSubscriptionTier(value string) (SubscriptionTier, error) {
	for _, candidate := range validSubscriptionTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription tier %q", value)
}
