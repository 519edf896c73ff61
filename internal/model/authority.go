package model

// AuthorityTier represents the classification of a citation's authority
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // Inferred or synthetic, nothing to classify
	TierPrimary   AuthorityTier = 1 // Museum records, archives, official registers
	TierSecondary AuthorityTier = 2 // Auction houses, reference works
	TierTertiary  AuthorityTier = 3 // Everything else
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}
