package ledger

// Currency constants. Amounts are int64 micro-credits.
const (
	// MicroPerCredit is the number of micro-credits in one credit.
	MicroPerCredit int64 = 1_000_000
	// ReputationUnit is the earnings amount worth exactly one reputation
	// point: 0.01 credit.
	ReputationUnit int64 = 10_000
	// PointsPerIssue is the reputation awarded per completed issue.
	PointsPerIssue int64 = 10
	// FeeDenominator converts basis points to a fraction.
	FeeDenominator int64 = 10_000
	// MaxFeeBps caps the platform fee at 10%.
	MaxFeeBps int64 = 1_000
)

// reputationScore is the single formula for a profile's score. Integer
// division truncates the earnings term; the truncation is observable and
// must not be rounded.
func reputationScore(completedIssues, totalEarned int64) int64 {
	return completedIssues*PointsPerIssue + totalEarned/ReputationUnit
}

// pageSlice returns the [offset, offset+limit) window of items. Offsets past
// the end yield an empty slice; limit <= 0 means no limit. The result is a
// copy, so callers cannot alias store internals.
func pageSlice[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func containsString(set []string, want string) bool {
	for _, s := range set {
		if s == want {
			return true
		}
	}
	return false
}

// removeID deletes the first occurrence of id, preserving order.
func removeID(ids []uint64, id uint64) []uint64 {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
