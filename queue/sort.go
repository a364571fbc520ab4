package queue

import "sort"

// statusBucket maps effective_status to its place in the total order.
// Unknown statuses sort first (-1) to surface bugs rather than hide them
// at the tail.
func statusBucket(status string) int {
	switch status {
	case StatusSuccess:
		return 0
	case StatusPending:
		return 1
	case StatusApproved:
		return 2
	case StatusNone:
		return 3
	case StatusError:
		return 4
	case StatusFailure:
		return 5
	default:
		return -1
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SortKey returns the tuple that totally orders pr.Equal-distinguishable
// PRs within one repository. Smaller sorts earlier, i.e. builds sooner.
func (p *PR) SortKey() [6]int {
	return [6]int{
		statusBucket(p.EffectiveStatus()),
		boolToInt(p.Mergeable == MergeableNo),
		boolToInt(p.ApprovedBy == ""),
		boolToInt(p.Rollup),
		-p.Priority,
		p.Number,
	}
}

func lessKey(a, b [6]int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// SortPRs orders prs in place per the queue total order (§4.4). It is a
// stable sort so equal-keyed PRs keep their relative order.
func SortPRs(prs []*PR) {
	sort.SliceStable(prs, func(i, j int) bool {
		return lessKey(prs[i].SortKey(), prs[j].SortKey())
	})
}
