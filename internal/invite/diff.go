package invite

import "errors"

// ErrIndeterminate is returned when no known invite's counter increased
var ErrIndeterminate = errors.New("no invite use counter increased")

// DiffResult describes which invites were consumed between two snapshots
type DiffResult struct {
	// Winner is the invite credited with the join
	Winner string
	// Candidates lists every code whose counter increased, in listing order
	Candidates []string
}

// Diff compares two snapshots and picks the invite whose counter increased.
//
// Only codes present in both snapshots are candidates: an invite that first
// appears in next is new and may already show a use from the race between
// its creation and the join. When several counters increased, the first one
// in next's listing order wins.
func Diff(prev, next Snapshot) (DiffResult, error) {
	var result DiffResult

	for _, r := range next.records {
		before, ok := prev.Uses(r.Code)
		if !ok {
			continue
		}
		if r.Uses > before {
			result.Candidates = append(result.Candidates, r.Code)
		}
	}

	if len(result.Candidates) == 0 {
		return result, ErrIndeterminate
	}

	result.Winner = result.Candidates[0]
	return result, nil
}
