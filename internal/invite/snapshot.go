package invite

// Record is one invite link's cumulative use count as last observed
type Record struct {
	Code string
	Uses int
}

// Snapshot is a point-in-time copy of every invite's use counter.
// Listing order is kept because attribution picks the first increase in it.
type Snapshot struct {
	records []Record
	index   map[string]int
}

// NewSnapshot builds a snapshot from a listing. A code listed twice keeps
// its first position and its last counter.
func NewSnapshot(records []Record) Snapshot {
	s := Snapshot{
		records: make([]Record, 0, len(records)),
		index:   make(map[string]int, len(records)),
	}

	for _, r := range records {
		if r.Code == "" {
			continue
		}
		if r.Uses < 0 {
			r.Uses = 0
		}
		if i, ok := s.index[r.Code]; ok {
			s.records[i].Uses = r.Uses
			continue
		}
		s.index[r.Code] = len(s.records)
		s.records = append(s.records, r)
	}

	return s
}

// Len returns the number of invites in the snapshot
func (s Snapshot) Len() int {
	return len(s.records)
}

// Uses returns the counter for code and whether the code is present
func (s Snapshot) Uses(code string) (int, bool) {
	i, ok := s.index[code]
	if !ok {
		return 0, false
	}
	return s.records[i].Uses, true
}

// Records returns a copy of the snapshot in listing order
func (s Snapshot) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}
