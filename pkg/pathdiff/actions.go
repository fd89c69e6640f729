package pathdiff

// SetAction assigns the same action to every record.
func SetAction(records []*Record, action Action) {
	for _, rec := range records {
		rec.Action = action
	}
}

// ApplyPolicy assigns actions according to p and returns the number of
// records that ended up with an action other than None.
func ApplyPolicy(records []*Record, p Policy) int {
	switch p {
	case PolicyLeft:
		SetAction(records, UseLeft)
	case PolicyRight:
		SetAction(records, UseRight)
	case PolicyNewer:
		for _, rec := range records {
			switch rec.diffType {
			case LeftNewer:
				rec.Action = UseLeft
			case RightNewer:
				rec.Action = UseRight
			default:
				rec.Action = None
			}
		}
	default:
		SetAction(records, None)
	}
	return len(Pending(records))
}

// Pending returns the records that have an action assigned.
func Pending(records []*Record) []*Record {
	var pending []*Record
	for _, rec := range records {
		if rec.Action != None {
			pending = append(pending, rec)
		}
	}
	return pending
}

// Summary counts records per type.
type Summary struct {
	Total   int
	Moved   int
	ByType  map[DiffType]int
	Pending int
}

// Summarize builds a Summary for records.
func Summarize(records []*Record) Summary {
	s := Summary{Total: len(records), ByType: make(map[DiffType]int)}
	for _, rec := range records {
		s.ByType[rec.diffType]++
		if rec.IsMoved {
			s.Moved++
		}
		if rec.Action != None {
			s.Pending++
		}
	}
	return s
}
