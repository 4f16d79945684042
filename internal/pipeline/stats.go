package pipeline

// RunStats tracks aggregate counters and byte totals across a scan.
type RunStats struct {
	Total      int
	Current    int
	Pending    int
	Conforming int
	Skipped    int // no plugin could decide (probe failure)
	Failed     int

	TotalInputBytes int64
	PendingBytes    int64
}

// Add counts one tested file.
func (s *RunStats) Add(rep FileReport) {
	s.TotalInputBytes += rep.Size
	switch rep.Outcome() {
	case OutcomePending:
		s.Pending++
		s.PendingBytes += rep.Size
	case OutcomeConforms:
		s.Conforming++
	case OutcomeSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

// PendingPercent returns the share of scanned bytes that would be queued.
func (s *RunStats) PendingPercent() int {
	if s.TotalInputBytes <= 0 {
		return 0
	}
	return int(s.PendingBytes * 100 / s.TotalInputBytes)
}
