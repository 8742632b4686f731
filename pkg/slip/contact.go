package slip

// ContactHistoryCap is the fixed number of raw contact samples kept per foot.
const ContactHistoryCap = 16

// ContactHistory is a bounded ring of raw toe samples plus the current
// debounced contact value. It is a plain value: copying it copies the buffer,
// so estimation never aliases the caller's history.
type ContactHistory struct {
	samples [ContactHistoryCap]bool
	head    int // Index of the next write
	count   int // Valid samples, never above ContactHistoryCap

	// Contact is the debounced contact value.
	Contact bool
}

// Len returns the number of samples held.
func (h ContactHistory) Len() int {
	return h.count
}

// At returns the i-th most recent sample (0 = newest).
func (h ContactHistory) At(i int) bool {
	if i < 0 || i >= h.count {
		return false
	}
	idx := (h.head - 1 - i + ContactHistoryCap) % ContactHistoryCap
	return h.samples[idx]
}

// push appends a sample, discarding the oldest when full.
func (h *ContactHistory) push(sample bool) {
	h.samples[h.head] = sample
	h.head = (h.head + 1) % ContactHistoryCap
	if h.count < ContactHistoryCap {
		h.count++
	}
}

// RawContact combines the binary toe switch with the analog toe reading.
func RawContact(leg LegState, p Params) bool {
	if leg.ToeSwitch {
		return true
	}
	return p.ToeForceThreshold > 0 && leg.ToeForce > p.ToeForceThreshold
}

// Estimate appends raw to the history and returns the debounced contact with
// the updated history. The input history is not modified.
//
// With FilterDebounce the debounced value changes only after ContactDebounce
// consecutive samples disagree with it; a run length of 1 passes the raw
// signal straight through. With FilterMajority it follows the majority of the
// last ContactDebounce samples and holds its value on a tie.
func Estimate(raw bool, h ContactHistory, p Params) (bool, ContactHistory) {
	h.push(raw)

	n := p.ContactDebounce
	if n < 1 {
		n = 1
	}
	if n > ContactHistoryCap {
		n = ContactHistoryCap
	}

	switch p.ContactFilter {
	case FilterMajority:
		window := min(n, h.count)
		on := 0
		for i := 0; i < window; i++ {
			if h.At(i) {
				on++
			}
		}
		switch {
		case 2*on > window:
			h.Contact = true
		case 2*on < window:
			h.Contact = false
		}
	default:
		if raw != h.Contact && h.count >= n && runOf(h, raw, n) {
			h.Contact = raw
		}
	}

	return h.Contact, h
}

// runOf reports whether the newest n samples all equal v.
func runOf(h ContactHistory, v bool, n int) bool {
	for i := 0; i < n; i++ {
		if h.At(i) != v {
			return false
		}
	}
	return true
}
