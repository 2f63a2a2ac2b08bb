package dns

import (
	"strings"

	"go.uber.org/zap"
)

// TypeANY and ClassANY are wildcard matches for Filter, not registered
// RR types themselves — they only ever appear on the query/filter side.
const (
	TypeANY  uint16 = 255
	ClassANY uint16 = 255
)

// Filter narrows Grep's output. A zero Filter matches everything.
type Filter struct {
	Sections uint8  // bitmask of Section.bit(); 0 means all sections
	Type     uint16 // 0 or TypeANY matches any type
	Class    uint16 // 0 or ClassANY matches any class
	Name     string // "" matches any name; otherwise case-insensitive full match
}

func (f Filter) matches(p *Packet, rec *Record) bool {
	if f.Sections != 0 && f.Sections&rec.Section.bit() == 0 {
		return false
	}
	if f.Type != 0 && f.Type != TypeANY && f.Type != rec.Type {
		return false
	}
	if f.Class != 0 && f.Class != ClassANY && f.Class != rec.Class {
		return false
	}
	if f.Name != "" {
		name, err := ExpandString(p, rec.NameOff)
		if err != nil || !strings.EqualFold(name, f.Name) {
			return false
		}
	}
	return true
}

// GrepState is the restartable cursor returned by Grep. Its zero value
// starts a scan from the beginning of the packet (spec.md §4.2, §9 —
// state-passing, not a closure, so a caller can suspend on I/O and
// resume without allocation).
type GrepState struct {
	section Section
	index   int
	offset  int
	done    bool
}

// Grep scans p for records matching filter, starting from state,
// writing up to len(out) matches into out and returning how many were
// written along with the state to resume from. A malformed record has
// unknown length, so Grep cannot skip past it to find the next
// section boundary: it stops the scan there for good (state.done is
// set) and reports the offset of the failing record for diagnostics,
// rather than claim it can make further progress (spec.md §7).
func (p *Packet) Grep(state GrepState, filter Filter, out []Record) (int, GrepState, error) {
	if state.done {
		return 0, state, nil
	}

	sec := state.section
	idx := state.index
	off := state.offset
	if off == 0 {
		off = headerLen
	}

	n := 0
	for sec <= SectionAR {
		count := int(p.sectionCount(sec))
		for idx < count {
			rec, next, err := p.ParseRR(off, sec)
			if err != nil {
				state.section, state.index, state.offset, state.done = sec, idx, off, true
				p.log.Warn("grep: malformed record, stopping scan",
					zap.Int("section", int(sec)), zap.Int("index", idx), zap.Error(err))
				return n, state, err
			}
			off = next
			idx++
			if filter.matches(p, rec) {
				if n < len(out) {
					out[n] = *rec
				}
				n++
				if n >= len(out) {
					state.section, state.index, state.offset = sec, idx, off
					return n, state, nil
				}
			}
		}
		sec++
		idx = 0
	}
	state.section, state.index, state.offset, state.done = sec, idx, off, true
	return n, state, nil
}
