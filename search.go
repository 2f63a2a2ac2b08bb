package dns

import "strings"

// SearchState is the caller-opaque 64-bit token of spec.md §6,
// threaded by the caller across repeated Search calls. Its zero value
// is the initial state. Internally it packs the three-phase cursor
// spec.md §4.4 describes (phase, search-list index, cached ndots
// count) so the type stays a plain machine word end to end, per
// spec.md §9's instruction to keep restartable iterators state-passing
// rather than hidden behind a closure.
type SearchState uint64

const (
	searchPhaseInitial = iota
	searchPhaseSuffix
	searchPhaseFinal
	searchPhaseDone
)

func packSearchState(phase, srchi, ndots int) SearchState {
	return SearchState(uint64(ndots&0xFF) | uint64(srchi&0xFFFF)<<8 | uint64(phase&0x3)<<24)
}

func (s SearchState) unpack() (phase, srchi, ndots int) {
	ndots = int(s & 0xFF)
	srchi = int((s >> 8) & 0xFFFF)
	phase = int((s >> 24) & 0x3)
	return
}

func countDots(name string) int {
	n := 0
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			n++
		}
	}
	return n
}

// Search is the search-list generator of spec.md §4.4: a three-phase
// state machine that synthesizes candidate FQDNs from qname and rc's
// configured search list according to the ndots policy. It returns the
// next candidate, or "" once all phases are exhausted — the caller
// must keep calling with the state Search just wrote back until it
// gets "" to enumerate all phases.
func Search(qname string, rc *ResolvConf, state *SearchState) (string, error) {
	phase, srchi, ndots := state.unpack()
	base := strings.TrimSuffix(qname, ".")

	for {
		switch phase {
		case searchPhaseInitial:
			ndots = countDots(qname)
			if ndots >= int(rc.Options.Ndots) {
				cand, err := AnchorString(qname)
				if err != nil {
					return "", err
				}
				*state = packSearchState(searchPhaseSuffix, 0, ndots)
				return cand, nil
			}
			phase, srchi = searchPhaseSuffix, 0

		case searchPhaseSuffix:
			if srchi < len(rc.Search) {
				cand, err := AnchorString(base + "." + rc.Search[srchi])
				if err != nil {
					return "", err
				}
				srchi++
				*state = packSearchState(searchPhaseSuffix, srchi, ndots)
				return cand, nil
			}
			phase = searchPhaseFinal

		case searchPhaseFinal:
			*state = packSearchState(searchPhaseDone, 0, ndots)
			if ndots < int(rc.Options.Ndots) {
				return AnchorString(qname)
			}
			return "", nil

		default: // searchPhaseDone
			return "", nil
		}
	}
}
