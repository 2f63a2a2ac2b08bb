package dns

import "bytes"

// Limits from spec.md §3 and the wire format this package implements
// (RFC 1035 §3.1, §4.1.4).
const (
	MaxLabelLen = 63  // a label is 1..63 bytes
	MaxNameLen  = 255 // wire-form name length, terminator included
	MaxPtrs     = 127 // compression-pointer hop bound (spec.md §3)

	pointerBits      = 0xC000
	maxPointerOffset = 0x3FFF // 14 bits of pointer target
	maxDictEntries   = 16    // spec.md §3: "up to ~16 offsets"
)

// splitLabels validates and splits a presentation name into its wire
// labels. A bare "." or empty input denotes the root (zero labels).
// Unlike the teacher's PackDomainName, no backslash-escaping is
// recognized: spec.md §3 defines a label as a plain 1..63 byte
// sequence, nothing more.
func splitLabels(name []byte) ([][]byte, error) {
	if len(name) == 0 || (len(name) == 1 && name[0] == '.') {
		return nil, nil
	}
	n := name
	if n[len(n)-1] == '.' {
		n = n[:len(n)-1]
	}
	if len(n) == 0 {
		return nil, ErrTooLong
	}
	parts := bytes.Split(n, []byte("."))
	wire := 1 // terminating zero byte
	labels := make([][]byte, 0, len(parts))
	for _, p := range parts {
		if len(p) == 0 || len(p) > MaxLabelLen {
			return nil, ErrTooLong
		}
		if bytes.IndexByte(p, 0) >= 0 {
			return nil, ErrMalformed
		}
		wire += 1 + len(p)
		labels = append(labels, p)
	}
	if wire > MaxNameLen {
		return nil, ErrTooLong
	}
	return labels, nil
}

func lowerASCII(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func labelEqualFold(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if lowerASCII(a[i]) != lowerASCII(b[i]) {
			return false
		}
	}
	return true
}

// Compress encodes name into dst as wire-format labels, compressing
// against pkt's dictionary per spec.md §4.1. pkt may be nil, in which
// case no compression is attempted and no dictionary entry is
// registered. It returns the number of bytes written to dst.
//
// Every call site passes dst as pkt.buf[pkt.end:], so a label at dst
// offset p ends up at absolute offset pkt.end+p once the caller copies
// or has already written dst in place; Compress registers that
// absolute offset for each label boundary of the name it writes (not
// just the name's start), so a later name sharing any suffix of this
// one — not only an exact duplicate of the whole name — can compress
// against it (spec.md §4.1 step 2: "walk suffixes").
func Compress(name []byte, dst []byte, pkt *Packet) (int, error) {
	labels, err := splitLabels(name)
	if err != nil {
		return 0, err
	}

	boundaries := make([]int, 0, len(labels)+1)
	pos := 0
	for _, lab := range labels {
		if pos >= len(dst) {
			return 0, ErrTooLong
		}
		boundaries = append(boundaries, pos)
		dst[pos] = byte(len(lab))
		pos++
		if pos+len(lab) > len(dst) {
			return 0, ErrTooLong
		}
		copy(dst[pos:], lab)
		pos += len(lab)
	}
	if pos >= len(dst) {
		return 0, ErrTooLong
	}
	boundaries = append(boundaries, pos)
	dst[pos] = 0
	pos++

	if pkt == nil {
		return pos, nil
	}

	base := pkt.end
	for bi, p := range boundaries {
		if dst[p] == 0 {
			// The bare root is never worth compressing: it's already
			// a single byte, half the size of a pointer.
			continue
		}
		for _, q := range pkt.dict {
			if q >= pkt.end || q > maxPointerOffset {
				continue
			}
			match, err := suffixMatches(dst[p:pos], pkt, q)
			if err != nil {
				continue // a stale/odd dictionary entry; try the next one
			}
			if match {
				ptr := uint16(pointerBits | q)
				dst[p], dst[p+1] = byte(ptr>>8), byte(ptr)
				// Everything before the matched suffix is new on the
				// wire and wasn't in the dictionary yet; register each
				// of its label boundaries too.
				for _, bp := range boundaries[:bi] {
					pkt.addDictEntry(base + bp)
				}
				return p + 2, nil
			}
		}
	}
	// No suffix matched: the whole name is new. Register every label
	// boundary except the trailing root.
	for _, bp := range boundaries[:len(boundaries)-1] {
		pkt.addDictEntry(base + bp)
	}
	return pos, nil
}

// labelAt follows any compression-pointer chain starting at off until
// it lands on a literal label (including the zero/root label),
// returning that label's offset. hops accumulates across repeated
// calls so a caller can enforce MaxPtrs over a whole name.
func labelAt(pkt *Packet, off int, hops *int) (int, error) {
	for {
		if off < 0 || off >= pkt.end {
			return 0, ErrMalformed
		}
		c := pkt.buf[off]
		switch c & 0xC0 {
		case 0x00:
			return off, nil
		case 0xC0:
			if off+1 >= pkt.end {
				return 0, ErrMalformed
			}
			*hops++
			if *hops > MaxPtrs {
				return 0, ErrLoop
			}
			next := (int(c&0x3F) << 8) | int(pkt.buf[off+1])
			if next > off {
				return 0, ErrMalformed
			}
			off = next
		default:
			return 0, ErrMalformed
		}
	}
}

// suffixMatches compares the freshly-written, uncompressed label
// sequence newSuffix (ending in a zero label) against the name already
// written at pkt offset q, label by label, case-insensitively,
// following q's own compression pointers if it has any.
func suffixMatches(newSuffix []byte, pkt *Packet, q int) (bool, error) {
	ni := 0
	hops := 0
	ti := q
	for {
		if ni >= len(newSuffix) {
			return false, ErrMalformed
		}
		nl := int(newSuffix[ni])

		lbl, err := labelAt(pkt, ti, &hops)
		if err != nil {
			return false, err
		}
		tl := int(pkt.buf[lbl])

		if nl == 0 || tl == 0 {
			return nl == tl, nil
		}
		if nl != tl {
			return false, nil
		}
		if ni+1+nl > len(newSuffix) || lbl+1+tl > pkt.end {
			return false, ErrMalformed
		}
		if !labelEqualFold(newSuffix[ni+1:ni+1+nl], pkt.buf[lbl+1:lbl+1+tl]) {
			return false, nil
		}
		ni += 1 + nl
		ti = lbl + 1 + tl
	}
}

// Expand writes the presentation form of the name at pkt offset off
// into dst, returning the number of bytes the name occupies. If dst is
// too small the copy is truncated but the full logical length is still
// returned, so a caller can size a retry buffer from it.
func Expand(pkt *Packet, off int, dst []byte) (int, error) {
	hops := 0
	cur := off
	wrote := 0
	sawLabel := false
	for {
		lbl, err := labelAt(pkt, cur, &hops)
		if err != nil {
			return 0, err
		}
		l := int(pkt.buf[lbl])
		if l == 0 {
			if !sawLabel {
				if wrote < len(dst) {
					dst[wrote] = '.'
				}
				wrote++
			}
			break
		}
		sawLabel = true
		start := lbl + 1
		if start+l > pkt.end {
			return 0, ErrMalformed
		}
		for i := 0; i < l; i++ {
			if wrote < len(dst) {
				dst[wrote] = pkt.buf[start+i]
			}
			wrote++
		}
		if wrote < len(dst) {
			dst[wrote] = '.'
		}
		wrote++
		cur = start + l
	}
	return wrote, nil
}

// ExpandString is the string-returning convenience form of Expand used
// by printing and by grep's name filter.
func ExpandString(pkt *Packet, off int) (string, error) {
	var buf [MaxNameLen]byte
	n, err := Expand(pkt, off, buf[:])
	if err != nil {
		return "", err
	}
	if n > len(buf) {
		// A well-formed packet never reaches this: wire length caps
		// presentation length at MaxNameLen for unescaped labels.
		return "", ErrTooLong
	}
	return string(buf[:n]), nil
}

// Skip performs a non-copying advance past a single on-wire name: it
// follows literal labels until a zero label (returning the offset
// after it) or a single compression pointer (returning the offset
// after the two pointer bytes, without following it).
func Skip(pkt *Packet, off int) (int, error) {
	cur := off
	for {
		if cur < 0 || cur >= pkt.end {
			return 0, ErrMalformed
		}
		c := pkt.buf[cur]
		switch c & 0xC0 {
		case 0x00:
			if c == 0 {
				return cur + 1, nil
			}
			next := cur + 1 + int(c)
			if next > pkt.end {
				return 0, ErrMalformed
			}
			cur = next
		case 0xC0:
			if cur+1 >= pkt.end {
				return 0, ErrMalformed
			}
			return cur + 2, nil
		default:
			return 0, ErrMalformed
		}
	}
}

// Anchor ensures name ends with a trailing dot, writing the result
// into dst and returning its length. A name that is already anchored
// is copied unchanged.
func Anchor(name []byte, dst []byte) (int, error) {
	anchored := len(name) > 0 && name[len(name)-1] == '.'
	need := len(name)
	if !anchored {
		need++
	}
	if need > len(dst) {
		return 0, ErrTooLong
	}
	copy(dst, name)
	if !anchored {
		dst[len(name)] = '.'
	}
	return need, nil
}

// AnchorString is the string convenience form of Anchor.
func AnchorString(name string) (string, error) {
	if name == "" {
		return ".", nil
	}
	if name[len(name)-1] == '.' {
		return name, nil
	}
	if len(name)+1 > MaxNameLen {
		return "", ErrTooLong
	}
	return name + ".", nil
}

// Cleave returns the suffix of name after its first internal dot,
// stripping a hostname down to its parent domain ("a.b.c" -> "b.c";
// "a." -> ""; "." -> "").
func Cleave(name []byte) []byte {
	if len(name) == 0 {
		return nil
	}
	i := bytes.IndexByte(name, '.')
	if i < 0 {
		return nil
	}
	return name[i+1:]
}

// CleaveString is the string convenience form of Cleave.
func CleaveString(name string) string {
	i := bytes.IndexByte([]byte(name), '.')
	if i < 0 {
		return ""
	}
	return name[i+1:]
}
