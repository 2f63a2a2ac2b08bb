package dns

import "go.uber.org/zap"

// Packet is the append-only message buffer described in spec.md §3/§4.2:
// a fixed-capacity byte slice with a write cursor (end), the 12-byte
// RFC 1035 header, and a compression dictionary of label offsets a
// later Push can reuse. Mirrors the teacher's (miekg/dns) packUint16/
// unpackUint16 field framing in msg_util.go, adapted to a single
// growing buffer instead of a caller-supplied []byte per call.
type Packet struct {
	buf  []byte
	end  int
	dict []int
	log  *zap.Logger
}

// Section identifies one of the four RFC 1035 record groupings. Order
// matters: grep always scans QD, then AN, then NS, then AR.
type Section int

const (
	SectionQD Section = iota
	SectionAN
	SectionNS
	SectionAR
)

func (s Section) bit() uint8 { return 1 << uint(s) }

const (
	headerLen  = 12
	idOff      = 0
	flagsOff   = 2
	qdcountOff = 4
	ancountOff = 6
	nscountOff = 8
	arcountOff = 10
)

// NewPacket allocates a Packet with the given fixed capacity. Capacity
// smaller than the header is rounded up so the header always fits.
func NewPacket(capacity int) *Packet {
	if capacity < headerLen {
		capacity = headerLen
	}
	return &Packet{
		buf:  make([]byte, capacity),
		end:  headerLen,
		dict: make([]int, 0, maxDictEntries),
		log:  zap.NewNop(),
	}
}

// SetLogger attaches a structured logger used for diagnostics such as
// a grep scan stopping on a malformed record. A nil logger is ignored.
func (p *Packet) SetLogger(log *zap.Logger) {
	if log != nil {
		p.log = log
	}
}

// Bytes returns the serialized message written so far.
func (p *Packet) Bytes() []byte { return p.buf[:p.end] }

// End returns the current write cursor.
func (p *Packet) End() int { return p.end }

// Cap returns the packet's fixed capacity.
func (p *Packet) Cap() int { return len(p.buf) }

func (p *Packet) ID() uint16 { v, _ := unpackUint16(p.buf, idOff); return v }
func (p *Packet) SetID(id uint16) {
	p.buf[idOff], p.buf[idOff+1] = packUint16(id)
}

func (p *Packet) Flags() uint16 { v, _ := unpackUint16(p.buf, flagsOff); return v }
func (p *Packet) SetFlags(f uint16) {
	p.buf[flagsOff], p.buf[flagsOff+1] = packUint16(f)
}

func (p *Packet) QDCount() uint16 { return p.sectionCount(SectionQD) }
func (p *Packet) ANCount() uint16 { return p.sectionCount(SectionAN) }
func (p *Packet) NSCount() uint16 { return p.sectionCount(SectionNS) }
func (p *Packet) ARCount() uint16 { return p.sectionCount(SectionAR) }

func sectionCountOffset(s Section) int {
	switch s {
	case SectionQD:
		return qdcountOff
	case SectionAN:
		return ancountOff
	case SectionNS:
		return nscountOff
	default:
		return arcountOff
	}
}

func (p *Packet) sectionCount(s Section) uint16 {
	v, _ := unpackUint16(p.buf, sectionCountOffset(s))
	return v
}

func (p *Packet) addSectionCount(s Section, delta int) {
	off := sectionCountOffset(s)
	v, _ := unpackUint16(p.buf, off)
	v = uint16(int(v) + delta)
	p.buf[off], p.buf[off+1] = packUint16(v)
}

// addDictEntry registers offset as the start of a just-written name,
// silently dropping the entry once the dictionary is full (spec.md §4.2).
func (p *Packet) addDictEntry(offset int) {
	if len(p.dict) >= maxDictEntries {
		return
	}
	p.dict = append(p.dict, offset)
}

func (p *Packet) reserve(n int) error {
	if p.end+n > len(p.buf) {
		return ErrNoBufs
	}
	return nil
}

func (p *Packet) appendByte(b byte) error {
	if err := p.reserve(1); err != nil {
		return err
	}
	p.buf[p.end] = b
	p.end++
	return nil
}

func (p *Packet) appendUint16(v uint16) error {
	if err := p.reserve(2); err != nil {
		return err
	}
	p.buf[p.end], p.buf[p.end+1] = packUint16(v)
	p.end += 2
	return nil
}

func (p *Packet) appendUint32(v uint32) error {
	if err := p.reserve(4); err != nil {
		return err
	}
	b0, b1, b2, b3 := packUint32(v)
	p.buf[p.end], p.buf[p.end+1], p.buf[p.end+2], p.buf[p.end+3] = b0, b1, b2, b3
	p.end += 4
	return nil
}

func (p *Packet) appendBytes(b []byte) error {
	if err := p.reserve(len(b)); err != nil {
		return err
	}
	copy(p.buf[p.end:], b)
	p.end += len(b)
	return nil
}

func packUint16At(buf []byte, off int, v uint16) {
	buf[off], buf[off+1] = packUint16(v)
}

// Push appends a record to section, compressing dn against the
// packet's dictionary, and writes rr's rdata (nil for a bare question
// entry). On any failure end is restored to its value before the call,
// per spec.md §4.2/§7 — a failed push never poisons the packet.
func (p *Packet) Push(section Section, dn []byte, typ, class uint16, ttl uint32, rr RR) error {
	start := p.end
	fail := func(err error) error {
		p.end = start
		return err
	}

	n, err := Compress(dn, p.buf[p.end:], p)
	if err != nil {
		return fail(err)
	}
	p.end += n

	if err := p.appendUint16(typ); err != nil {
		return fail(err)
	}
	if err := p.appendUint16(class); err != nil {
		return fail(err)
	}

	if section == SectionQD {
		p.addSectionCount(SectionQD, 1)
		return nil
	}

	if err := p.appendUint32(ttl &^ 0x80000000); err != nil {
		return fail(err)
	}

	rdlenOff := p.end
	if err := p.appendUint16(0); err != nil {
		return fail(err)
	}
	rdStart := p.end
	if rr != nil {
		if _, err := rr.rdataSerialize(p); err != nil {
			return fail(err)
		}
	}
	rdLen := p.end - rdStart
	if rdLen > 0xFFFF {
		return fail(ErrTooLong)
	}
	packUint16At(p.buf, rdlenOff, uint16(rdLen))
	p.addSectionCount(section, 1)
	return nil
}

// Record is the parsed view of one on-wire record, per spec.md §3.
// For QD entries TTL/RDOff/RDLen are zero/absent.
type Record struct {
	Section Section
	NameOff int
	NameLen int // bytes occupied by the (possibly pointer-terminated) name here
	Type    uint16
	Class   uint16
	TTL     uint32
	RDOff   int
	RDLen   int
}

// ParseRR parses a single record starting at offset, in the given
// section, per spec.md §4.2. It returns the parsed record and the
// offset of the next record.
func (p *Packet) ParseRR(offset int, section Section) (*Record, int, error) {
	nameOff := offset
	next, err := Skip(p, offset)
	if err != nil {
		return nil, 0, err
	}
	if next+4 > p.end {
		return nil, 0, ErrMalformed
	}
	typ, o := unpackUint16(p.buf, next)
	class, o := unpackUint16(p.buf, o)
	rec := &Record{
		Section: section,
		NameOff: nameOff,
		NameLen: next - nameOff,
		Type:    typ,
		Class:   class,
	}
	if section == SectionQD {
		return rec, o, nil
	}
	if o+4 > p.end {
		return nil, 0, ErrMalformed
	}
	ttlRaw, o2 := unpackUint32(p.buf, o)
	rec.TTL = ttlRaw &^ 0x80000000
	if o2+2 > p.end {
		return nil, 0, ErrMalformed
	}
	rdlen, o3 := unpackUint16(p.buf, o2)
	if o3+int(rdlen) > p.end {
		return nil, 0, ErrMalformed
	}
	rec.RDOff = o3
	rec.RDLen = int(rdlen)
	return rec, o3 + int(rdlen), nil
}
