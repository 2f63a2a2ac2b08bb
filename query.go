package dns

// NewQuery builds a minimal question-only packet for (name, qtype, IN),
// the shape of request an outer driver hands to a transport (spec.md
// §1: the transport itself is out of scope). Grounded on
// babolivier-go-doh-client's query.go, which builds exactly this kind
// of minimal request struct before handing it to an HTTP client.
func NewQuery(id uint16, name string, qtype uint16) (*Packet, error) {
	p := NewPacket(512)
	p.SetID(id)
	if err := p.Push(SectionQD, []byte(name), qtype, ClassINET, 0, nil); err != nil {
		return nil, err
	}
	return p, nil
}
