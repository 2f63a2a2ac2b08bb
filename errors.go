package dns

// Error is the package's boundary error type. It wraps a short,
// lower-case message in the style of the DNS message packer this
// package descends from.
type Error struct {
	Err string
}

func (e *Error) Error() string {
	if e == nil {
		return "dns: <nil>"
	}
	return e.Err
}

// Boundary error kinds surfaced by the codec, packet buffer and config
// loader (spec.md §6). Compare with errors.Is, not ==, since a wrapped
// error (via github.com/pkg/errors) may sit in front of these.
var (
	// ErrMalformed marks truncated wire data or a reserved compression
	// bit pattern (01/10) encountered while expanding a name or
	// parsing a record.
	ErrMalformed error = &Error{Err: "dns: malformed message"}

	// ErrTooLong marks a destination buffer too small for the
	// requested write, or a presentation name/label over its limit.
	ErrTooLong error = &Error{Err: "dns: name or buffer too long"}

	// ErrLoop marks a compression-pointer chain exceeding MAXPTRS hops.
	ErrLoop error = &Error{Err: "dns: too many compression pointers"}

	// ErrNoBufs marks a packet buffer at capacity — a push has no
	// room left and was rolled back.
	ErrNoBufs error = &Error{Err: "dns: packet buffer full"}
)

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e == t || e.Err == t.Err
}
