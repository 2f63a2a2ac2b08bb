// Package dns implements the core of a restartable, allocation-light
// DNS resolver library: wire-format domain-name compression/expansion,
// an append-only packet buffer with a filtering record iterator, a
// small RR type registry (A, AAAA, NS, CNAME, MX, TXT, plus an opaque
// fallback), a resolv.conf loader, an ndots-driven search-list
// generator, and an adaptively-deprioritizing nameserver hints table.
//
// Socket I/O, retransmission, caching and the outer query driver are
// deliberately not part of this package — they're a thin consumer of
// the types here (Packet, ResolvConf, SearchState, HintsTable).
package dns
