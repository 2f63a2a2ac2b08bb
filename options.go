package dns

import "go.uber.org/zap"

// Option configures a HintsTable constructed via NewHintsTable,
// following the functional-option idiom this corpus's constructors use
// (caddyserver-caddy's module options, XTLS-Xray-core's nameserver
// constructors) rather than a config struct with exported zero values.
type Option func(*tableConfig)

type tableConfig struct {
	clock Clock
	rand  func() uint32
	log   *zap.Logger
}

func defaultTableConfig() *tableConfig {
	return &tableConfig{
		clock: NewSystemClock(),
		rand:  defaultRand(),
		log:   zap.NewNop(),
	}
}

// WithClock overrides the table's time source, primarily for tests
// that need to simulate penalty-TTL expiry deterministically.
func WithClock(c Clock) Option {
	return func(cfg *tableConfig) { cfg.clock = c }
}

// WithRand overrides the table's RNG callback used to randomize the
// iterator's walk start (spec.md §9: caller-supplied RNG, no singleton).
func WithRand(r func() uint32) Option {
	return func(cfg *tableConfig) { cfg.rand = r }
}

// WithLogger overrides the table's structured logger for penalty/
// restore diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(cfg *tableConfig) { cfg.log = log }
}
