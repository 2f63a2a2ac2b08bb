package dns

import (
	"bufio"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Classic libresolv limits: at most MaxNameservers configured servers
// and MaxSearch search domains. The loader silently drops anything
// beyond these (spec.md §4.4: "Silently drop when list full").
const (
	MaxNameservers = 3
	MaxSearch      = 6
)

// LookupSource is one character of the "lookup" keyword's ordered
// source list.
type LookupSource byte

const (
	LookupFile LookupSource = 'f'
	LookupBind LookupSource = 'b'
)

// Options holds the resolv.conf "options" keyword's fields.
type Options struct {
	EDNS0     bool
	Ndots     uint8
	Recursive bool
}

// NameServer is a configured resolver address (spec.md §3).
type NameServer struct {
	IP   net.IP
	Port uint16
}

// ResolvConf is the typed configuration model of spec.md §3: an
// immutable-after-setup value shared by reference count across
// resolvers (spec.md §5). Nothing mutates its fields after Load
// returns, so no internal lock is needed for reads.
type ResolvConf struct {
	Nameservers   []NameServer
	Search        []string
	Lookup        []LookupSource
	Options       Options
	BindInterface *NameServer

	refs *int32
}

// Acquire increments the shared reference count and returns rc,
// mirroring the source's refcounted shared-ownership model (spec.md §5).
func (rc *ResolvConf) Acquire() *ResolvConf {
	if rc == nil {
		return nil
	}
	atomic.AddInt32(rc.refs, 1)
	return rc
}

// Release decrements the shared reference count by one on every call;
// the count is not clamped at zero. It never frees Go-managed memory
// itself (the garbage collector does that); it exists so callers that
// pool or instrument resolv.conf lifetimes have a symmetric hook.
func (rc *ResolvConf) Release() {
	if rc == nil {
		return
	}
	atomic.AddInt32(rc.refs, -1)
}

// RefCount reports the current shared reference count.
func (rc *ResolvConf) RefCount() int32 {
	if rc == nil {
		return 0
	}
	return atomic.LoadInt32(rc.refs)
}

// LoaderOption configures LoadResolvConf/LoadResolvConfFile.
type LoaderOption func(*loaderConfig)

type loaderConfig struct {
	log *zap.Logger
}

// WithLoaderLogger attaches a structured logger used to report skipped
// or unrecognized resolv.conf lines (spec.md §7: "the design prefers
// forward-compat over strict rejection" — these are diagnostics, not
// failures).
func WithLoaderLogger(log *zap.Logger) LoaderOption {
	return func(cfg *loaderConfig) { cfg.log = log }
}

// LoadResolvConf parses a resolv.conf-style stream into a ResolvConf
// with a single reference already held (spec.md §4.4).
func LoadResolvConf(r io.Reader, opts ...LoaderOption) (*ResolvConf, error) {
	cfg := &loaderConfig{log: zap.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}

	one := int32(1)
	rc := &ResolvConf{
		Options: Options{Ndots: 1},
		refs:    &one,
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		rc.parseLine(scanner.Text(), cfg.log)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "dns: reading resolv.conf")
	}
	return rc, nil
}

// LoadResolvConfFile opens path, explicitly rewinds to its start (the
// file is freshly opened, so this is a seek to offset 0 for symmetry
// with spec.md §6's "the loader is positioned at file start"), and
// parses it.
func LoadResolvConfFile(path string, opts ...LoaderOption) (*ResolvConf, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "dns: opening %s", path)
	}
	defer f.Close()
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrapf(err, "dns: rewinding %s", path)
	}
	return LoadResolvConf(f, opts...)
}

func stripComment(line string) string {
	if i := strings.IndexAny(line, "#;"); i >= 0 {
		return line[:i]
	}
	return line
}

func fields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})
}

func (rc *ResolvConf) parseLine(line string, log *zap.Logger) {
	toks := fields(stripComment(line))
	if len(toks) == 0 {
		return
	}
	keyword := strings.ToLower(toks[0])
	args := toks[1:]

	switch keyword {
	case "nameserver":
		rc.parseNameserver(args, log)
	case "domain":
		if len(args) == 0 {
			return
		}
		rc.Search = rc.Search[:0]
		rc.appendSearch(args[0])
	case "search":
		rc.Search = rc.Search[:0]
		for _, a := range args {
			rc.appendSearch(a)
		}
	case "lookup":
		for _, a := range args {
			switch strings.ToLower(a) {
			case "file":
				rc.Lookup = append(rc.Lookup, LookupFile)
			case "bind":
				rc.Lookup = append(rc.Lookup, LookupBind)
			default:
				log.Debug("resolv.conf: unrecognized lookup source", zap.String("token", a))
			}
		}
	case "options":
		for _, a := range args {
			rc.parseOption(a, log)
		}
	case "interface":
		rc.parseInterface(args, log)
	default:
		log.Debug("resolv.conf: unrecognized keyword", zap.String("keyword", toks[0]))
	}
}

func (rc *ResolvConf) appendSearch(name string) {
	if len(rc.Search) >= MaxSearch {
		return
	}
	anchored, err := AnchorString(name)
	if err != nil {
		return
	}
	rc.Search = append(rc.Search, anchored)
}

func (rc *ResolvConf) parseNameserver(args []string, log *zap.Logger) {
	if len(args) == 0 {
		return
	}
	if len(rc.Nameservers) >= MaxNameservers {
		return
	}
	addr := args[0]
	ip := net.ParseIP(addr)
	if ip == nil {
		log.Debug("resolv.conf: unparsable nameserver address", zap.String("addr", addr))
		return
	}
	rc.Nameservers = append(rc.Nameservers, NameServer{IP: ip, Port: 53})
}

func (rc *ResolvConf) parseOption(tok string, log *zap.Logger) {
	switch {
	case tok == "edns0":
		rc.Options.EDNS0 = true
	case tok == "recursive":
		rc.Options.Recursive = true
	case strings.HasPrefix(tok, "ndots:"):
		n, err := strconv.Atoi(strings.TrimPrefix(tok, "ndots:"))
		if err != nil || n < 0 || n > 255 {
			log.Debug("resolv.conf: bad ndots option", zap.String("token", tok))
			return
		}
		rc.Options.Ndots = uint8(n)
	default:
		log.Debug("resolv.conf: unrecognized option", zap.String("token", tok))
	}
}

func (rc *ResolvConf) parseInterface(args []string, log *zap.Logger) {
	if len(args) < 2 {
		return
	}
	ip := net.ParseIP(args[0])
	if ip == nil {
		log.Debug("resolv.conf: unparsable interface address", zap.String("addr", args[0]))
		return
	}
	port, err := strconv.Atoi(args[1])
	if err != nil || port < 0 || port > 65535 {
		log.Debug("resolv.conf: bad interface port", zap.String("port", args[1]))
		return
	}
	rc.BindInterface = &NameServer{IP: ip, Port: uint16(port)}
}
