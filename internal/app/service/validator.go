package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/net/idna"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrInvalidURL is the umbrella for every rejection reason.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidFormat means the input is not an absolute URL with a host.
	ErrInvalidFormat = fmt.Errorf("%w: invalid format", ErrInvalidURL)
	// ErrUnresolvableHost means the host did not resolve in time.
	ErrUnresolvableHost = fmt.Errorf("%w: unresolvable host", ErrInvalidURL)
)

// DefaultResolveTimeout bounds a single host lookup.
const DefaultResolveTimeout = 3 * time.Second

const maxPort = 65535

var defaultPorts = map[string]int{
	"http":  80,
	"https": 443,
	"ws":    80,
	"wss":   443,
	"ftp":   21,
}

// Validator checks that input is a well-formed absolute URL whose host
// resolves, and returns the canonical serialization of that URL.
type Validator struct {
	resolver HostResolver
	timeout  time.Duration
	logger   *zap.Logger
	lookups  singleflight.Group
}

func NewValidator(resolver HostResolver, timeout time.Duration, logger *zap.Logger) *Validator {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}

	return &Validator{
		resolver: resolver,
		timeout:  timeout,
		logger:   logger,
	}
}

func (v *Validator) Validate(ctx context.Context, input string) (string, error) {
	u, err := Canonicalize(input)
	if err != nil {
		v.logger.Debug("rejected url", zap.String("input", input), zap.Error(err))
		return "", err
	}

	host := strings.TrimSuffix(u.Hostname(), "/")
	if err := v.resolve(ctx, host); err != nil {
		v.logger.Debug("rejected url", zap.String("input", input), zap.Error(err))
		return "", err
	}

	return u.String(), nil
}

// resolve looks host up once per concurrent burst of callers. Each caller is
// bounded by its own context and by the configured timeout.
func (v *Validator) resolve(ctx context.Context, host string) error {
	ch := v.lookups.DoChan(host, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.timeout)
		defer cancel()

		return v.resolver.LookupHost(lctx, host)
	})

	timer := time.NewTimer(v.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			return fmt.Errorf("%w: %s: %w", ErrUnresolvableHost, host, res.Err)
		}
		if addrs, _ := res.Val.([]string); len(addrs) == 0 {
			return fmt.Errorf("%w: %s: no addresses", ErrUnresolvableHost, host)
		}
		return nil
	case <-timer.C:
		v.lookups.Forget(host)
		return fmt.Errorf("%w: %s: %w", ErrUnresolvableHost, host, context.DeadlineExceeded)
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", ErrUnresolvableHost, host, ctx.Err())
	}
}

// Canonicalize parses input as an absolute URL and normalizes it: lower-case
// scheme and host, ASCII host, default port dropped, dot segments removed from
// the path, unsafe query bytes percent-encoded and an empty path set to "/"
// for schemes that have a default port.
func Canonicalize(input string) (*url.URL, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidFormat)
	}

	u, err := url.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	if u.Scheme == "" || u.Opaque != "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute url", ErrInvalidFormat, input)
	}

	host, err := normalizeHost(u.Hostname())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}

	port, err := normalizePort(u.Scheme, u.Port())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}

	switch {
	case port != "":
		u.Host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		u.Host = "[" + host + "]"
	default:
		u.Host = host
	}

	_, special := defaultPorts[u.Scheme]

	forceQuery := u.ForceQuery
	u = u.ResolveReference(&url.URL{})
	u.ForceQuery = forceQuery && u.RawQuery == ""
	u.RawQuery = escapeQuery(u.RawQuery, special)

	if special && u.Path == "" {
		u.Path = "/"
	}

	return u, nil
}

// normalizePort returns port without leading zeros, or "" when it is empty
// or the default port of scheme.
func normalizePort(scheme, port string) (string, error) {
	if port == "" {
		return "", nil
	}

	n, err := strconv.Atoi(port)
	if err != nil || n > maxPort {
		return "", fmt.Errorf("port %q out of range", port)
	}
	if def, ok := defaultPorts[scheme]; ok && n == def {
		return "", nil
	}

	return strconv.Itoa(n), nil
}

// escapeQuery percent-encodes the bytes a serialized query may not carry
// literally. Existing escapes are kept. The single quote is only encoded for
// schemes with a default port.
func escapeQuery(raw string, special bool) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	escaped := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c > ' ' && c < 0x7f && c != '"' && c != '<' && c != '>' && !(special && c == '\'') {
			if escaped {
				b.WriteByte(c)
			}
			continue
		}

		if !escaped {
			escaped = true
			b.Grow(len(raw) + 8)
			b.WriteString(raw[:i])
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}

	if !escaped {
		return raw
	}
	return b.String()
}

func normalizeHost(host string) (string, error) {
	host = strings.TrimSuffix(host, "/")
	if host == "" {
		return "", errors.New("missing host")
	}

	if ip := net.ParseIP(host); ip != nil {
		if strings.Contains(host, ":") {
			return strings.ToLower(host), nil
		}
		return ip.String(), nil
	}

	host = strings.ToLower(host)
	if !isASCII(host) {
		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			return "", err
		}
		host = ascii
	}

	return host, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
