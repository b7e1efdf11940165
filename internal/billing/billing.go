// Package billing computes monetary costs for metered API usage and
// SMS dispatch. All amounts are integer microcredits
// (1 credit = 1_000_000 microcredits) so wallet updates stay exact.
package billing

import "strings"

// Default rate constants, in microcredits. Exact rate tables are
// business configuration; these are only fallbacks.
const (
	DefaultEndpointRateMicro int64 = 10_000 // 0.01 credits per call
	DefaultPerByteRateMicro  int64 = 1      // per request+response byte
	DefaultSegmentRateMicro  int64 = 30_000 // 0.03 credits per SMS segment
)

// Rates holds the configured pricing for a deployment.
type Rates struct {
	// EndpointMicro maps normalized endpoint paths to per-call rates.
	EndpointMicro map[string]int64
	// DefaultEndpointMicro applies to any endpoint not in the table.
	DefaultEndpointMicro int64
	// PerByteMicro is the surcharge per transferred byte.
	PerByteMicro int64
	// SegmentMicro is the charge per SMS segment per recipient.
	SegmentMicro int64
}

// DefaultRates returns the fallback rate configuration.
func DefaultRates() Rates {
	return Rates{
		EndpointMicro:        map[string]int64{},
		DefaultEndpointMicro: DefaultEndpointRateMicro,
		PerByteMicro:         DefaultPerByteRateMicro,
		SegmentMicro:         DefaultSegmentRateMicro,
	}
}

// Calculator computes costs from a Rates table.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator. Zero-valued rate fields fall back
// to the defaults so a partially configured deployment stays billable.
func NewCalculator(rates Rates) *Calculator {
	if rates.DefaultEndpointMicro <= 0 {
		rates.DefaultEndpointMicro = DefaultEndpointRateMicro
	}
	if rates.PerByteMicro < 0 {
		rates.PerByteMicro = DefaultPerByteRateMicro
	}
	if rates.SegmentMicro <= 0 {
		rates.SegmentMicro = DefaultSegmentRateMicro
	}
	if rates.EndpointMicro == nil {
		rates.EndpointMicro = map[string]int64{}
	}
	return &Calculator{rates: rates}
}

// EndpointRate returns the per-call rate for a normalized endpoint.
func (c *Calculator) EndpointRate(endpoint string) int64 {
	if rate, ok := c.rates.EndpointMicro[endpoint]; ok {
		return rate
	}
	return c.rates.DefaultEndpointMicro
}

// RequestCost computes the charge for one metered API call.
// Failed requests (status >= 400) incur half the endpoint rate; the
// per-byte surcharge always applies in full.
func (c *Calculator) RequestCost(endpoint string, statusCode int, requestBytes, responseBytes int64) int64 {
	rate := c.EndpointRate(endpoint)
	if statusCode >= 400 {
		rate /= 2
	}
	if requestBytes < 0 {
		requestBytes = 0
	}
	if responseBytes < 0 {
		responseBytes = 0
	}
	return rate + (requestBytes+responseBytes)*c.rates.PerByteMicro
}

// MessageCost estimates the charge for dispatching a message to the
// given number of recipients. Used for the balance-sufficiency check
// and the wallet debit, so estimate and charge always agree.
func (c *Calculator) MessageCost(recipients int, message string) int64 {
	if recipients < 1 {
		recipients = 1
	}
	return int64(recipients) * int64(Segments(message)) * c.rates.SegmentMicro
}

// GSM 03.38 segment limits. Messages containing characters outside the
// basic GSM set are sent as UCS-2 with smaller segments.
const (
	gsmSingleSegment  = 160
	gsmMultiSegment   = 153
	ucs2SingleSegment = 70
	ucs2MultiSegment  = 67
)

// Segments returns the number of SMS segments the message occupies.
func Segments(message string) int {
	if message == "" {
		return 1
	}

	single, multi := gsmSingleSegment, gsmMultiSegment
	length := len(message)
	if !isGSMCompatible(message) {
		single, multi = ucs2SingleSegment, ucs2MultiSegment
		length = len([]rune(message))
	}

	if length <= single {
		return 1
	}
	return (length + multi - 1) / multi
}

// isGSMCompatible approximates GSM 03.38 membership: printable ASCII
// plus newline and carriage return. Anything else forces UCS-2.
func isGSMCompatible(message string) bool {
	for i := 0; i < len(message); i++ {
		c := message[i]
		if c >= 0x20 && c < 0x7F {
			continue
		}
		if c == '\n' || c == '\r' {
			continue
		}
		return false
	}
	return true
}

// NormalizeEndpoint canonicalizes a request path for rate lookup:
// lowercased, query stripped, trailing slash removed, and identifier
// segments (ULIDs, UUIDs, plain numbers) collapsed to "{id}".
func NormalizeEndpoint(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	path = strings.ToLower(strings.TrimSuffix(path, "/"))
	if path == "" {
		return "/"
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if looksLikeID(seg) {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}

func looksLikeID(segment string) bool {
	if segment == "" {
		return false
	}
	// UUID: 36 chars with hyphens at fixed positions.
	if len(segment) == 36 && strings.Count(segment, "-") == 4 {
		return true
	}
	// ULID: 26 chars, Crockford base32.
	if len(segment) == 26 && isBase32(segment) {
		return true
	}
	// Plain numeric identifier.
	for i := 0; i < len(segment); i++ {
		if segment[i] < '0' || segment[i] > '9' {
			return false
		}
	}
	return true
}

func isBase32(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			continue
		}
		return false
	}
	return true
}
