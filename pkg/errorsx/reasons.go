package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	// ReasonTransport covers connection errors, timeouts and non-2xx responses.
	ReasonTransport ReasonCode = "transport"
	// ReasonDecode means the payload was not well-formed structured data.
	ReasonDecode ReasonCode = "decode"
	// ReasonShape means the payload parsed but required fields were missing.
	ReasonShape ReasonCode = "shape"
	// ReasonConfig means a required credential, endpoint or prompt is absent.
	ReasonConfig ReasonCode = "config"
	// ReasonInvalidInput is a caller error, such as an unsupported language.
	ReasonInvalidInput ReasonCode = "invalid_input"

	ReasonRateLimit   ReasonCode = "rate_limit"
	ReasonCircuitOpen ReasonCode = "circuit_open"
)

// Absorbable reports whether the reason is one that degrading operations are
// allowed to swallow. Configuration failures are never absorbed.
func (r ReasonCode) Absorbable() bool {
	return r != ReasonConfig
}
