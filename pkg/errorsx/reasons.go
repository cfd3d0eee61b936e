package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	// Session lifecycle failures.
	ReasonMediaAccessDenied ReasonCode = "media_access_denied"
	ReasonConnectionFailed  ReasonCode = "connection_failed"
	ReasonDropped           ReasonCode = "dropped"
	ReasonConnectTimeout    ReasonCode = "connect_timeout"

	// Provider and device I/O.
	ReasonProviderSend  ReasonCode = "provider_send"
	ReasonProviderRecv  ReasonCode = "provider_recv"
	ReasonCaptureRead   ReasonCode = "capture_read"
	ReasonPlaybackWrite ReasonCode = "playback_write"

	// Archival.
	ReasonPersistenceFailure ReasonCode = "persistence_failure"

	// Outbound telephony.
	ReasonDialFailed ReasonCode = "dial_failed"
)
