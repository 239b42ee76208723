package validation

import "time"

// ConnectivityStatus is the state of one synthetic probe
type ConnectivityStatus string

const (
	ConnectivityAttempting ConnectivityStatus = "attempting"
	ConnectivityOnline     ConnectivityStatus = "online"
	ConnectivityOffline    ConnectivityStatus = "offline"
)

// ConnectivityRecord is one appended probe outcome for a remote service.
// The log is append-only; status queries read the latest record per service.
type ConnectivityRecord struct {
	ServiceName    string             `json:"service_name"`
	Status         ConnectivityStatus `json:"status"`
	ResponseTimeMs *int64             `json:"response_time_ms,omitempty"`
	ErrorMessage   string             `json:"error_message,omitempty"`
	CheckedAt      time.Time          `json:"checked_at"`
}

// Overall service health values derived from the latest records
const (
	ServiceHealthOnline   = "online"
	ServiceHealthDegraded = "degraded"
)
