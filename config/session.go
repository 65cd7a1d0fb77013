package config

// SessionConfig tunes the coordination layer's timing.
type SessionConfig struct {
	// DebounceWindowSeconds is the per-(vehicle, domain) refresh window.
	DebounceWindowSeconds int `json:"debounce_window_seconds"`
	// OperationTimeoutSeconds bounds how long a tracked operation waits for
	// its bus-reported outcome.
	OperationTimeoutSeconds int `json:"operation_timeout_seconds"`
	// SettleDelaySeconds is the pause between a completed operation and the
	// refresh of the domain it touched.
	SettleDelaySeconds int `json:"settle_delay_seconds"`
}

// SetDefaults applies the backend's documented timing.
func (c *SessionConfig) SetDefaults() {
	if c.DebounceWindowSeconds <= 0 {
		c.DebounceWindowSeconds = 10
	}
	if c.OperationTimeoutSeconds <= 0 {
		c.OperationTimeoutSeconds = 300
	}
	if c.SettleDelaySeconds <= 0 {
		c.SettleDelaySeconds = 1
	}
}
