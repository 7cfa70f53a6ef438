package visit

// Bundle is the set of client-reported fingerprint signals collected at
// first contact. Optional signals are pointers: nil means the client never
// reported the signal, which is not the same as reporting an empty string.
// A Bundle is immutable once its visit record has been created.
type Bundle struct {
	// Rendering fingerprints
	Canvas *string `json:"canvas_fingerprint,omitempty"`
	WebGL  *string `json:"webgl_fingerprint,omitempty"`
	Fonts  *string `json:"fonts_hash,omitempty"`

	// Display / locale
	ScreenResolution *string `json:"screen_resolution,omitempty"`
	Timezone         *string `json:"timezone,omitempty"`
	Language         *string `json:"language,omitempty"`
	Platform         *string `json:"platform,omitempty"`

	// Extended hardware / network / feature signals
	DeviceMemoryGB      *int    `json:"device_memory,omitempty"`
	HardwareConcurrency *int    `json:"hardware_concurrency,omitempty"`
	ConnectionType      *string `json:"connection_type,omitempty"`
	StorageAvailable    *bool   `json:"storage_available,omitempty"`
	BatteryLevel        *float64 `json:"battery_level,omitempty"`
	WebRTCLocalIP       *string `json:"webrtc_local_ip,omitempty"`
	AudioFingerprint    *string `json:"audio_fingerprint,omitempty"`

	// Headless-browser detection result reported by the client probe.
	Headless bool `json:"is_headless,omitempty"`
}
