package config

// Config is the root configuration. Files may be JSON or YAML; unknown
// fields are rejected so typos fail loudly at load time.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram  TelegramConfig   `json:"telegram"`
	Logging   LoggingConfig    `json:"logging"`
	Storage   StorageConfig    `json:"storage"`
	Auth      AuthConfig       `json:"auth,omitempty"`
	Quiz      QuizConfig       `json:"quiz,omitempty"`
	Broadcast *BroadcastConfig `json:"broadcast,omitempty"`
	Sweeper   SweeperConfig    `json:"sweeper,omitempty"`
	Pprof     PprofConfig      `json:"pprof,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// OwnerUserIDs may use every admin-only command (sudo management,
	// entitlement grants, broadcast).
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	PollTimeout  string  `json:"poll_timeout,omitempty"`
	// SendRatePerSec paces all outgoing API calls. Default 25.
	SendRatePerSec int `json:"send_rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// AuthConfig controls the entitlement decision cache.
type AuthConfig struct {
	// CacheTTL bounds how long a sudo/token/premium decision is trusted
	// before the store is consulted again. Default "60s".
	CacheTTL string `json:"cache_ttl,omitempty"`
}

type QuizConfig struct {
	// TokenPrice is the points cost of one creation token. Default 50.
	TokenPrice int `json:"token_price,omitempty"`
	// PointsPerCorrect is awarded for a correct answer. Default 10.
	PointsPerCorrect int `json:"points_per_correct,omitempty"`
	// TokenValidity is how long a redeemed token grants access. Default "24h".
	TokenValidity string `json:"token_validity,omitempty"`
}

// BroadcastConfig tunes the bulk dispatcher. Defaults match the documented
// protocol: 5 concurrent sends, batches of 50, 500ms between batches,
// retry_after + 500ms on flood control.
type BroadcastConfig struct {
	Concurrency int    `json:"concurrency,omitempty"`
	BatchSize   int    `json:"batch_size,omitempty"`
	BatchPause  string `json:"batch_pause,omitempty"`
	FloodExtra  string `json:"flood_extra,omitempty"`
	// MaxRetries caps flood-control retries per recipient; after the cap the
	// recipient is recorded as failed. 0 picks the default of 10; a negative
	// value removes the cap.
	MaxRetries int `json:"max_retries,omitempty"`
	// MaxDiagnostics caps collected failure detail strings per job. Default 20.
	MaxDiagnostics int `json:"max_diagnostics,omitempty"`
}

// PprofConfig controls the optional profiling HTTP server. A non-loopback
// bind requires a token.
type PprofConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Token   string `json:"token,omitempty"`
}

// SweeperConfig controls the periodic cleanup of expired token rows
// (the store has no TTL-driven auto-delete of its own).
type SweeperConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"` // cron spec, default "@every 10m"
}
