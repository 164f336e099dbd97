package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// InstanceStatus describes one instance loop.
type InstanceStatus struct {
	Name                string `json:"name"`
	ServiceType         string `json:"serviceType"`
	State               string `json:"state"`
	Cycles              int64  `json:"cycles"`
	LastCycleID         string `json:"lastCycleId,omitempty"`
	LastCycleAt         string `json:"lastCycleAt,omitempty"`
	LastDurationMs      int64  `json:"lastDurationMs"`
	LastError           string `json:"lastError,omitempty"`
	LastErrorAt         string `json:"lastErrorAt,omitempty"`
	QueueSize           int    `json:"queueSize"`
	Struck              int    `json:"struck"`
	Removed             int    `json:"removed"`
	Failed              int    `json:"failed"`
	TrackedItems        int    `json:"trackedItems"`
	NextCycleAt         string `json:"nextCycleAt,omitempty"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
}

// DatabaseHealth mirrors ledger diagnostics.
type DatabaseHealth struct {
	DBPath           string `json:"dbPath"`
	DatabaseExists   bool   `json:"databaseExists"`
	DatabaseReadable bool   `json:"databaseReadable"`
	SchemaVersion    int    `json:"schemaVersion"`
	IntegrityCheck   bool   `json:"integrityCheck"`
	StrikeRecords    int    `json:"strikeRecords"`
	Actions          int    `json:"actions"`
	Error            string `json:"error,omitempty"`
}

// StatusResponse is the payload of GET /api/status.
type StatusResponse struct {
	Running        bool                      `json:"running"`
	PID            int                       `json:"pid"`
	StartedAt      string                    `json:"startedAt,omitempty"`
	ConfigPath     string                    `json:"configPath,omitempty"`
	ConfigLoadedAt string                    `json:"configLoadedAt,omitempty"`
	LockPath       string                    `json:"lockPath,omitempty"`
	Channels       []string                  `json:"channels"`
	Instances      []InstanceStatus          `json:"instances"`
	Totals         map[string]map[string]int `json:"totals"`
	Database       DatabaseHealth            `json:"database"`
}

// StrikeRecord is one ledger row.
type StrikeRecord struct {
	Instance     string `json:"instance"`
	Identity     string `json:"identity"`
	Title        string `json:"title,omitempty"`
	Category     string `json:"category"`
	Count        int    `json:"count"`
	FirstSeenAt  string `json:"firstSeenAt,omitempty"`
	LastStruckAt string `json:"lastStruckAt,omitempty"`
	LastCycle    string `json:"lastCycle,omitempty"`
}

// StrikesResponse is the payload of GET /api/strikes.
type StrikesResponse struct {
	Records []StrikeRecord `json:"records"`
}

// Action is one remediation log entry.
type Action struct {
	ID         string         `json:"id"`
	CycleID    string         `json:"cycleId"`
	Instance   string         `json:"instance"`
	Identity   string         `json:"identity"`
	Title      string         `json:"title,omitempty"`
	Kind       string         `json:"kind"`
	Categories []string       `json:"categories"`
	Counts     map[string]int `json:"counts,omitempty"`
	Removed    bool           `json:"removed"`
	Blocked    bool           `json:"blocked"`
	Researched bool           `json:"researched"`
	Error      string         `json:"error,omitempty"`
	At         string         `json:"at,omitempty"`
}

// ActionsResponse is the payload of GET /api/actions.
type ActionsResponse struct {
	Actions []Action `json:"actions"`
}

// TestNotifyResponse reports the outcome of POST /api/test-notify.
type TestNotifyResponse struct {
	Sent     bool     `json:"sent"`
	Channels []string `json:"channels"`
	Message  string   `json:"message"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}
