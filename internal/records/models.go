package records

import (
	"strings"
	"time"
)

// Status represents the conveyor lifecycle of a product record.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusProcessing  Status = "processing"
	StatusError       Status = "error"
	StatusDone        Status = "done"
	StatusQuarantined Status = "quarantined"
)

var allStatuses = []Status{
	StatusIdle,
	StatusProcessing,
	StatusError,
	StatusDone,
	StatusQuarantined,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Product is a product record persisted in SQLite. ExternalID is the
// marketplace-native numeric identifier assigned by the source storefront.
type Product struct {
	ID          int64
	ExternalID  int64
	Article     string
	Name        string
	Brand       string
	Description string
	Price       float64
	Images      []string
	RawAttrs    map[string]string
	Specs       Specs

	MSCreated    bool
	StockAdded   bool
	KaspiCreated bool

	Status   Status
	IsClosed bool

	Attempts    int
	NextRetryAt *time.Time
	Version     int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StagesCompleted counts how many stage flags are already set. The batch
// query orders records by this figure ascending, so the least advanced
// records move first.
func (p *Product) StagesCompleted() int {
	count := 0
	for _, flag := range []bool{p.MSCreated, p.StockAdded, p.KaspiCreated} {
		if flag {
			count++
		}
	}
	return count
}

// Terminal reports whether the conveyor may never touch this record again.
func (p *Product) Terminal() bool {
	return p.IsClosed || p.Status == StatusDone || p.Status == StatusQuarantined
}

// AllStagesDone reports whether every stage flag has been set.
func (p *Product) AllStagesDone() bool {
	return p.MSCreated && p.StockAdded && p.KaspiCreated
}

// LogEvent appends a timestamped entry to the specs log sidecar.
func (p *Product) LogEvent(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	entry := time.Now().UTC().Format("2006-01-02 15:04:05") + " " + message
	p.Specs.Log = append(p.Specs.Log, entry)
	// Keep the sidecar bounded; old entries matter less than recent failures.
	const maxLogEntries = 50
	if len(p.Specs.Log) > maxLogEntries {
		p.Specs.Log = p.Specs.Log[len(p.Specs.Log)-maxLogEntries:]
	}
}

// HealthSummary describes aggregated record counts per key lifecycle states.
type HealthSummary struct {
	Total       int
	Idle        int
	Processing  int
	Error       int
	Done        int
	Quarantined int
	Closed      int
}

// JobStatus represents the lifecycle of a discovery job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobError      JobStatus = "error"
)

// Job is a discovery job row: one keyword-search page to fetch from the
// source storefront. Page counts from 1; the worker translates to the
// storefront's zero base when searching.
type Job struct {
	ID        int64
	Mode      string
	Query     string
	Page      int
	Status    JobStatus
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
