package telemetry

import (
	"strings"
	"sync"
)

// Report is a single call made against a RecorderAPI.
type Report struct {
	Kind   string
	Id     string
	Params []any
}

const (
	KindBroken  = "broken"
	KindWarning = "warning"
	KindDebug   = "debug"
	KindCount   = "count"
)

// RecorderAPI is an API that keeps every report in memory so tests can assert on them.
// It is safe for concurrent use.
type RecorderAPI struct {
	mutex   sync.Mutex
	reports []Report
}

func NewRecorderAPI() *RecorderAPI {
	return &RecorderAPI{}
}

func (r *RecorderAPI) record(kind, id string, params []any) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.reports = append(r.reports, Report{Kind: kind, Id: id, Params: params})
}

func (r *RecorderAPI) ReportBroken(id string, params ...any) {
	r.record(KindBroken, id, params)
}

func (r *RecorderAPI) ReportWarning(id string, params ...any) {
	r.record(KindWarning, id, params)
}

func (r *RecorderAPI) ReportDebug(msg string, params ...any) {
	r.record(KindDebug, msg, params)
}

func (r *RecorderAPI) ReportCount(id string, count int64) {
	r.record(KindCount, id, []any{count})
}

// Reports returns a copy of the reports of the given kind whose id ends with `suffix`.
// An empty suffix matches every report of that kind.
func (r *RecorderAPI) Reports(kind, suffix string) []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var out []Report
	for _, report := range r.reports {
		if report.Kind == kind && strings.HasSuffix(report.Id, suffix) {
			out = append(out, report)
		}
	}
	return out
}
