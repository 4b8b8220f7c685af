package stats

import (
	"fmt"

	"cpstats-backend/internal/components/telemetry"
)

const (
	report_merge_adapter_failure   = "merge.adapter-failure"
	report_merge_platform_mismatch = "merge.platform-mismatch"
	report_merge_count             = "merge.merged-platforms"
)

// Outcome is the settled result of invoking the adapter of one platform.
type Outcome struct {
	Platform Platform
	Record   Record
	Err      error
}

// Ok is true if the adapter succeeded with a record.
func (o Outcome) Ok() bool {
	return o.Err == nil && o.Record != nil
}

// Merge folds the outcomes into an aggregate in the order given. Failed outcomes are
// skipped and reported through `tel`, they never remove or abort anything else.
//
// The key of a record is always the platform the adapter was invoked for, a record
// claiming to belong to another platform is discarded.
func Merge(outcomes []Outcome, tel telemetry.API) Aggregate {
	out := make(Aggregate, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil {
			tel.ReportWarning(report_merge_adapter_failure, string(o.Platform), o.Err)
			continue
		}
		if o.Record == nil {
			tel.ReportWarning(
				report_merge_adapter_failure,
				string(o.Platform),
				fmt.Errorf("adapter returned no record"),
			)
			continue
		}
		if o.Record.Platform() != o.Platform {
			tel.ReportBroken(
				report_merge_platform_mismatch,
				string(o.Platform),
				string(o.Record.Platform()),
			)
			continue
		}
		out[o.Platform] = o.Record
	}
	tel.ReportCount(report_merge_count, int64(len(out)))
	return out
}
