package discovery

import (
	"fmt"
	"strings"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/errs"
)

// Report explains to a human what one discovery run could and could not see.
// Lines are ordered by tier and depend only on the outcomes, so two runs with
// identical outcomes render identically.
type Report struct {
	Capability Capability `json:"capability"`
	Lines      []string   `json:"lines"`
}

// String renders the report as one line per entry plus a summary.
func (r *Report) String() string {
	var b strings.Builder
	for _, line := range r.Lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString(r.Summary())
	return b.String()
}

// Summary is the one-line plain-language reading of the capability level.
func (r *Report) Summary() string {
	return summaryLine(r.Capability)
}

// buildReport derives the report from tier outcomes. It never invents a
// success: every line restates exactly what its outcome recorded.
func buildReport(outcomes []TierOutcome) *Report {
	r := &Report{Capability: CapabilityOf(outcomes)}
	for _, o := range outcomes {
		r.Lines = append(r.Lines, outcomeLine(o))
	}
	return r
}

func outcomeLine(o TierOutcome) string {
	if o.Succeeded {
		return fmt.Sprintf("%s: ok (%d rows)", tierLabel(o.Tier), o.Rows)
	}
	return fmt.Sprintf("%s: unavailable (%s)", tierLabel(o.Tier), kindReason(o.ErrKind))
}

func tierLabel(t Tier) string {
	switch t {
	case TierColumns:
		return "column metadata"
	case TierPrimaryKeys:
		return "primary keys"
	case TierForeignKeys:
		return "foreign keys"
	case TierColumnsMinimal:
		return "basic column listing"
	default:
		return string(t)
	}
}

func kindReason(k errs.ErrKind) string {
	switch k {
	case errs.ErrKindPermissionDenied:
		return "permission denied by the endpoint"
	case errs.ErrKindNotFound:
		return "metadata view not present"
	case errs.ErrKindIncompatible:
		return "not supported by this endpoint"
	case errs.ErrKindTimeout:
		return "query timed out"
	case errs.ErrKindQueryFailed:
		return "query rejected"
	default:
		return "failed"
	}
}

func summaryLine(c Capability) string {
	switch c {
	case CapabilityFull:
		return "schema discovered in full: columns, primary keys and foreign keys."
	case CapabilityPartial:
		return "schema discovered with gaps: answers relying on missing key metadata may be incomplete."
	case CapabilityMinimal:
		return "only table and column names are available: relationships and key columns are unknown."
	default:
		return string(c)
	}
}
