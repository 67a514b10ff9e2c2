package pricing

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/pario-ai/tokenledger/pkg/models"
)

// AuditOptions controls how strict a metadata audit is.
type AuditOptions struct {
	MaxAgeDays         int64
	AllowStale         bool
	AllowMissingSource bool
}

// ErrNegativeMaxAge is returned when AuditOptions.MaxAgeDays < 0.
var ErrNegativeMaxAge = errors.New("max age days must be >= 0")

// Audit checks that the catalog at path carries fresh provenance metadata.
func Audit(path string, now time.Time, opts AuditOptions) (*models.PricingAuditReport, error) {
	if opts.MaxAgeDays < 0 {
		return nil, ErrNegativeMaxAge
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing %s: %w", path, err)
	}
	if _, err := Parse(raw); err != nil {
		return nil, fmt.Errorf("load pricing %s: %w", path, err)
	}
	report := auditMeta(raw, now, opts)
	report.PricingPath = path
	return report, nil
}

func auditMeta(raw []byte, now time.Time, opts AuditOptions) *models.PricingAuditReport {
	meta := gjson.GetBytes(raw, "meta")
	source := strings.TrimSpace(meta.Get("source").String())
	updatedAt := strings.TrimSpace(meta.Get("updated_at").String())

	report := &models.PricingAuditReport{
		CheckedAt:        now.UTC().Format(time.RFC3339),
		MetadataPresent:  meta.IsObject(),
		SourcePresent:    source != "",
		UpdatedAtPresent: updatedAt != "",
		Violations:       []string{},
		Warnings:         []string{},
	}

	if !report.MetadataPresent {
		report.Violations = append(report.Violations, "missing metadata block `meta`")
	}
	if !report.SourcePresent {
		msg := "missing metadata source `meta.source`"
		if opts.AllowMissingSource {
			report.Warnings = append(report.Warnings, msg)
		} else {
			report.Violations = append(report.Violations, msg)
		}
	}

	if updatedAt == "" {
		report.Violations = append(report.Violations, "missing metadata timestamp `meta.updated_at`")
	} else if ts, err := time.Parse(time.RFC3339, updatedAt); err != nil {
		report.Violations = append(report.Violations,
			"invalid metadata timestamp `meta.updated_at` (expected RFC3339)")
	} else {
		days := int64(now.Sub(ts).Hours() / 24)
		report.AgeDays = &days
		report.Stale = days > opts.MaxAgeDays
		if report.Stale {
			msg := fmt.Sprintf("stale pricing metadata: age_days=%d exceeds max_age_days=%d", days, opts.MaxAgeDays)
			if opts.AllowStale {
				report.Warnings = append(report.Warnings, msg)
			} else {
				report.Violations = append(report.Violations, msg)
			}
		}
	}

	report.Pass = len(report.Violations) == 0
	return report
}
