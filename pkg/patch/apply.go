package patch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pario-ai/tokenledger/pkg/models"
	"github.com/pario-ai/tokenledger/pkg/pricing"
)

// InvalidPatchError is returned when a patch file cannot be decoded.
type InvalidPatchError struct {
	Path string
	Err  error
}

func (e *InvalidPatchError) Error() string {
	return fmt.Sprintf("invalid pricing patch %s: %v", e.Path, e.Err)
}

func (e *InvalidPatchError) Unwrap() error { return e.Err }

// LoadPatch reads and decodes a patch file.
func LoadPatch(path string) (*models.PricingPatch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read patch %s: %w", path, err)
	}
	var p models.PricingPatch
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &InvalidPatchError{Path: path, Err: err}
	}
	return &p, nil
}

// Merge adds the patch's providers and models to a copy of book.
// Existing providers and models are never modified; allowOverwrite is
// recorded by callers but does not change the merge. The input book is untouched.
func Merge(book *models.PricingBook, p *models.PricingPatch, allowOverwrite bool) (*models.PricingBook, models.PricingApplySummary, bool) {
	merged := book.Clone()
	var summary models.PricingApplySummary
	changed := false

	for name, mp := range p.MissingProviders {
		if _, ok := merged.Providers[name]; ok {
			continue
		}
		added := models.ProviderPricing{
			SubscriptionUSDMonth: mp.SubscriptionUSDMonth,
			Models:               make(map[string]models.ModelRate, len(mp.Models)),
			ModelAliases:         make(map[string]string, len(mp.ModelAliases)),
		}
		for model, rate := range mp.Models {
			added.Models[model] = rate.Clone()
		}
		for alias, target := range mp.ModelAliases {
			added.ModelAliases[alias] = target
		}
		merged.Providers[name] = added
		summary.ProvidersAdded++
		changed = true
	}

	for name, rates := range p.MissingModelsByProvider {
		provider, ok := merged.Providers[name]
		if !ok {
			continue
		}
		for model, rate := range rates {
			if _, exists := provider.Models[model]; exists {
				summary.ModelsSkippedExisting++
				continue
			}
			provider.Models[model] = rate.Clone()
			summary.ModelsAdded++
			changed = true
		}
	}

	return merged, summary, changed
}

// ApplyOptions configures ApplyFile.
type ApplyOptions struct {
	PricingPath    string
	PatchPath      string
	DryRun         bool
	WriteBackup    bool
	AllowOverwrite bool
	// Now stamps backup names; defaults to time.Now.
	Now func() time.Time
}

// ApplyExecution reports what ApplyFile did.
type ApplyExecution struct {
	Summary      models.PricingApplySummary
	Changed      bool
	WrotePricing bool
	BackupPath   string
	// PricingAfter is the merged catalog, whether or not it was written.
	PricingAfter *models.PricingBook
}

// ApplyFile merges a patch file into the catalog file.
// The merged catalog is validated, serialized, reparsed and validated again
// before anything is written. The file is rewritten only when the merge
// changed something and DryRun is false.
func ApplyFile(ctx context.Context, opts ApplyOptions) (*ApplyExecution, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	book, err := pricing.Load(opts.PricingPath)
	if err != nil {
		return nil, err
	}
	p, err := LoadPatch(opts.PatchPath)
	if err != nil {
		return nil, err
	}

	merged, summary, changed := Merge(book, p, opts.AllowOverwrite)
	if err := pricing.Validate(merged); err != nil {
		return nil, fmt.Errorf("validate merged pricing: %w", err)
	}
	data, err := pricing.Marshal(merged)
	if err != nil {
		return nil, err
	}
	if _, err := pricing.Parse(data); err != nil {
		return nil, fmt.Errorf("reparse merged pricing: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	exec := &ApplyExecution{
		Summary:      summary,
		Changed:      changed,
		WrotePricing: !opts.DryRun && changed,
		PricingAfter: merged,
	}
	if !exec.WrotePricing {
		return exec, nil
	}

	if opts.WriteBackup {
		backup := BackupPath(opts.PricingPath, now())
		if err := copyFile(opts.PricingPath, backup); err != nil {
			return nil, err
		}
		exec.BackupPath = backup
	}
	if err := pricing.WriteFileAtomic(opts.PricingPath, data); err != nil {
		return nil, fmt.Errorf("write pricing: %w", err)
	}
	return exec, nil
}

// BackupPath returns <dir>/<stem>.<YYYYMMDD_HHMMSS>.bak for pricingPath.
func BackupPath(pricingPath string, now time.Time) string {
	base := filepath.Base(pricingPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(pricingPath),
		fmt.Sprintf("%s.%s.bak", stem, now.UTC().Format("20060102_150405")))
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s for backup: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("write backup %s: %w", dst, err)
	}
	return nil
}
