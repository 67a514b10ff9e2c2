// Package events loads, writes, and filters usage events in JSONL form.
package events

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pario-ai/tokenledger/pkg/models"
	"github.com/pario-ai/tokenledger/pkg/pricing"
)

const maxLineSize = 1024 * 1024

// Load reads every JSONL file concurrently and returns events in path order.
func Load(ctx context.Context, paths []string) ([]models.UsageEvent, error) {
	results := make([][]models.UsageEvent, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, path := range paths {
		g.Go(func() error {
			evs, err := ReadFile(ctx, path)
			if err != nil {
				return err
			}
			results[i] = evs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []models.UsageEvent
	for _, evs := range results {
		out = append(out, evs...)
	}
	return out, nil
}

// ReadFile parses one JSONL file, skipping blank lines.
func ReadFile(ctx context.Context, path string) ([]models.UsageEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var out []models.UsageEvent
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var evt models.UsageEvent
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			return nil, fmt.Errorf("parse line %d in %s: %w", lineNo, path, err)
		}
		out = append(out, evt)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read events %s: %w", path, err)
	}
	return out, nil
}

// WriteFile writes events as JSONL, creating parent directories.
func WriteFile(path string, evs []models.UsageEvent) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, evt := range evs {
		if err := enc.Encode(evt); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

// ParseMonth validates a YYYY-MM label.
func ParseMonth(raw string) (int, time.Month, error) {
	parts := strings.Split(raw, "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid month format '%s', expected YYYY-MM", raw)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("parse year in '%s': %w", raw, err)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parse month in '%s': %w", raw, err)
	}
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("invalid month '%d', must be 1-12", month)
	}
	return year, time.Month(month), nil
}

// FilterMonth keeps events in the given UTC month. An empty month keeps everything.
func FilterMonth(evs []models.UsageEvent, month string) ([]models.UsageEvent, error) {
	if month == "" {
		return evs, nil
	}
	year, m, err := ParseMonth(month)
	if err != nil {
		return nil, err
	}
	out := make([]models.UsageEvent, 0, len(evs))
	for _, evt := range evs {
		ts := evt.Timestamp.UTC()
		if ts.Year() == year && ts.Month() == m {
			out = append(out, evt)
		}
	}
	return out, nil
}

// Normalize rewrites provider and model names to their canonical form.
func Normalize(evs []models.UsageEvent, book *models.PricingBook) []models.UsageEvent {
	out := make([]models.UsageEvent, len(evs))
	for i, evt := range evs {
		evt.Provider = pricing.ResolveProvider(book, evt.Provider)
		evt.Model = pricing.ResolveModel(book, evt.Provider, evt.Model)
		out[i] = evt
	}
	return out
}

// FilterProviderModel keeps normalized events matching the provider and model
// filters. Filter values may be aliases; empty filters match everything.
func FilterProviderModel(evs []models.UsageEvent, book *models.PricingBook, providers, modelNames []string) []models.UsageEvent {
	if len(providers) == 0 && len(modelNames) == 0 {
		return evs
	}
	providerSet := make(map[string]bool, len(providers))
	for _, p := range providers {
		providerSet[pricing.ResolveProvider(book, p)] = true
	}
	modelSet := make(map[string]bool, len(modelNames))
	for _, m := range modelNames {
		modelSet[m] = true
		for _, p := range book.Providers {
			if canonical, ok := p.ModelAliases[m]; ok {
				modelSet[canonical] = true
			}
		}
	}

	out := make([]models.UsageEvent, 0, len(evs))
	for _, evt := range evs {
		if len(providerSet) > 0 && !providerSet[evt.Provider] {
			continue
		}
		if len(modelSet) > 0 && !modelSet[evt.Model] {
			continue
		}
		out = append(out, evt)
	}
	return out
}

// Fingerprint returns a SHA-256 digest over the identity and every token
// counter of each event.
func Fingerprint(evs []models.UsageEvent) string {
	h := sha256.New()
	for _, evt := range evs {
		u := evt.Usage
		fmt.Fprintf(h, "%s\x00%s\x00%s\x00%d\x00%d\x00%d\x00%d\x00%d\x00%d\x00%d\n",
			evt.Provider, evt.Model, evt.SessionID, evt.Timestamp.UnixNano(),
			u.InputTokens, u.OutputTokens, u.CacheWriteTokens, u.CacheReadTokens,
			u.ToolInputTokens, u.ToolOutputTokens)
	}
	return hex.EncodeToString(h.Sum(nil))
}
