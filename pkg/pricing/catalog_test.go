package pricing

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.json")
	book := sampleBook()
	if err := Save(path, book); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Providers) != 2 {
		t.Errorf("expected 2 providers, got %d", len(loaded.Providers))
	}
	if loaded.Providers["anthropic"].SubscriptionUSDMonth != 20 {
		t.Errorf("expected subscription 20, got %v", loaded.Providers["anthropic"].SubscriptionUSDMonth)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected temp file to be renamed away, found %d entries", len(entries))
	}
}

func TestParseDefaultsMissingMaps(t *testing.T) {
	book, err := Parse([]byte(`{"providers":{"openai":{"models":{"gpt":{"input_usd_per_mtok":1,"output_usd_per_mtok":2}}}}}`))
	if err != nil {
		t.Fatal(err)
	}
	if book.ProviderAliases == nil {
		t.Error("expected provider_aliases to default to an empty map")
	}
	p := book.Providers["openai"]
	if p.ModelAliases == nil {
		t.Error("expected model_aliases to default to an empty map")
	}
	if p.SubscriptionUSDMonth != 0 {
		t.Errorf("expected subscription default 0, got %v", p.SubscriptionUSDMonth)
	}
	if p.Models["gpt"].CacheReadUSDPerMTok != nil {
		t.Error("expected optional rate to stay nil")
	}
}

func TestParseRejectsBrokenAlias(t *testing.T) {
	_, err := Parse([]byte(`{"providers":{},"provider_aliases":{"a":"b"}}`))
	var aliasErr *AliasIntegrityError
	if !errors.As(err, &aliasErr) {
		t.Errorf("expected AliasIntegrityError, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestHashStable(t *testing.T) {
	a, err := Hash(sampleBook())
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Hash(sampleBook())
	if a != b {
		t.Errorf("expected equal hashes, got %s and %s", a, b)
	}

	changed := sampleBook()
	changed.ProviderAliases["gpt"] = "openai"
	c, _ := Hash(changed)
	if a == c {
		t.Error("expected hash to change with catalog contents")
	}
}
