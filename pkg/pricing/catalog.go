package pricing

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/pario-ai/tokenledger/pkg/models"
)

// Parse decodes a catalog, fills empty maps, and validates alias integrity.
func Parse(data []byte) (*models.PricingBook, error) {
	var book models.PricingBook
	if err := json.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("parse pricing: %w", err)
	}
	normalize(&book)
	if err := Validate(&book); err != nil {
		return nil, err
	}
	return &book, nil
}

// Load reads and parses the catalog at path.
func Load(path string) (*models.PricingBook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing %s: %w", path, err)
	}
	book, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load pricing %s: %w", path, err)
	}
	return book, nil
}

// Marshal renders a catalog as indented JSON with a trailing newline.
func Marshal(book *models.PricingBook) ([]byte, error) {
	data, err := json.MarshalIndent(book, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal pricing: %w", err)
	}
	return append(data, '\n'), nil
}

// Save writes the catalog through a temp file and rename.
func Save(path string, book *models.PricingBook) error {
	data, err := Marshal(book)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic replaces path with data so readers never see a partial file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".tmp-%s.json", uuid.New().String()))
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// Hash returns a SHA-256 hex digest of the catalog's canonical JSON.
func Hash(book *models.PricingBook) (string, error) {
	// encoding/json sorts map keys, so equal catalogs hash equally.
	data, err := json.Marshal(book)
	if err != nil {
		return "", fmt.Errorf("hash pricing: %w", err)
	}
	return fmt.Sprintf("%x", sha256.Sum256(data)), nil
}

func normalize(book *models.PricingBook) {
	if book.Providers == nil {
		book.Providers = map[string]models.ProviderPricing{}
	}
	if book.ProviderAliases == nil {
		book.ProviderAliases = map[string]string{}
	}
	for name, p := range book.Providers {
		if p.Models == nil {
			p.Models = map[string]models.ModelRate{}
		}
		if p.ModelAliases == nil {
			p.ModelAliases = map[string]string{}
		}
		book.Providers[name] = p
	}
}
