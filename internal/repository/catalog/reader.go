// Package catalog reads raw SKU records from a catalog export.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/kailas-cloud/catalogindex/internal/domain"
)

// skuDTO is one entry of the catalog export.
type skuDTO struct {
	GUID        string            `json:"skuGuid"`
	Name        map[string]string `json:"skuName"`
	Description map[string]string `json:"skuDescription"`
	Channel     string            `json:"skuChannelNameCollection"`
}

type exportDTO struct {
	SKUs *[]skuDTO `json:"skus"`
}

// Options tune how records are read.
type Options struct {
	// Limit keeps only the first Limit records; 0 keeps all.
	Limit int
	// DefaultChannel is used when a SKU carries no channel name.
	DefaultChannel string
}

// ReadFile reads a catalog export, zstd-compressed when the name ends in ".zst".
func ReadFile(path string, opts Options) ([]domain.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("catalog %s not found: %w", path, domain.ErrInput)
		}
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer dec.Close()
		r = dec
	}
	return Decode(r, opts)
}

// Decode parses a {"skus": [...]} document into records.
func Decode(r io.Reader, opts Options) ([]domain.Record, error) {
	var export exportDTO
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("parse catalog: %v: %w", err, domain.ErrInput)
	}
	if export.SKUs == nil {
		return nil, fmt.Errorf("catalog has no \"skus\" array: %w", domain.ErrInput)
	}

	skus := *export.SKUs
	if opts.Limit > 0 && opts.Limit < len(skus) {
		skus = skus[:opts.Limit]
	}

	records := make([]domain.Record, len(skus))
	for i := range skus {
		records[i] = toRecord(&skus[i], opts.DefaultChannel)
	}
	return records, nil
}

func toRecord(s *skuDTO, defaultChannel string) domain.Record {
	channel := s.Channel
	if channel == "" {
		channel = defaultChannel
	}
	return domain.Record{
		GUID:    s.GUID,
		Channel: channel,
		Fields: map[domain.TextField]domain.LocalizedText{
			domain.FieldName:        localized(s.Name),
			domain.FieldDescription: localized(s.Description),
		},
	}
}

// localized keeps the supported locales only.
func localized(m map[string]string) domain.LocalizedText {
	out := make(domain.LocalizedText, len(domain.Locales))
	for _, loc := range domain.Locales {
		if v, ok := m[string(loc)]; ok {
			out[loc] = v
		}
	}
	return out
}
