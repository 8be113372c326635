package partition

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fraudlake/fraudlake/internal/bloom"
	"github.com/fraudlake/fraudlake/pkg/types"
)

// MetadataSidecar is the .meta.json file shipped next to each segment.
// It carries the stats and bloom filters the pruner needs without opening
// the segment itself.
type MetadataSidecar struct {
	SegmentID     string                      `json:"segment_id"`
	PartitionKey  types.PartitionKey          `json:"partition_key"`
	Layout        types.Layout                `json:"layout"`
	SchemaVersion int                         `json:"schema_version"`
	Stats         SegmentStats                `json:"stats"`
	BloomFilters  map[string]*BloomFilterMeta `json:"bloom_filters"`
	CreatedAt     int64                       `json:"created_at"`
}

// SegmentStats holds segment-level statistics.
type SegmentStats struct {
	RowCount   int64    `json:"row_count"`
	FraudCount int64    `json:"fraud_count"`
	SizeBytes  int64    `json:"size_bytes"`
	MinTxID    *int64   `json:"min_tx_id,omitempty"`
	MaxTxID    *int64   `json:"max_tx_id,omitempty"`
	MinStep    *int64   `json:"min_step,omitempty"`
	MaxStep    *int64   `json:"max_step,omitempty"`
	MinAmount  *float64 `json:"min_amount,omitempty"`
	MaxAmount  *float64 `json:"max_amount,omitempty"`
}

// BloomFilterMeta holds serialized bloom filter data for one column.
type BloomFilterMeta struct {
	Algorithm  string `json:"algorithm"`
	NumBits    int    `json:"num_bits"`
	NumHashes  int    `json:"num_hashes"`
	Base64Data string `json:"base64_data"`
}

// MetadataGenerator generates metadata sidecars for segments.
type MetadataGenerator struct {
	targetFPR float64
}

// NewMetadataGenerator creates a generator with a 1% bloom filter
// false positive target.
func NewMetadataGenerator() *MetadataGenerator {
	return &MetadataGenerator{targetFPR: 0.01}
}

// Generate creates a metadata sidecar for the given segment and its rows.
func (g *MetadataGenerator) Generate(info *SegmentInfo, txs []types.Transaction) (*MetadataSidecar, error) {
	filters, err := g.buildBloomFilters(txs)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to build bloom filters: %w", err)
	}

	stats := SegmentStats{
		RowCount:   info.RowCount,
		FraudCount: info.FraudCount,
		SizeBytes:  info.SizeBytes,
	}
	if mm, ok := info.MinMaxStats["tx_id"]; ok {
		stats.MinTxID = int64Ptr(mm.Min)
		stats.MaxTxID = int64Ptr(mm.Max)
	}
	if mm, ok := info.MinMaxStats["step"]; ok {
		stats.MinStep = int64Ptr(mm.Min)
		stats.MaxStep = int64Ptr(mm.Max)
	}
	if mm, ok := info.MinMaxStats["amount"]; ok {
		stats.MinAmount = float64Ptr(mm.Min)
		stats.MaxAmount = float64Ptr(mm.Max)
	}

	return &MetadataSidecar{
		SegmentID:     info.SegmentID,
		PartitionKey:  info.PartitionKey,
		Layout:        info.Layout,
		SchemaVersion: info.SchemaVersion,
		Stats:         stats,
		BloomFilters:  filters,
		CreatedAt:     info.CreatedAt.Unix(),
	}, nil
}

// buildBloomFilters creates bloom filters for the account name columns.
// Equality predicates on either account side can then prune segments
// without downloading them.
func (g *MetadataGenerator) buildBloomFilters(txs []types.Transaction) (map[string]*BloomFilterMeta, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	origFilter := bloom.NewWithEstimates(len(txs), g.targetFPR)
	destFilter := bloom.NewWithEstimates(len(txs), g.targetFPR)
	for _, tx := range txs {
		origFilter.Add([]byte(tx.NameOrig))
		destFilter.Add([]byte(tx.NameDest))
	}

	return map[string]*BloomFilterMeta{
		"name_orig": serializeBloomFilter(origFilter),
		"name_dest": serializeBloomFilter(destFilter),
	}, nil
}

// serializeBloomFilter converts a bloom filter to its sidecar form.
func serializeBloomFilter(f *bloom.Filter) *BloomFilterMeta {
	return &BloomFilterMeta{
		Algorithm:  "murmur3_128",
		NumBits:    f.NumBits(),
		NumHashes:  f.NumHashes(),
		Base64Data: f.EncodeBase64(),
	}
}

// Filter decodes the bloom filter for a column, or nil if absent.
func (s *MetadataSidecar) Filter(column string) (*bloom.Filter, error) {
	meta, ok := s.BloomFilters[column]
	if !ok {
		return nil, nil
	}
	return bloom.DecodeBase64(meta.Base64Data)
}

// WriteToFile writes the metadata sidecar to a JSON file.
func (s *MetadataSidecar) WriteToFile(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("metadata: failed to marshal sidecar: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("metadata: failed to write sidecar file: %w", err)
	}
	return nil
}

// ReadMetadataFromFile reads a metadata sidecar from a JSON file.
func ReadMetadataFromFile(path string) (*MetadataSidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to read sidecar file: %w", err)
	}
	return FromJSON(data)
}

// FromJSON deserializes a metadata sidecar from JSON bytes.
func FromJSON(data []byte) (*MetadataSidecar, error) {
	var sidecar MetadataSidecar
	if err := json.Unmarshal(data, &sidecar); err != nil {
		return nil, fmt.Errorf("metadata: failed to unmarshal sidecar: %w", err)
	}
	return &sidecar, nil
}

// MetadataPath returns the sidecar path for a given segment SQLite path.
func MetadataPath(sqlitePath string) string {
	dir := filepath.Dir(sqlitePath)
	base := filepath.Base(sqlitePath)
	ext := filepath.Ext(base)
	return filepath.Join(dir, base[:len(base)-len(ext)]+".meta.json")
}

// GenerateAndWrite generates metadata and writes it next to the segment.
func (g *MetadataGenerator) GenerateAndWrite(info *SegmentInfo, txs []types.Transaction) (string, error) {
	sidecar, err := g.Generate(info, txs)
	if err != nil {
		return "", err
	}

	metadataPath := MetadataPath(info.SQLitePath)
	if err := sidecar.WriteToFile(metadataPath); err != nil {
		return "", err
	}
	return metadataPath, nil
}

// CreatedAtTime returns the creation time as time.Time.
func (s *MetadataSidecar) CreatedAtTime() time.Time {
	return time.Unix(s.CreatedAt, 0)
}

func int64Ptr(v interface{}) *int64 {
	if i, ok := v.(int64); ok {
		return &i
	}
	return nil
}

func float64Ptr(v interface{}) *float64 {
	if f, ok := v.(float64); ok {
		return &f
	}
	return nil
}
