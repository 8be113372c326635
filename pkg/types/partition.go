package types

import "fmt"

// PartitionColumn is the column used as the typed-layout partition key.
const PartitionColumn = "tx_type"

// BucketColumn is the column hashed to assign bucket files within a partition.
const BucketColumn = "name_orig"

// Layout selects the physical layout of the transactions table.
type Layout string

const (
	// LayoutFlat stores all rows under a single partition key with
	// tx_type as an ordinary column.
	LayoutFlat Layout = "flat"

	// LayoutTyped partitions rows by tx_type and buckets them by a hash
	// of the origin account. tx_type is not stored inside segments.
	LayoutTyped Layout = "typed"
)

// FlatKey is the partition key value used by the flat layout.
const FlatKey = "all"

// PartitionKey identifies the partition a row belongs to.
type PartitionKey struct {
	// Value is the partition discriminator: a tx_type for the typed
	// layout, FlatKey for the flat layout
	Value string `json:"value"`

	// Bucket is the bucket index within the partition (0 for flat layout)
	Bucket int `json:"bucket"`
}

// Segment returns the segment name for this key, e.g. "TRANSFER/b003".
func (k PartitionKey) Segment() string {
	return fmt.Sprintf("%s/b%03d", k.Value, k.Bucket)
}

// LayoutConfig holds layout configuration for a table build.
type LayoutConfig struct {
	// Layout is the physical layout to build
	Layout Layout `json:"layout" yaml:"layout"`

	// Buckets is the number of bucket files per partition for the typed
	// layout (ignored for flat)
	Buckets int `json:"buckets" yaml:"buckets"`
}

// Validate checks that the layout configuration is usable.
func (c LayoutConfig) Validate() error {
	switch c.Layout {
	case LayoutFlat:
	case LayoutTyped:
		if c.Buckets <= 0 {
			return fmt.Errorf("layout: buckets must be > 0 for typed layout, got %d", c.Buckets)
		}
	default:
		return fmt.Errorf("layout: unsupported layout %q", c.Layout)
	}
	return nil
}
