// Package partition provides functionality for creating and managing SQLite
// partition segments of the transactions table.
package partition

import (
	"fmt"

	"github.com/fraudlake/fraudlake/pkg/types"
	"github.com/spaolacci/murmur3"
)

// Router assigns rows to partition segments according to the table layout.
type Router struct {
	config types.LayoutConfig
}

// NewRouter creates a router for the given layout configuration.
func NewRouter(config types.LayoutConfig) (*Router, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("routing: %w", err)
	}
	return &Router{config: config}, nil
}

// Layout returns the layout this router builds.
func (r *Router) Layout() types.Layout {
	return r.config.Layout
}

// RouteRow computes the partition key for a single transaction.
// Typed layout: the key is the transaction type, and the bucket is the
// murmur3 hash of the origin account modulo the bucket count. Flat layout:
// everything lands in a single segment.
func (r *Router) RouteRow(tx types.Transaction) (types.PartitionKey, error) {
	switch r.config.Layout {
	case types.LayoutFlat:
		return types.PartitionKey{Value: types.FlatKey, Bucket: 0}, nil

	case types.LayoutTyped:
		if tx.Type == "" {
			return types.PartitionKey{}, fmt.Errorf("routing: tx_type must not be empty for typed layout")
		}
		return types.PartitionKey{
			Value:  tx.Type,
			Bucket: bucketFor(tx.NameOrig, r.config.Buckets),
		}, nil

	default:
		return types.PartitionKey{}, fmt.Errorf("routing: unsupported layout %q", r.config.Layout)
	}
}

// RouteRows groups transactions by their computed partition key.
func (r *Router) RouteRows(txs []types.Transaction) (map[types.PartitionKey][]types.Transaction, error) {
	groups := make(map[types.PartitionKey][]types.Transaction)
	for _, tx := range txs {
		key, err := r.RouteRow(tx)
		if err != nil {
			return nil, fmt.Errorf("routing: failed to route tx %d: %w", tx.TxID, err)
		}
		groups[key] = append(groups[key], tx)
	}
	return groups, nil
}

// bucketFor hashes an account name into one of n buckets.
func bucketFor(account string, n int) int {
	h := murmur3.Sum64([]byte(account))
	return int(h % uint64(n))
}
