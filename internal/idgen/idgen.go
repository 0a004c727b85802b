// Package idgen mints opaque ids for entities, relationships, and vector
// points, the way the teacher's Client keeps a snowflakeNode for memory
// ids in pkg/core/memory.go.
package idgen

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	mu   sync.Mutex
	node *snowflake.Node
)

// Init sets the snowflake node id used by New. Call once at startup;
// safe to call multiple times with the same id. nodeID must be in
// [0, 1023].
func Init(nodeID int64) error {
	mu.Lock()
	defer mu.Unlock()
	if node != nil {
		return nil
	}
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return fmt.Errorf("idgen: init node %d: %w", nodeID, err)
	}
	node = n
	return nil
}

// New returns a new opaque id, formatted as base32 so it reads as an
// opaque token rather than a sortable integer. Lazily initializes node
// 0 if Init was never called, matching the teacher's default-node
// behavior in NewClient.
func New() string {
	mu.Lock()
	n := node
	mu.Unlock()
	if n == nil {
		if err := Init(0); err != nil {
			panic(err)
		}
		mu.Lock()
		n = node
		mu.Unlock()
	}
	return n.Generate().Base32()
}
