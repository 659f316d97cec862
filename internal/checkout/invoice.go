package checkout

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// InvoiceNumberer issues collision-free invoice numbers of the form INV-<year>-<id>.
type InvoiceNumberer struct {
	node *snowflake.Node
}

// NewInvoiceNumberer builds a numberer for the given snowflake node (0-1023).
// Each running process needs its own node id.
func NewInvoiceNumberer(nodeID int64) (*InvoiceNumberer, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("checkout: snowflake node: %w", err)
	}
	return &InvoiceNumberer{node: node}, nil
}

// Next returns a fresh invoice number stamped with the year of at.
func (n *InvoiceNumberer) Next(at time.Time) string {
	return fmt.Sprintf("INV-%d-%s", at.Year(), n.node.Generate().String())
}
