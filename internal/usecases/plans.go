package usecases

import (
	"fmt"
	"sort"

	"golang.org/x/exp/maps"
)

// Plan is a selectable label and the account it pays into.
type Plan struct {
	Label   string `json:"label"`
	Address string `json:"address"`
}

// PlanCatalog is the immutable table of plan labels to recipient addresses.
type PlanCatalog struct {
	plans map[string]string
}

// NewPlanCatalog copies table and checks every address.
func NewPlanCatalog(table map[string]string) (*PlanCatalog, error) {
	plans := make(map[string]string, len(table))
	for label, address := range table {
		if label == "" {
			return nil, fmt.Errorf("plan label cannot be empty")
		}
		if !ValidateAddress(address) {
			return nil, fmt.Errorf("plan %q has invalid address %q", label, address)
		}
		plans[label] = address
	}

	return &PlanCatalog{plans: plans}, nil
}

// Lookup returns the recipient address for label.
func (c *PlanCatalog) Lookup(label string) (string, bool) {
	address, ok := c.plans[label]
	return address, ok
}

// Plans lists the catalog sorted by label.
func (c *PlanCatalog) Plans() []Plan {
	labels := maps.Keys(c.plans)
	sort.Strings(labels)

	out := make([]Plan, 0, len(labels))
	for _, label := range labels {
		out = append(out, Plan{Label: label, Address: c.plans[label]})
	}
	return out
}
