// Package probe checks the deployed assistant from the outside:
// credential and service reachability before provisioning, registry
// versus live drift afterwards, and smoke queries against the public
// endpoint.
package probe

import (
	"github.com/fieldsight/maintkit/internal/awsx"
	"github.com/fieldsight/maintkit/internal/config"
	"github.com/fieldsight/maintkit/internal/logging"
)

// Probe runs read-only checks against AWS and the deployed endpoint.
type Probe struct {
	aws *awsx.Clients
	cfg *config.Config
	log *logging.Logger
}

// New creates a Probe over the given clients and registry.
func New(aws *awsx.Clients, cfg *config.Config, log *logging.Logger) *Probe {
	return &Probe{aws: aws, cfg: cfg, log: log.Sub("probe")}
}

// CheckResult is one named check's outcome.
type CheckResult struct {
	Name   string
	Passed bool
	Detail string
}

// AllPassed reports whether results is non-empty and every check passed.
func AllPassed(results []CheckResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return len(results) > 0
}
