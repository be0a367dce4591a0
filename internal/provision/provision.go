// Package provision creates and inspects the AWS resources behind the
// maintenance assistant: IAM roles, the OpenSearch Serverless vector
// store, the Bedrock knowledge base and agent, and the Lambda fleet.
// Every operation is idempotent so a partially built stack can be
// re-run until it converges.
package provision

import (
	"github.com/fieldsight/maintkit/internal/awsx"
	"github.com/fieldsight/maintkit/internal/config"
	"github.com/fieldsight/maintkit/internal/logging"
)

// Provisioner drives resource creation against one account and region.
type Provisioner struct {
	aws *awsx.Clients
	cfg *config.Config
	log *logging.Logger
}

// New returns a Provisioner bound to the given clients and registry.
func New(aws *awsx.Clients, cfg *config.Config, log *logging.Logger) *Provisioner {
	return &Provisioner{
		aws: aws,
		cfg: cfg,
		log: log.Sub("provision"),
	}
}

// Config exposes the registry so callers can persist IDs written back
// by the ensure operations.
func (p *Provisioner) Config() *config.Config { return p.cfg }
