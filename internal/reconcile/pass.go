// Package reconcile drives a full reconciliation pass: validated declarations
// are resolved against the deployed stack and each distribution is converged
// to carry the declared Lambda@Edge associations.
package reconcile

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"

	"github.com/geoffdutton/cfedge/internal/cloud"
	"github.com/geoffdutton/cfedge/internal/logging"
	"github.com/geoffdutton/cfedge/internal/merge"
	"github.com/geoffdutton/cfedge/internal/model"
	"github.com/geoffdutton/cfedge/internal/wait"
)

// ConcurrencyError is CloudFront rejecting an update because the config was
// modified between our read and our write. Not retried here; the operator
// re-runs the pass, which is idempotent.
type ConcurrencyError struct {
	DistributionID string
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("distribution %s: config changed concurrently, update token was stale", e.DistributionID)
}

// DeploymentWaiter blocks until a distribution is Deployed.
type DeploymentWaiter interface {
	UntilDeployed(ctx context.Context, id, displayName string) (*cftypes.Distribution, error)
}

// Pass updates distributions one at a time. Updates are strictly sequential:
// CloudFront allows a single in-flight config mutation per distribution, and
// the multi-minute convergence windows make parallel request storms useless.
type Pass struct {
	cf     cloud.CloudFrontAPI
	waiter DeploymentWaiter
	log    *logging.Logger
}

func NewPass(cf cloud.CloudFrontAPI, waiter DeploymentWaiter, log *logging.Logger) *Pass {
	return &Pass{cf: cf, waiter: waiter, log: log}
}

// Run converges every distribution in state, in declaration order. The first
// failure aborts the pass; distributions already processed stay converged.
func (p *Pass) Run(ctx context.Context, state *model.DesiredState) error {
	for _, id := range state.DistributionIDs() {
		if err := p.updateDistribution(ctx, id, state.DisplayNames[id], state.Bindings[id]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pass) updateDistribution(ctx context.Context, id, displayName string, desired []model.DesiredBinding) error {
	out, err := p.cf.GetDistribution(ctx, &cloudfront.GetDistributionInput{Id: aws.String(id)})
	if err != nil {
		return fmt.Errorf("get distribution %s: %w", id, err)
	}
	if aws.ToString(out.Distribution.Status) != wait.StatusDeployed {
		if _, err := p.waiter.UntilDeployed(ctx, id, displayName); err != nil {
			return err
		}
	}

	// Fetch the config through the config endpoint: the update token it
	// returns is the one UpdateDistribution expects.
	cfgOut, err := p.cf.GetDistributionConfig(ctx, &cloudfront.GetDistributionConfigInput{Id: aws.String(id)})
	if err != nil {
		return fmt.Errorf("get distribution config %s: %w", id, err)
	}

	cfg := cfgOut.DistributionConfig
	if !merge.Apply(cfg, desired, p.log) {
		p.log.Infof("Distribution %s already has the declared Lambda@Edge associations", id)
		return nil
	}

	p.log.Infof("Updating distribution %s with changed Lambda@Edge associations", id)
	_, err = p.cf.UpdateDistribution(ctx, &cloudfront.UpdateDistributionInput{
		Id:                 aws.String(id),
		DistributionConfig: cfg,
		IfMatch:            cfgOut.ETag,
	})
	if err != nil {
		if cloud.IsPreconditionFailed(err) {
			return &ConcurrencyError{DistributionID: id}
		}
		return fmt.Errorf("update distribution %s: %w", id, err)
	}

	// The accepted update starts a new convergence; wait it out so the next
	// distribution never overlaps an in-flight deploy.
	if _, err := p.waiter.UntilDeployed(ctx, id, displayName); err != nil {
		return err
	}
	p.log.Infof("Distribution %s update complete", id)
	return nil
}
