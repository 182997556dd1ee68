// Package wait blocks until a CloudFront distribution reaches its Deployed
// state, deduplicating waits that are already in flight for the same ID.
package wait

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"

	"github.com/geoffdutton/cfedge/internal/cloud"
	"github.com/geoffdutton/cfedge/internal/logging"
)

// StatusDeployed is the stable terminal state of a distribution.
const StatusDeployed = "Deployed"

// Waiter polls distributions until they converge. The in-flight registry is
// scoped to the Waiter, which lives for one reconciliation pass; an ID is
// removed from it as soon as its wait settles, so only truly concurrent waits
// on the same ID dedup.
type Waiter struct {
	cf               cloud.CloudFrontAPI
	log              *logging.Logger
	pollInterval     time.Duration
	progressInterval time.Duration

	mu       sync.Mutex
	inFlight map[string]bool
}

func New(cf cloud.CloudFrontAPI, log *logging.Logger, pollInterval, progressInterval time.Duration) *Waiter {
	return &Waiter{
		cf:               cf,
		log:              log,
		pollInterval:     pollInterval,
		progressInterval: progressInterval,
		inFlight:         make(map[string]bool),
	}
}

// UntilDeployed blocks until the distribution reports Deployed and returns
// its final state. If a wait for id is already in flight it returns
// (nil, nil) immediately without polling; a caller that needs the terminal
// state must re-fetch it. No local timeout is imposed: a distribution that
// never converges is a backend fault and ctx is the only way out.
func (w *Waiter) UntilDeployed(ctx context.Context, id, displayName string) (*cftypes.Distribution, error) {
	if !w.begin(id) {
		return nil, nil
	}
	defer w.settle(id)

	w.log.Infof("Waiting for CloudFront distribution %s (%s) to reach Deployed state. This can take 15 minutes or longer.",
		id, displayName)

	poll := time.NewTicker(w.pollInterval)
	defer poll.Stop()
	progress := time.NewTicker(w.progressInterval)
	defer progress.Stop()

	for {
		dist, err := w.fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		if aws.ToString(dist.Status) == StatusDeployed {
			w.log.Infof("Distribution %s is now in state %q", id, aws.ToString(dist.Status))
			return dist, nil
		}

		for pending := true; pending; {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-progress.C:
				w.log.Progress(".")
			case <-poll.C:
				pending = false
			}
		}
	}
}

func (w *Waiter) fetch(ctx context.Context, id string) (*cftypes.Distribution, error) {
	out, err := w.cf.GetDistribution(ctx, &cloudfront.GetDistributionInput{Id: aws.String(id)})
	if err != nil {
		return nil, fmt.Errorf("get distribution %s: %w", id, err)
	}
	return out.Distribution, nil
}

func (w *Waiter) begin(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inFlight[id] {
		return false
	}
	w.inFlight[id] = true
	return true
}

func (w *Waiter) settle(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inFlight, id)
}
