package reconcile

import (
	"context"
	"time"

	"github.com/geoffdutton/cfedge/internal/assoc"
	"github.com/geoffdutton/cfedge/internal/cloud"
	"github.com/geoffdutton/cfedge/internal/logging"
	"github.com/geoffdutton/cfedge/internal/model"
	"github.com/geoffdutton/cfedge/internal/resolve"
	"github.com/geoffdutton/cfedge/internal/wait"
)

// Reconciler loads the declarations and runs full passes against the live
// distributions. Clients are constructed once by the caller and injected.
type Reconciler struct {
	clients *cloud.Clients
	cfg     model.Config
	log     *logging.Logger
}

func NewReconciler(clients *cloud.Clients, cfg model.Config, log *logging.Logger) *Reconciler {
	return &Reconciler{clients: clients, cfg: cfg, log: log}
}

// Reconcile runs one pass: validate, resolve, then converge each
// distribution. Safe to re-run at any time; already-applied bindings are
// detected as no-ops.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	svc, err := assoc.LoadService(r.cfg.Project.ServiceFile)
	if err != nil {
		return err
	}

	pending, err := assoc.Validate(svc, r.log)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		r.log.Infof("No Lambda@Edge associations declared, nothing to reconcile")
		return nil
	}
	assoc.PatchExecutionRoles(svc, pending, r.log)

	resolver := resolve.New(r.clients.CloudFormation, r.cfg.Stack.Name)
	state, err := resolver.Resolve(ctx, pending)
	if err != nil {
		return err
	}

	waiter := wait.New(
		r.clients.CloudFront,
		r.log,
		time.Duration(r.cfg.Waiter.PollIntervalSec)*time.Second,
		time.Duration(r.cfg.Waiter.ProgressIntervalSec)*time.Second,
	)
	return NewPass(r.clients.CloudFront, waiter, r.log).Run(ctx, state)
}
