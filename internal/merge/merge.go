// Package merge applies desired Lambda@Edge bindings to a distribution
// configuration. The merge is additive and overwriting per event type:
// bindings for event types outside the desired set are never touched.
package merge

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"

	"github.com/geoffdutton/cfedge/internal/logging"
	"github.com/geoffdutton/cfedge/internal/model"
)

// Apply mutates cfg in place so the default behavior and every additional
// behavior carry the desired bindings, and reports whether anything changed.
func Apply(cfg *cftypes.DistributionConfig, desired []model.DesiredBinding, log *logging.Logger) bool {
	if len(desired) == 0 {
		return false
	}

	changed := false
	if cfg.DefaultCacheBehavior != nil {
		assocs, c := mergeBehavior(cfg.DefaultCacheBehavior.LambdaFunctionAssociations, desired, log)
		cfg.DefaultCacheBehavior.LambdaFunctionAssociations = assocs
		changed = changed || c
	}
	if cfg.CacheBehaviors != nil {
		for i := range cfg.CacheBehaviors.Items {
			behavior := &cfg.CacheBehaviors.Items[i]
			assocs, c := mergeBehavior(behavior.LambdaFunctionAssociations, desired, log)
			behavior.LambdaFunctionAssociations = assocs
			changed = changed || c
		}
	}
	return changed
}

func mergeBehavior(assocs *cftypes.LambdaFunctionAssociations, desired []model.DesiredBinding, log *logging.Logger) (*cftypes.LambdaFunctionAssociations, bool) {
	if assocs == nil {
		assocs = &cftypes.LambdaFunctionAssociations{Quantity: aws.Int32(0)}
	}

	changed := false
	for _, d := range desired {
		idx := indexOfEvent(assocs.Items, d.EventType.CloudFront())
		if idx < 0 {
			assocs.Items = append(assocs.Items, cftypes.LambdaFunctionAssociation{
				EventType:         d.EventType.CloudFront(),
				LambdaFunctionARN: aws.String(d.FunctionARN),
				IncludeBody:       aws.Bool(d.IncludeBody),
			})
			log.Infof("Adding %s Lambda@Edge association for %s", d.EventType, d.FunctionARN)
			changed = true
			continue
		}

		existing := &assocs.Items[idx]
		if aws.ToString(existing.LambdaFunctionARN) == d.FunctionARN &&
			aws.ToBool(existing.IncludeBody) == d.IncludeBody {
			continue
		}
		// Overwrite in place; the binding keeps its position in the list.
		existing.LambdaFunctionARN = aws.String(d.FunctionARN)
		existing.IncludeBody = aws.Bool(d.IncludeBody)
		log.Infof("Updating %s Lambda@Edge association to %s", d.EventType, d.FunctionARN)
		changed = true
	}

	if changed {
		assocs.Quantity = aws.Int32(int32(len(assocs.Items)))
	}
	return assocs, changed
}

func indexOfEvent(items []cftypes.LambdaFunctionAssociation, event cftypes.EventType) int {
	for i := range items {
		if items[i].EventType == event {
			return i
		}
	}
	return -1
}
