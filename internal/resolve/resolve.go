// Package resolve turns pending associations into concrete distribution IDs
// and function version ARNs by introspecting the deployed stack.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"

	"github.com/geoffdutton/cfedge/internal/cloud"
	"github.com/geoffdutton/cfedge/internal/model"
)

var (
	ErrStackNotFound    = errors.New("stack not found")
	ErrOutputNotFound   = errors.New("stack output not found")
	ErrResourceNotFound = errors.New("stack resource not found")
)

// Resolver looks up stack outputs and stack resources. Both lookups run at
// most once per Resolver; construct one per reconciliation pass.
type Resolver struct {
	cfn       cloud.CloudFormationAPI
	stackName string

	outputs   map[string]string
	resources map[string]string
}

func New(cfn cloud.CloudFormationAPI, stackName string) *Resolver {
	return &Resolver{cfn: cfn, stackName: stackName}
}

// Resolve maps every pending association to its function version ARN and
// distribution ID, grouped per distribution in declaration order. The
// stack-resource lookup is skipped entirely when every association already
// carries a concrete distribution ID.
func (r *Resolver) Resolve(ctx context.Context, pending []model.PendingAssociation) (*model.DesiredState, error) {
	outputs, err := r.stackOutputs(ctx)
	if err != nil {
		return nil, err
	}

	needLookup := false
	for _, assoc := range pending {
		if assoc.Distribution.Kind == model.RefByName {
			needLookup = true
			break
		}
	}

	var resources map[string]string
	if needLookup {
		resources, err = r.stackResources(ctx)
		if err != nil {
			return nil, err
		}
	}

	state := model.NewDesiredState()
	for _, assoc := range pending {
		arn, ok := outputs[assoc.VersionOutput]
		if !ok {
			return nil, fmt.Errorf("function %q: output %q not found on stack %s (was the function deployed with version pinning?): %w",
				assoc.FunctionName, assoc.VersionOutput, r.stackName, ErrOutputNotFound)
		}

		var id string
		switch assoc.Distribution.Kind {
		case model.RefByID:
			id = assoc.Distribution.ID
		case model.RefByName:
			id, ok = resources[assoc.Distribution.Name]
			if !ok {
				return nil, fmt.Errorf("resource %q not found on stack %s: %w",
					assoc.Distribution.Name, r.stackName, ErrResourceNotFound)
			}
		}

		state.Add(id, assoc.Distribution.Name, model.DesiredBinding{
			EventType:   assoc.EventType,
			FunctionARN: arn,
			IncludeBody: assoc.IncludeBody,
		})
		state.ByFunction[assoc.FunctionName] = model.ResolvedDistribution{ID: id, Ref: assoc.Distribution}
	}

	return state, nil
}

func (r *Resolver) stackOutputs(ctx context.Context) (map[string]string, error) {
	if r.outputs != nil {
		return r.outputs, nil
	}

	out, err := r.cfn.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(r.stackName),
	})
	if err != nil {
		if cloud.IsStackNotFound(err) {
			return nil, fmt.Errorf("stack %s: %w", r.stackName, ErrStackNotFound)
		}
		return nil, fmt.Errorf("describe stack %s: %w", r.stackName, err)
	}
	if len(out.Stacks) == 0 {
		return nil, fmt.Errorf("stack %s: %w", r.stackName, ErrStackNotFound)
	}

	r.outputs = make(map[string]string)
	for _, o := range out.Stacks[0].Outputs {
		if o.OutputKey != nil && o.OutputValue != nil {
			r.outputs[*o.OutputKey] = *o.OutputValue
		}
	}
	return r.outputs, nil
}

func (r *Resolver) stackResources(ctx context.Context) (map[string]string, error) {
	if r.resources != nil {
		return r.resources, nil
	}

	out, err := r.cfn.DescribeStackResources(ctx, &cloudformation.DescribeStackResourcesInput{
		StackName: aws.String(r.stackName),
	})
	if err != nil {
		return nil, fmt.Errorf("describe stack resources %s: %w", r.stackName, err)
	}

	r.resources = make(map[string]string)
	for _, res := range out.StackResources {
		if res.LogicalResourceId != nil && res.PhysicalResourceId != nil {
			r.resources[*res.LogicalResourceId] = *res.PhysicalResourceId
		}
	}
	return r.resources, nil
}
