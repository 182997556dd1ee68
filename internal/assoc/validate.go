package assoc

import (
	"fmt"
	"sort"

	"github.com/geoffdutton/cfedge/internal/logging"
	"github.com/geoffdutton/cfedge/internal/model"
)

// Validate walks every function carrying an edge-binding annex and returns
// the pending-association list in sorted function-name order. Functions that
// will be edge-bound have their environment variables stripped from both the
// declaration and the template, since Lambda@Edge forbids them.
func Validate(svc *Service, log *logging.Logger) ([]model.PendingAssociation, error) {
	names := make([]string, 0, len(svc.Functions))
	for name := range svc.Functions {
		names = append(names, name)
	}
	sort.Strings(names)

	var pending []model.PendingAssociation
	for _, name := range names {
		fn := svc.Functions[name]
		if fn == nil || fn.LambdaAtEdge == nil {
			continue
		}

		assoc, err := validateOne(name, fn.LambdaAtEdge, svc.Template)
		if err != nil {
			return nil, err
		}

		stripEnvironment(name, fn, svc.Template, log)
		pending = append(pending, assoc)
	}

	return pending, nil
}

func validateOne(name string, edge *EdgeDecl, tmpl *Template) (model.PendingAssociation, error) {
	var zero model.PendingAssociation

	if !model.IsValidEventType(edge.EventType) {
		return zero, &ValidationError{
			Function: name,
			Reason:   ReasonInvalidEventType,
			Detail: fmt.Sprintf("%q is not a valid event type (viewer-request, origin-request, viewer-response, origin-response)",
				edge.EventType),
		}
	}

	switch {
	case edge.Distribution == "" && edge.DistributionID == "":
		return zero, &ValidationError{
			Function: name,
			Reason:   ReasonMissingDistributionRef,
			Detail:   "lambdaAtEdge requires a distribution resource name or a distributionId",
		}
	case edge.Distribution == "":
		// The logical name is the stable key for grouping and diffing, so a
		// raw ID on its own is not enough.
		return zero, &ValidationError{
			Function: name,
			Reason:   ReasonIncompleteDistributionRef,
			Detail:   fmt.Sprintf("distributionId %q given without a distribution resource name", edge.DistributionID),
		}
	}

	if res, ok := tmpl.Resources[edge.Distribution]; ok && res.Type != distributionResourceType {
		return zero, &ValidationError{
			Function: name,
			Reason:   ReasonWrongResourceType,
			Detail:   fmt.Sprintf("resource %q has type %q, want %s", edge.Distribution, res.Type, distributionResourceType),
		}
	}

	ref := model.ByName(edge.Distribution)
	if edge.DistributionID != "" {
		ref = model.ByID(edge.Distribution, edge.DistributionID)
	}

	return model.PendingAssociation{
		FunctionName:  name,
		Distribution:  ref,
		EventType:     model.EventType(edge.EventType),
		VersionOutput: VersionOutputName(name),
		IncludeBody:   edge.IncludeBody,
	}, nil
}

// stripEnvironment removes function-level environment variables from the
// declaration and from the function's template resource.
func stripEnvironment(name string, fn *FunctionDecl, tmpl *Template, log *logging.Logger) {
	removed := len(fn.Environment)
	fn.Environment = nil

	if res, ok := tmpl.Resources[functionResourceName(name)]; ok && res.Properties != nil {
		if env, ok := res.Properties["Environment"]; ok {
			if vars, ok := env.(map[string]any); ok {
				if inner, ok := vars["Variables"].(map[string]any); ok && removed == 0 {
					removed = len(inner)
				}
			}
			delete(res.Properties, "Environment")
		}
	}

	if removed > 0 {
		log.Warnf("Removed %d environment variable(s) from function %q: Lambda@Edge does not support environment variables",
			removed, name)
	}
}
