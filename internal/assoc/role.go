package assoc

import (
	"github.com/geoffdutton/cfedge/internal/logging"
	"github.com/geoffdutton/cfedge/internal/model"
)

const edgePrincipal = "edgelambda.amazonaws.com"

// PatchExecutionRoles adds the Lambda@Edge service principal to the
// assume-role policy of every edge-bound function's execution role in the
// template. Roles that cannot be found or whose policy document has an
// unrecognized shape are warned about and left alone. Returns the number of
// roles patched.
func PatchExecutionRoles(svc *Service, pending []model.PendingAssociation, log *logging.Logger) int {
	patched := 0
	seen := map[string]bool{}

	for _, assoc := range pending {
		fn := svc.Functions[assoc.FunctionName]
		if fn == nil {
			continue
		}

		roleName := fn.Role
		if roleName == "" {
			roleName = defaultExecutionRole
		}
		if seen[roleName] {
			continue
		}
		seen[roleName] = true

		res, ok := svc.Template.Resources[roleName]
		if !ok || res.Type != roleResourceType {
			log.Warnf("Could not find an execution role for function %q; its role must allow %s to assume it",
				assoc.FunctionName, edgePrincipal)
			continue
		}

		if !addEdgePrincipal(res) {
			log.Warnf("Execution role for function %q was not updated: unrecognized assume role policy document",
				assoc.FunctionName)
			continue
		}
		patched++
	}

	return patched
}

// addEdgePrincipal walks the role's AssumeRolePolicyDocument and appends the
// edge principal to every statement that already trusts the Lambda service.
// Returns false if the document does not have the expected shape.
func addEdgePrincipal(res *Resource) bool {
	doc, ok := res.Properties["AssumeRolePolicyDocument"].(map[string]any)
	if !ok {
		return false
	}
	statements, ok := doc["Statement"].([]any)
	if !ok {
		return false
	}

	updated := false
	for _, raw := range statements {
		stmt, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		principal, ok := stmt["Principal"].(map[string]any)
		if !ok {
			continue
		}

		switch svc := principal["Service"].(type) {
		case string:
			if svc == edgePrincipal {
				updated = true
				continue
			}
			principal["Service"] = []any{svc, edgePrincipal}
			updated = true
		case []any:
			if containsString(svc, edgePrincipal) {
				updated = true
				continue
			}
			principal["Service"] = append(svc, edgePrincipal)
			updated = true
		}
	}

	return updated
}

func containsString(values []any, want string) bool {
	for _, v := range values {
		if s, ok := v.(string); ok && s == want {
			return true
		}
	}
	return false
}
