package assoc

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoffdutton/cfedge/internal/logging"
	"github.com/geoffdutton/cfedge/internal/model"
)

func testLogger() (*logging.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logging.New(&buf, logging.LevelDebug), &buf
}

func serviceWith(fns map[string]*FunctionDecl, resources map[string]*Resource) *Service {
	if resources == nil {
		resources = map[string]*Resource{}
	}
	return &Service{
		Service:   "test-service",
		Functions: fns,
		Template:  &Template{Resources: resources},
	}
}

func edgeFunction(distribution, eventType string) *FunctionDecl {
	return &FunctionDecl{
		Handler: "src/handler.main",
		LambdaAtEdge: &EdgeDecl{
			Distribution: distribution,
			EventType:    eventType,
		},
	}
}

func TestValidateAllEventTypes(t *testing.T) {
	for _, eventType := range []string{"viewer-request", "origin-request", "viewer-response", "origin-response"} {
		t.Run(eventType, func(t *testing.T) {
			log, _ := testLogger()
			svc := serviceWith(map[string]*FunctionDecl{
				"edge-fn": edgeFunction("WebsiteDistribution", eventType),
			}, nil)

			pending, err := Validate(svc, log)
			require.NoError(t, err)
			require.Len(t, pending, 1)
			assert.Equal(t, model.EventType(eventType), pending[0].EventType)
			assert.Equal(t, "EdgeFnLambdaFunctionQualifiedArn", pending[0].VersionOutput)
		})
	}
}

func TestValidateInvalidEventType(t *testing.T) {
	log, _ := testLogger()
	svc := serviceWith(map[string]*FunctionDecl{
		"edge-fn": edgeFunction("WebsiteDistribution", "viewer_request"),
	}, nil)

	_, err := Validate(svc, log)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonInvalidEventType, verr.Reason)
	assert.Contains(t, verr.Detail, "viewer_request")
}

func TestValidateMissingDistributionRef(t *testing.T) {
	log, _ := testLogger()
	svc := serviceWith(map[string]*FunctionDecl{
		"edge-fn": {
			Handler:      "src/handler.main",
			LambdaAtEdge: &EdgeDecl{EventType: "viewer-request"},
		},
	}, nil)

	_, err := Validate(svc, log)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonMissingDistributionRef, verr.Reason)
}

func TestValidateIncompleteDistributionRef(t *testing.T) {
	log, _ := testLogger()
	svc := serviceWith(map[string]*FunctionDecl{
		"edge-fn": {
			Handler: "src/handler.main",
			LambdaAtEdge: &EdgeDecl{
				DistributionID: "E1A2B3C4D5E6F7",
				EventType:      "viewer-request",
			},
		},
	}, nil)

	_, err := Validate(svc, log)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonIncompleteDistributionRef, verr.Reason)
}

func TestValidateWrongResourceType(t *testing.T) {
	log, _ := testLogger()
	svc := serviceWith(map[string]*FunctionDecl{
		"edge-fn": edgeFunction("WebsiteBucket", "viewer-request"),
	}, map[string]*Resource{
		"WebsiteBucket": {Type: "AWS::S3::Bucket"},
	})

	_, err := Validate(svc, log)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonWrongResourceType, verr.Reason)
	assert.Contains(t, verr.Detail, "AWS::S3::Bucket")
}

func TestValidateRefVariants(t *testing.T) {
	log, _ := testLogger()
	svc := serviceWith(map[string]*FunctionDecl{
		"by-name": edgeFunction("WebsiteDistribution", "viewer-request"),
		"by-id": {
			Handler: "src/handler.main",
			LambdaAtEdge: &EdgeDecl{
				Distribution:   "ExternalDistribution",
				DistributionID: "E1A2B3C4D5E6F7",
				EventType:      "origin-request",
			},
		},
	}, nil)

	pending, err := Validate(svc, log)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	// Sorted function-name order: by-id before by-name.
	assert.Equal(t, model.RefByID, pending[0].Distribution.Kind)
	assert.Equal(t, "E1A2B3C4D5E6F7", pending[0].Distribution.ID)
	assert.Equal(t, model.RefByName, pending[1].Distribution.Kind)
	assert.Equal(t, "WebsiteDistribution", pending[1].Distribution.Name)
}

func TestValidateSkipsFunctionsWithoutAnnex(t *testing.T) {
	log, _ := testLogger()
	svc := serviceWith(map[string]*FunctionDecl{
		"plain-fn": {Handler: "src/plain.main"},
	}, nil)

	pending, err := Validate(svc, log)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestValidateStripsEnvironment(t *testing.T) {
	log, buf := testLogger()
	fn := edgeFunction("WebsiteDistribution", "viewer-request")
	fn.Environment = map[string]string{"TABLE": "users", "STAGE": "prod"}

	svc := serviceWith(map[string]*FunctionDecl{"edge-fn": fn}, map[string]*Resource{
		"EdgeFnLambdaFunction": {
			Type: "AWS::Lambda::Function",
			Properties: map[string]any{
				"Environment": map[string]any{
					"Variables": map[string]any{"TABLE": "users", "STAGE": "prod"},
				},
			},
		},
	})

	_, err := Validate(svc, log)
	require.NoError(t, err)

	assert.Nil(t, fn.Environment)
	_, hasEnv := svc.Template.Resources["EdgeFnLambdaFunction"].Properties["Environment"]
	assert.False(t, hasEnv, "template Environment block should be removed")
	assert.Contains(t, buf.String(), `Removed 2 environment variable(s) from function "edge-fn"`)
}

func TestVersionOutputName(t *testing.T) {
	tests := []struct {
		fn   string
		want string
	}{
		{"directoryOrigin", "DirectoryOriginLambdaFunctionQualifiedArn"},
		{"directory-origin", "DirectoryOriginLambdaFunctionQualifiedArn"},
		{"edge_fn2", "EdgeFn2LambdaFunctionQualifiedArn"},
	}
	for _, tt := range tests {
		if got := VersionOutputName(tt.fn); got != tt.want {
			t.Errorf("VersionOutputName(%q) = %q, want %q", tt.fn, got, tt.want)
		}
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := error(&ValidationError{Function: "edge-fn", Reason: ReasonInvalidEventType, Detail: "bad value"})
	assert.Contains(t, err.Error(), "edge-fn")
	assert.Contains(t, err.Error(), "invalid-event-type")
	assert.False(t, errors.Is(err, errors.New("other")))
}
