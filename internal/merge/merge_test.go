package merge

import (
	"bytes"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoffdutton/cfedge/internal/logging"
	"github.com/geoffdutton/cfedge/internal/model"
)

func testLogger() (*logging.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logging.New(&buf, logging.LevelDebug), &buf
}

func association(event cftypes.EventType, arn string) cftypes.LambdaFunctionAssociation {
	return cftypes.LambdaFunctionAssociation{
		EventType:         event,
		LambdaFunctionARN: aws.String(arn),
	}
}

func configWithDefault(items ...cftypes.LambdaFunctionAssociation) *cftypes.DistributionConfig {
	return &cftypes.DistributionConfig{
		DefaultCacheBehavior: &cftypes.DefaultCacheBehavior{
			LambdaFunctionAssociations: &cftypes.LambdaFunctionAssociations{
				Quantity: aws.Int32(int32(len(items))),
				Items:    items,
			},
		},
	}
}

func defaultItems(cfg *cftypes.DistributionConfig) []cftypes.LambdaFunctionAssociation {
	return cfg.DefaultCacheBehavior.LambdaFunctionAssociations.Items
}

func TestApplyAppendsMissingBinding(t *testing.T) {
	log, buf := testLogger()
	cfg := configWithDefault(
		association(cftypes.EventTypeOriginResponse, "old-fn2"),
		association(cftypes.EventTypeViewerResponse, "fn3"),
	)
	desired := []model.DesiredBinding{{EventType: model.EventViewerRequest, FunctionARN: "fn1"}}

	changed := Apply(cfg, desired, log)

	require.True(t, changed)
	items := defaultItems(cfg)
	require.Len(t, items, 3)
	assert.Equal(t, cftypes.EventTypeOriginResponse, items[0].EventType)
	assert.Equal(t, "old-fn2", aws.ToString(items[0].LambdaFunctionARN))
	assert.Equal(t, cftypes.EventTypeViewerResponse, items[1].EventType)
	assert.Equal(t, "fn3", aws.ToString(items[1].LambdaFunctionARN))
	assert.Equal(t, cftypes.EventTypeViewerRequest, items[2].EventType)
	assert.Equal(t, "fn1", aws.ToString(items[2].LambdaFunctionARN))
	assert.Equal(t, int32(3), aws.ToInt32(cfg.DefaultCacheBehavior.LambdaFunctionAssociations.Quantity))
	assert.Contains(t, buf.String(), "Adding viewer-request Lambda@Edge association for fn1")
}

func TestApplyNoChangeWhenBindingMatches(t *testing.T) {
	log, _ := testLogger()
	cfg := configWithDefault(association(cftypes.EventTypeOriginResponse, "fn2"))
	desired := []model.DesiredBinding{{EventType: model.EventOriginResponse, FunctionARN: "fn2"}}

	changed := Apply(cfg, desired, log)

	assert.False(t, changed)
	items := defaultItems(cfg)
	require.Len(t, items, 1)
	assert.Equal(t, "fn2", aws.ToString(items[0].LambdaFunctionARN))
}

func TestApplyOverwritesInPlace(t *testing.T) {
	log, buf := testLogger()
	cfg := configWithDefault(
		association(cftypes.EventTypeViewerRequest, "fn1:1"),
		association(cftypes.EventTypeOriginResponse, "fn2:7"),
	)
	desired := []model.DesiredBinding{{EventType: model.EventViewerRequest, FunctionARN: "fn1:2"}}

	changed := Apply(cfg, desired, log)

	require.True(t, changed)
	items := defaultItems(cfg)
	require.Len(t, items, 2)
	// The updated binding keeps its position.
	assert.Equal(t, cftypes.EventTypeViewerRequest, items[0].EventType)
	assert.Equal(t, "fn1:2", aws.ToString(items[0].LambdaFunctionARN))
	assert.Contains(t, buf.String(), "Updating viewer-request Lambda@Edge association to fn1:2")
}

func TestApplyIdempotent(t *testing.T) {
	log, _ := testLogger()
	cfg := configWithDefault(association(cftypes.EventTypeViewerResponse, "fn3"))
	desired := []model.DesiredBinding{
		{EventType: model.EventViewerRequest, FunctionARN: "fn1"},
		{EventType: model.EventOriginRequest, FunctionARN: "fn2"},
	}

	require.True(t, Apply(cfg, desired, log))
	after := append([]cftypes.LambdaFunctionAssociation(nil), defaultItems(cfg)...)

	assert.False(t, Apply(cfg, desired, log), "second run must be a no-op")
	assert.Equal(t, after, defaultItems(cfg))
}

func TestApplyPreservesUnrelatedBindings(t *testing.T) {
	log, _ := testLogger()
	unrelated := association(cftypes.EventTypeOriginResponse, "keep-me")
	unrelated.IncludeBody = aws.Bool(false)
	cfg := configWithDefault(unrelated)
	desired := []model.DesiredBinding{{EventType: model.EventViewerRequest, FunctionARN: "fn1"}}

	require.True(t, Apply(cfg, desired, log))

	items := defaultItems(cfg)
	assert.Equal(t, unrelated, items[0], "unrelated binding must be untouched")
}

func TestApplyMergesAdditionalBehaviors(t *testing.T) {
	log, _ := testLogger()
	cfg := configWithDefault()
	cfg.CacheBehaviors = &cftypes.CacheBehaviors{
		Quantity: aws.Int32(2),
		Items: []cftypes.CacheBehavior{
			{PathPattern: aws.String("/images/*")},
			{PathPattern: aws.String("/api/*"),
				LambdaFunctionAssociations: &cftypes.LambdaFunctionAssociations{
					Quantity: aws.Int32(1),
					Items:    []cftypes.LambdaFunctionAssociation{association(cftypes.EventTypeViewerRequest, "stale")},
				}},
		},
	}
	desired := []model.DesiredBinding{{EventType: model.EventViewerRequest, FunctionARN: "fn1"}}

	require.True(t, Apply(cfg, desired, log))

	first := cfg.CacheBehaviors.Items[0].LambdaFunctionAssociations
	require.NotNil(t, first)
	require.Len(t, first.Items, 1)
	assert.Equal(t, "fn1", aws.ToString(first.Items[0].LambdaFunctionARN))
	assert.Equal(t, int32(1), aws.ToInt32(first.Quantity))

	second := cfg.CacheBehaviors.Items[1].LambdaFunctionAssociations
	assert.Equal(t, "fn1", aws.ToString(second.Items[0].LambdaFunctionARN))
}

func TestApplyIncludeBodyChangeDetected(t *testing.T) {
	log, _ := testLogger()
	existing := association(cftypes.EventTypeViewerRequest, "fn1")
	existing.IncludeBody = aws.Bool(false)
	cfg := configWithDefault(existing)
	desired := []model.DesiredBinding{{EventType: model.EventViewerRequest, FunctionARN: "fn1", IncludeBody: true}}

	require.True(t, Apply(cfg, desired, log))
	assert.True(t, aws.ToBool(defaultItems(cfg)[0].IncludeBody))
}

func TestApplyEmptyDesiredIsNoOp(t *testing.T) {
	log, _ := testLogger()
	cfg := configWithDefault(association(cftypes.EventTypeViewerRequest, "fn1"))
	assert.False(t, Apply(cfg, nil, log))
}
