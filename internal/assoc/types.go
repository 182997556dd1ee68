// Package assoc turns declared Lambda@Edge bindings into validated pending
// associations and applies the template-side effects that edge deployment
// requires (environment stripping, execution-role trust adjustment).
package assoc

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	yamlv3 "gopkg.in/yaml.v3"
)

const (
	distributionResourceType = "AWS::CloudFront::Distribution"
	roleResourceType         = "AWS::IAM::Role"

	// Logical ID of the shared execution role when a function declares none.
	defaultExecutionRole = "IamRoleLambdaExecution"
)

// Service is the declaration file: the functions and the in-progress
// deployable template they will be merged into.
type Service struct {
	Service   string                   `yaml:"service"`
	Functions map[string]*FunctionDecl `yaml:"functions"`
	Template  *Template                `yaml:"template"`
}

type FunctionDecl struct {
	Handler      string            `yaml:"handler"`
	Role         string            `yaml:"role,omitempty"`
	Environment  map[string]string `yaml:"environment,omitempty"`
	LambdaAtEdge *EdgeDecl         `yaml:"lambdaAtEdge,omitempty"`
}

// EdgeDecl is the edge-binding annex on a function declaration.
type EdgeDecl struct {
	Distribution   string `yaml:"distribution,omitempty"`
	DistributionID string `yaml:"distributionId,omitempty"`
	EventType      string `yaml:"eventType"`
	IncludeBody    bool   `yaml:"includeBody,omitempty"`
}

// Template is the CloudFormation-shaped resource section of the service file.
type Template struct {
	Resources map[string]*Resource `yaml:"Resources"`
}

type Resource struct {
	Type       string         `yaml:"Type"`
	Properties map[string]any `yaml:"Properties,omitempty"`
}

// LoadService reads and strictly decodes a service declaration file.
func LoadService(path string) (*Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service file: %w", err)
	}

	var svc Service
	dec := yamlv3.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&svc); err != nil {
		return nil, fmt.Errorf("parse service file %s: %w", path, err)
	}
	if svc.Template == nil {
		svc.Template = &Template{Resources: map[string]*Resource{}}
	}
	if svc.Template.Resources == nil {
		svc.Template.Resources = map[string]*Resource{}
	}
	return &svc, nil
}

// normalizeName converts a declared function name into its template logical
// ID prefix: alphanumeric segments, each capitalized ("directory-origin"
// becomes "DirectoryOrigin").
func normalizeName(name string) string {
	var b strings.Builder
	upperNext := true
	for _, r := range name {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			if upperNext && r >= 'a' && r <= 'z' {
				r -= 'a' - 'A'
			}
			b.WriteRune(r)
			upperNext = false
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			upperNext = true
		default:
			upperNext = true
		}
	}
	return b.String()
}

// VersionOutputName is the stack output holding a function's qualified
// version ARN.
func VersionOutputName(functionName string) string {
	return normalizeName(functionName) + "LambdaFunctionQualifiedArn"
}

// functionResourceName is the template logical ID of a function resource.
func functionResourceName(functionName string) string {
	return normalizeName(functionName) + "LambdaFunction"
}
