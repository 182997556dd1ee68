// Package model defines the data structures for cfedge's configuration,
// declarations, and reconciliation state.
package model

import (
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
)

// EventType is a CloudFront event a Lambda@Edge function can be attached to.
type EventType string

const (
	EventViewerRequest  EventType = "viewer-request"
	EventOriginRequest  EventType = "origin-request"
	EventViewerResponse EventType = "viewer-response"
	EventOriginResponse EventType = "origin-response"
)

var validEventTypes = map[EventType]bool{
	EventViewerRequest:  true,
	EventOriginRequest:  true,
	EventViewerResponse: true,
	EventOriginResponse: true,
}

// IsValidEventType reports whether s names one of the four CloudFront
// trigger events.
func IsValidEventType(s string) bool {
	return validEventTypes[EventType(s)]
}

// CloudFront converts the event type to its SDK representation. The string
// values are identical; the conversion exists so only this package depends
// on the enum equivalence.
func (e EventType) CloudFront() cftypes.EventType {
	return cftypes.EventType(e)
}

// RefKind discriminates the two ways a declaration can point at a distribution.
type RefKind int

const (
	// RefByName references a distribution by the logical name of its
	// template resource; the concrete ID is looked up from the deployed stack.
	RefByName RefKind = iota
	// RefByID carries a concrete distribution ID alongside the logical name.
	// The name is still required as the stable grouping key.
	RefByID
)

// DistributionRef identifies a distribution within a declaration.
type DistributionRef struct {
	Kind RefKind
	Name string
	ID   string
}

// ByName returns a reference that must be resolved against the deployed stack.
func ByName(name string) DistributionRef {
	return DistributionRef{Kind: RefByName, Name: name}
}

// ByID returns a reference whose distribution ID is already known.
func ByID(name, id string) DistributionRef {
	return DistributionRef{Kind: RefByID, Name: name, ID: id}
}

// PendingAssociation is one validated, not-yet-resolved intent to bind a
// function to a distribution at an event. Immutable once constructed.
type PendingAssociation struct {
	FunctionName  string
	Distribution  DistributionRef
	EventType     EventType
	VersionOutput string
	IncludeBody   bool
}

// ResolvedDistribution pairs a concrete distribution ID with the reference it
// was resolved from, keyed by the owning function name.
type ResolvedDistribution struct {
	ID  string
	Ref DistributionRef
}

// DesiredBinding is one (event type, function version ARN) pair to be present
// on every behavior of a distribution.
type DesiredBinding struct {
	EventType   EventType
	FunctionARN string
	IncludeBody bool
}

// DesiredState groups desired bindings by distribution ID, preserving the
// declaration order of the distributions so a reconciliation pass is
// deterministic.
type DesiredState struct {
	Bindings     map[string][]DesiredBinding
	DisplayNames map[string]string
	ByFunction   map[string]ResolvedDistribution

	order []string
}

func NewDesiredState() *DesiredState {
	return &DesiredState{
		Bindings:     make(map[string][]DesiredBinding),
		DisplayNames: make(map[string]string),
		ByFunction:   make(map[string]ResolvedDistribution),
	}
}

// Add appends a binding for the given distribution, registering the
// distribution on first sight.
func (s *DesiredState) Add(id, displayName string, b DesiredBinding) {
	if _, ok := s.Bindings[id]; !ok {
		s.order = append(s.order, id)
		s.DisplayNames[id] = displayName
	}
	s.Bindings[id] = append(s.Bindings[id], b)
}

// DistributionIDs returns the distribution IDs in declaration order.
func (s *DesiredState) DistributionIDs() []string {
	return s.order
}
