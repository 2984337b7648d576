// Copyright 2025.
// SPDX-License-Identifier: Apache-2.0

// config.go contains the typed resource properties for the IRSA role custom
// resource and the parsing/defaulting logic applied at the event boundary.

package irsarole

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// DefaultNamespace is applied when the template omits the namespace.
const DefaultNamespace = "default"

// Seconds decodes an integer that CloudFormation may deliver either as a
// JSON number or as a quoted string (property bags stringify scalars).
type Seconds int32

// UnmarshalJSON accepts both `3600` and `"3600"`.
func (s *Seconds) UnmarshalJSON(data []byte) error {
	var raw json.Number
	if err := json.Unmarshal(data, &raw); err != nil {
		var quoted string
		if err := json.Unmarshal(data, &quoted); err != nil {
			return fmt.Errorf("invalid duration value %s", string(data))
		}
		raw = json.Number(quoted)
	}
	v, err := strconv.ParseInt(raw.String(), 10, 32)
	if err != nil {
		return fmt.Errorf("invalid duration value %q", raw.String())
	}
	*s = Seconds(v)
	return nil
}

// RoleProperties is the desired state for an IRSA role, decoded from the
// lifecycle event's resource properties.
type RoleProperties struct {
	// ClusterName is the EKS cluster whose OIDC issuer anchors the trust
	// policy.
	ClusterName string `json:"ClusterName"`

	// Namespace/ServiceAccount identify the single Kubernetes service
	// account allowed to assume the role.
	Namespace      string `json:"Namespace,omitempty"`
	ServiceAccount string `json:"ServiceAccount"`

	// RoleName is optional; when absent a physical name is generated from
	// the logical resource id on Create.
	RoleName string `json:"RoleName,omitempty"`

	// Description is an optional description for the role.
	Description string `json:"Description,omitempty"`

	// MaxSessionDuration is the maximum session duration in seconds
	// (3600-43200). The facade rejects out-of-range values before any event
	// is ever produced.
	MaxSessionDuration Seconds `json:"MaxSessionDuration,omitempty"`

	// Path is the IAM path for the role (defaults to "/").
	Path string `json:"Path,omitempty"`

	// PermissionsBoundary is an optional managed policy ARN capping the
	// role's effective permissions.
	PermissionsBoundary string `json:"PermissionsBoundary,omitempty"`

	// InlinePolicies maps policy name to policy document.
	InlinePolicies map[string]json.RawMessage `json:"InlinePolicies,omitempty"`

	// ManagedPolicyArns is the list of managed policy ARNs to attach.
	ManagedPolicyArns []string `json:"ManagedPolicyArns,omitempty"`
}

// resolveProperties decodes the raw property bag, validates required fields
// and applies defaults.
func resolveProperties(raw json.RawMessage) (*RoleProperties, error) {
	props := &RoleProperties{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, props); err != nil {
			return nil, fmt.Errorf("failed to parse resource properties: %w", err)
		}
	}

	if err := resolveSpec(props); err != nil {
		return nil, err
	}

	return props, nil
}

// resolveSpec validates required fields and applies defaults
func resolveSpec(props *RoleProperties) error {
	if props.ClusterName == "" {
		return fmt.Errorf("ClusterName is required and cannot be empty")
	}
	if props.ServiceAccount == "" {
		return fmt.Errorf("ServiceAccount is required and cannot be empty")
	}

	for name, doc := range props.InlinePolicies {
		if !json.Valid(doc) {
			return fmt.Errorf("inline policy %s must be valid JSON", name)
		}
	}

	applyDefaults(props)
	return nil
}

// applyDefaults sets defaults for optional role properties
func applyDefaults(props *RoleProperties) {
	if props.Namespace == "" {
		props.Namespace = DefaultNamespace
	}
	if props.Path == "" {
		props.Path = "/"
	}
	if props.MaxSessionDuration == 0 {
		props.MaxSessionDuration = 3600
	}
}
