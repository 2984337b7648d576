// Copyright 2025.
// SPDX-License-Identifier: Apache-2.0

// Package construct authors CloudFormation templates that reference the IRSA
// custom resource handlers.
//
// A construct validates its properties at declaration time, appends the
// custom resource to a goformation template and exposes the resulting
// remote identifiers as deferred references (Ref/Fn::GetAtt strings) that
// are usable before the remote resource exists.
package construct

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

const (
	// RoleResourceType is the custom resource type name served by the IRSA
	// role handler.
	RoleResourceType = "Custom::IRSARole"

	// ProviderResourceType is the custom resource type name served by the
	// OIDC provider handler.
	ProviderResourceType = "Custom::ClusterOIDCProvider"
)

var validate = validator.New()

// customResource is a CloudFormation custom resource with an arbitrary
// property bag. goformation's generated CustomResource type only models the
// service token, so templates get this hand-rolled resource instead.
type customResource struct {
	Type       string
	Properties map[string]interface{}
}

func (r *customResource) AWSCloudFormationType() string {
	return r.Type
}

func (r *customResource) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Type       string                 `json:"Type"`
		Properties map[string]interface{} `json:"Properties,omitempty"`
	}{
		Type:       r.Type,
		Properties: r.Properties,
	})
}
