// Copyright 2025.
// SPDX-License-Identifier: Apache-2.0

package construct

import (
	"fmt"

	"github.com/awslabs/goformation/v4/cloudformation"
)

// ServiceAccountRoleProps declares an IAM role assumable by one Kubernetes
// service account. Validation runs at declaration time, before any template
// is deployed or any remote call is made.
type ServiceAccountRoleProps struct {
	// ServiceToken is the ARN of the IRSA role handler function.
	ServiceToken string `validate:"required"`

	// ClusterName is the EKS cluster whose OIDC issuer anchors the trust
	// policy.
	ClusterName string `validate:"required"`

	// Namespace defaults to "default" when empty.
	Namespace string

	// ServiceAccount is the Kubernetes service account name.
	ServiceAccount string `validate:"required"`

	// RoleName is optional; the handler generates one when absent.
	RoleName string

	// Description must be at most 1000 characters.
	Description string `validate:"omitempty,max=1000"`

	// MaxSessionDuration must lie in 3600-43200 seconds inclusive.
	MaxSessionDuration int32 `validate:"omitempty,gte=3600,lte=43200"`

	// Path is the IAM path for the role.
	Path string

	// PermissionsBoundary is an optional managed policy ARN capping the
	// role's permissions.
	PermissionsBoundary string

	// InlinePolicies maps policy name to policy document.
	InlinePolicies map[string]interface{}

	// ManagedPolicyArns lists managed policies to attach.
	ManagedPolicyArns []string
}

// ServiceAccountRole is a declared IRSA role custom resource.
type ServiceAccountRole struct {
	logicalID string
}

// NewServiceAccountRole validates the properties and appends the custom
// resource to the template.
func NewServiceAccountRole(template *cloudformation.Template, logicalID string, props ServiceAccountRoleProps) (*ServiceAccountRole, error) {
	if err := validate.Struct(props); err != nil {
		return nil, fmt.Errorf("invalid properties for %s: %w", logicalID, err)
	}

	if props.Namespace == "" {
		props.Namespace = "default"
	}

	properties := map[string]interface{}{
		"ServiceToken":   props.ServiceToken,
		"ClusterName":    props.ClusterName,
		"Namespace":      props.Namespace,
		"ServiceAccount": props.ServiceAccount,
	}
	if props.RoleName != "" {
		properties["RoleName"] = props.RoleName
	}
	if props.Description != "" {
		properties["Description"] = props.Description
	}
	if props.MaxSessionDuration != 0 {
		properties["MaxSessionDuration"] = props.MaxSessionDuration
	}
	if props.Path != "" {
		properties["Path"] = props.Path
	}
	if props.PermissionsBoundary != "" {
		properties["PermissionsBoundary"] = props.PermissionsBoundary
	}
	if len(props.InlinePolicies) > 0 {
		properties["InlinePolicies"] = props.InlinePolicies
	}
	if len(props.ManagedPolicyArns) > 0 {
		properties["ManagedPolicyArns"] = props.ManagedPolicyArns
	}

	template.Resources[logicalID] = &customResource{
		Type:       RoleResourceType,
		Properties: properties,
	}

	return &ServiceAccountRole{logicalID: logicalID}, nil
}

// RoleArn is a deferred reference to the role's ARN.
func (r *ServiceAccountRole) RoleArn() string {
	return cloudformation.GetAtt(r.logicalID, "Arn")
}

// RoleID is a deferred reference to the role's stable id.
func (r *ServiceAccountRole) RoleID() string {
	return cloudformation.GetAtt(r.logicalID, "RoleId")
}

// RoleName is a deferred reference to the role's physical name.
func (r *ServiceAccountRole) RoleName() string {
	return cloudformation.Ref(r.logicalID)
}
