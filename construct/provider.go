// Copyright 2025.
// SPDX-License-Identifier: Apache-2.0

package construct

import (
	"fmt"

	"github.com/awslabs/goformation/v4/cloudformation"
)

// ClusterOIDCProviderProps declares the IAM OIDC identity provider for a
// cluster. The issuer URL, thumbprint and client ids are all derived or
// fixed by the handler; only the cluster is declared.
type ClusterOIDCProviderProps struct {
	// ServiceToken is the ARN of the OIDC provider handler function.
	ServiceToken string `validate:"required"`

	// ClusterName is the EKS cluster to anchor.
	ClusterName string `validate:"required"`
}

// ClusterOIDCProvider is a declared OIDC provider custom resource.
type ClusterOIDCProvider struct {
	logicalID string
}

// NewClusterOIDCProvider validates the properties and appends the custom
// resource to the template.
func NewClusterOIDCProvider(template *cloudformation.Template, logicalID string, props ClusterOIDCProviderProps) (*ClusterOIDCProvider, error) {
	if err := validate.Struct(props); err != nil {
		return nil, fmt.Errorf("invalid properties for %s: %w", logicalID, err)
	}

	template.Resources[logicalID] = &customResource{
		Type: ProviderResourceType,
		Properties: map[string]interface{}{
			"ServiceToken": props.ServiceToken,
			"ClusterName":  props.ClusterName,
		},
	}

	return &ClusterOIDCProvider{logicalID: logicalID}, nil
}

// ProviderArn is a deferred reference to the provider's ARN. The provider's
// physical resource id is its ARN, so a plain Ref resolves it.
func (p *ClusterOIDCProvider) ProviderArn() string {
	return cloudformation.Ref(p.logicalID)
}
