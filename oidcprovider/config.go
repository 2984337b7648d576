// Copyright 2025.
// SPDX-License-Identifier: Apache-2.0

// config.go contains the typed resource properties for the OIDC provider
// custom resource.

package oidcprovider

import (
	"encoding/json"
	"fmt"
)

// ProviderProperties is the desired state for a cluster's OIDC identity
// provider. The issuer URL, thumbprint and client id list are all derived or
// fixed, so the cluster name is the whole declaration.
type ProviderProperties struct {
	// ClusterName is the EKS cluster whose OIDC issuer the provider anchors.
	ClusterName string `json:"ClusterName"`
}

// resolveProperties decodes the raw property bag and validates it.
func resolveProperties(raw json.RawMessage) (*ProviderProperties, error) {
	props := &ProviderProperties{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, props); err != nil {
			return nil, fmt.Errorf("failed to parse resource properties: %w", err)
		}
	}

	if props.ClusterName == "" {
		return nil, fmt.Errorf("ClusterName is required and cannot be empty")
	}

	return props, nil
}
