// Copyright 2025.
// SPDX-License-Identifier: Apache-2.0

package irsarole

import (
	"encoding/json"
	"fmt"
	"strings"
)

// stsAudience is the audience EKS-issued service account tokens carry when
// exchanged through AssumeRoleWithWebIdentity.
const stsAudience = "sts.amazonaws.com"

// trustPolicyDocument is the assume-role policy document for a federated
// OIDC principal.
type trustPolicyDocument struct {
	Version   string                 `json:"Version"`
	Statement []trustPolicyStatement `json:"Statement"`
}

type trustPolicyStatement struct {
	Effect    string                       `json:"Effect"`
	Principal trustPolicyPrincipal         `json:"Principal"`
	Action    string                       `json:"Action"`
	Condition map[string]map[string]string `json:"Condition"`
}

type trustPolicyPrincipal struct {
	Federated string `json:"Federated"`
}

// issuerHost strips the scheme prefix from a cluster's OIDC issuer URL. The
// trust policy principal and condition keys use the bare host form, unlike
// the identity provider creation call which takes the full URL.
func issuerHost(issuerURL string) string {
	host := strings.TrimPrefix(issuerURL, "https://")
	return strings.TrimPrefix(host, "http://")
}

// buildTrustPolicy renders the trust policy that lets the given
// namespace/service-account pair assume the role through the cluster's OIDC
// provider.
func buildTrustPolicy(partition, accountID, issuer, namespace, serviceAccount string) (string, error) {
	host := issuerHost(issuer)

	doc := trustPolicyDocument{
		Version: "2012-10-17",
		Statement: []trustPolicyStatement{{
			Effect: "Allow",
			Principal: trustPolicyPrincipal{
				Federated: fmt.Sprintf("arn:%s:iam::%s:oidc-provider/%s", partition, accountID, host),
			},
			Action: "sts:AssumeRoleWithWebIdentity",
			Condition: map[string]map[string]string{
				"StringEquals": {
					host + ":sub": fmt.Sprintf("system:serviceaccount:%s:%s", namespace, serviceAccount),
					host + ":aud": stsAudience,
				},
			},
		}},
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to serialize trust policy: %w", err)
	}

	return string(out), nil
}
