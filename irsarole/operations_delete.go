// Copyright 2025.
// SPDX-License-Identifier: Apache-2.0

package irsarole

import (
	"context"
	"maps"
	"slices"

	"github.com/go-logr/logr"

	"github.com/awslabs/amazon-eks-irsa-cfn/internal/cfn"
)

// delete tears the role down: detach the managed policies and delete the
// inline policies named in the delete event's own properties, then delete
// the role by name.
//
// Policy cleanup trusts the event properties rather than re-enumerating the
// remote role; if the role drifted out of sync with its last-known
// properties the cleanup may under- or over-specify. Known gap, kept for
// predictability.
//
// A role (or policy) that is already gone counts as deleted, so a retry
// after a partial failure still succeeds.
func (c *Controller) delete(ctx context.Context, event *cfn.Event) (string, map[string]string, error) {
	props, err := resolveProperties(event.ResourceProperties)
	if err != nil {
		return "", nil, err
	}

	roleName := event.PhysicalResourceID
	if roleName == "" {
		roleName = props.RoleName
	}

	log := logr.FromContextOrDiscard(ctx).WithValues("roleName", roleName)
	ctx = logr.NewContext(ctx, log)

	log.Info("Deleting IRSA role")

	for _, policyArn := range props.ManagedPolicyArns {
		log.Info("Detaching policy", "policyArn", policyArn)
		if err := c.detachPolicy(ctx, roleName, policyArn); err != nil {
			if !isNotFoundError(err) {
				return roleName, nil, err
			}
			log.Info("Policy attachment already gone", "policyArn", policyArn)
		}
	}

	// DeleteRole refuses while inline policies remain.
	for _, policyName := range slices.Sorted(maps.Keys(props.InlinePolicies)) {
		log.Info("Deleting inline policy", "policyName", policyName)
		if err := c.deleteInlinePolicy(ctx, roleName, policyName); err != nil {
			return roleName, nil, err
		}
	}

	if err := c.deleteRole(ctx, roleName); err != nil {
		return roleName, nil, err
	}

	log.Info("Successfully deleted IRSA role")

	return roleName, nil, nil
}
