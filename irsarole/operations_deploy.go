// Copyright 2025.
// SPDX-License-Identifier: Apache-2.0

package irsarole

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/go-logr/logr"

	"github.com/awslabs/amazon-eks-irsa-cfn/internal/cfn"
)

// create provisions the role and its policy attachments.
//
// The remote calls run strictly in sequence: account id, issuer, role
// creation, existence wait, inline policies, managed policies. A failure at
// any step aborts the rest; the role is left in place for CloudFormation's
// retry or rollback to deal with.
func (c *Controller) create(ctx context.Context, event *cfn.Event) (string, map[string]string, error) {
	props, err := resolveProperties(event.ResourceProperties)
	if err != nil {
		return "", nil, err
	}

	roleName := props.RoleName
	if roleName == "" {
		roleName = c.names.PhysicalName(event.LogicalResourceID)
	}

	log := logr.FromContextOrDiscard(ctx).WithValues("roleName", roleName)
	ctx = logr.NewContext(ctx, log)

	log.Info("Creating IRSA role",
		"cluster", props.ClusterName,
		"namespace", props.Namespace,
		"serviceAccount", props.ServiceAccount)

	accountID, err := c.resolveAccountID(ctx)
	if err != nil {
		return roleName, nil, err
	}

	issuer, err := c.resolveIssuer(ctx, props.ClusterName)
	if err != nil {
		return roleName, nil, err
	}

	trustPolicy, err := buildTrustPolicy(c.partition, accountID, issuer, props.Namespace, props.ServiceAccount)
	if err != nil {
		return roleName, nil, err
	}

	role, err := c.createRole(ctx, roleName, trustPolicy, props)
	if err != nil {
		return roleName, nil, err
	}

	// IAM is eventually consistent; policy calls against a role that has not
	// propagated yet fail with NoSuchEntity.
	if err := c.waiter.Wait(ctx, &iam.GetRoleInput{RoleName: aws.String(roleName)}, c.waitTimeout); err != nil {
		return roleName, nil, fmt.Errorf("role %s did not become visible: %w", roleName, err)
	}

	for _, policyName := range slices.Sorted(maps.Keys(props.InlinePolicies)) {
		if err := c.putInlinePolicy(ctx, roleName, policyName, string(props.InlinePolicies[policyName])); err != nil {
			return roleName, nil, err
		}
	}

	for _, policyArn := range props.ManagedPolicyArns {
		if err := c.attachPolicy(ctx, roleName, policyArn); err != nil {
			return roleName, nil, err
		}
	}

	log.Info("Successfully created IRSA role", "roleArn", aws.ToString(role.Arn))

	data := map[string]string{
		"Arn":    aws.ToString(role.Arn),
		"RoleId": aws.ToString(role.RoleId),
	}
	return roleName, data, nil
}

// update reconciles policy sets against the prior desired state and updates
// the role's mutable scalar attributes.
//
// The trust policy is deliberately not recomputed: cluster, namespace and
// service account are immutable after creation, and changing them in the
// template triggers a replacement instead.
func (c *Controller) update(ctx context.Context, event *cfn.Event) (string, map[string]string, error) {
	props, err := resolveProperties(event.ResourceProperties)
	if err != nil {
		return "", nil, err
	}

	oldProps, err := resolveProperties(event.OldResourceProperties)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse prior resource properties: %w", err)
	}

	roleName := event.PhysicalResourceID

	log := logr.FromContextOrDiscard(ctx).WithValues("roleName", roleName)
	ctx = logr.NewContext(ctx, log)

	log.Info("Updating IRSA role")

	// Inline policies present before but no longer desired are deleted;
	// every desired policy is put unconditionally since a document under an
	// unchanged name may itself have changed.
	for _, policyName := range slices.Sorted(maps.Keys(oldProps.InlinePolicies)) {
		if _, keep := props.InlinePolicies[policyName]; keep {
			continue
		}
		log.Info("Deleting inline policy", "policyName", policyName)
		if err := c.deleteInlinePolicy(ctx, roleName, policyName); err != nil {
			return roleName, nil, err
		}
	}
	for _, policyName := range slices.Sorted(maps.Keys(props.InlinePolicies)) {
		log.Info("Putting inline policy", "policyName", policyName)
		if err := c.putInlinePolicy(ctx, roleName, policyName, string(props.InlinePolicies[policyName])); err != nil {
			return roleName, nil, err
		}
	}

	toDetach, toAttach := diffManagedPolicies(oldProps.ManagedPolicyArns, props.ManagedPolicyArns)
	for _, policyArn := range toDetach {
		log.Info("Detaching policy", "policyArn", policyArn)
		if err := c.detachPolicy(ctx, roleName, policyArn); err != nil {
			return roleName, nil, err
		}
	}
	for _, policyArn := range toAttach {
		log.Info("Attaching policy", "policyArn", policyArn)
		if err := c.attachPolicy(ctx, roleName, policyArn); err != nil {
			return roleName, nil, err
		}
	}

	if err := c.updateRole(ctx, roleName, props); err != nil {
		return roleName, nil, err
	}

	log.Info("Successfully updated IRSA role")

	return roleName, nil, nil
}

// diffManagedPolicies computes the detach and attach sets between the prior
// and desired managed policy ARNs.
func diffManagedPolicies(previous, desired []string) (toDetach, toAttach []string) {
	previousSet := make(map[string]bool, len(previous))
	for _, arn := range previous {
		previousSet[arn] = true
	}
	desiredSet := make(map[string]bool, len(desired))
	for _, arn := range desired {
		desiredSet[arn] = true
	}

	detachSet := maps.Clone(previousSet)
	maps.DeleteFunc(detachSet, func(k string, _ bool) bool {
		return desiredSet[k]
	})
	attachSet := maps.Clone(desiredSet)
	maps.DeleteFunc(attachSet, func(k string, _ bool) bool {
		return previousSet[k]
	})

	return slices.Sorted(maps.Keys(detachSet)), slices.Sorted(maps.Keys(attachSet))
}
