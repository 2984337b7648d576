// Copyright 2025.
// SPDX-License-Identifier: Apache-2.0

package irsarole

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/go-logr/logr"
)

// IAMAPI is the subset of the IAM client the controller uses.
type IAMAPI interface {
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	UpdateRole(ctx context.Context, params *iam.UpdateRoleInput, optFns ...func(*iam.Options)) (*iam.UpdateRoleOutput, error)
	DeleteRole(ctx context.Context, params *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error)
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
	DeleteRolePolicy(ctx context.Context, params *iam.DeleteRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error)
	AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
	DetachRolePolicy(ctx context.Context, params *iam.DetachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error)
}

// EKSAPI is the subset of the EKS client the controller uses.
type EKSAPI interface {
	DescribeCluster(ctx context.Context, params *eks.DescribeClusterInput, optFns ...func(*eks.Options)) (*eks.DescribeClusterOutput, error)
}

// STSAPI is the subset of the STS client the controller uses.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// RoleWaiter blocks until a freshly created role is visible for subsequent
// IAM calls. Satisfied by iam.RoleExistsWaiter; tests inject a no-op.
type RoleWaiter interface {
	Wait(ctx context.Context, params *iam.GetRoleInput, maxWaitDur time.Duration, optFns ...func(*iam.RoleExistsWaiterOptions)) error
}

// resolveAccountID returns the caller's AWS account id.
func (c *Controller) resolveAccountID(ctx context.Context) (string, error) {
	output, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to resolve caller identity: %w", err)
	}
	return aws.ToString(output.Account), nil
}

// resolveIssuer returns the cluster's OIDC issuer URL.
func (c *Controller) resolveIssuer(ctx context.Context, clusterName string) (string, error) {
	output, err := c.eks.DescribeCluster(ctx, &eks.DescribeClusterInput{
		Name: aws.String(clusterName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe cluster %s: %w", clusterName, err)
	}

	if output.Cluster == nil || output.Cluster.Identity == nil || output.Cluster.Identity.Oidc == nil {
		return "", fmt.Errorf("cluster %s has no OIDC identity", clusterName)
	}

	return aws.ToString(output.Cluster.Identity.Oidc.Issuer), nil
}

// createRole creates the role and returns it.
func (c *Controller) createRole(ctx context.Context, roleName, trustPolicy string, props *RoleProperties) (*types.Role, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("roleName", roleName)

	log.Info("Creating IAM role")

	input := &iam.CreateRoleInput{
		RoleName:                 aws.String(roleName),
		AssumeRolePolicyDocument: aws.String(trustPolicy),
		Path:                     aws.String(props.Path),
		MaxSessionDuration:       aws.Int32(int32(props.MaxSessionDuration)),
	}

	if props.Description != "" {
		input.Description = aws.String(props.Description)
	}
	if props.PermissionsBoundary != "" {
		input.PermissionsBoundary = aws.String(props.PermissionsBoundary)
	}

	output, err := c.iam.CreateRole(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	log.Info("Successfully created IAM role", "roleArn", aws.ToString(output.Role.Arn))

	return output.Role, nil
}

// updateRole updates the mutable scalar attributes of the role.
func (c *Controller) updateRole(ctx context.Context, roleName string, props *RoleProperties) error {
	input := &iam.UpdateRoleInput{
		RoleName:           aws.String(roleName),
		MaxSessionDuration: aws.Int32(int32(props.MaxSessionDuration)),
	}
	if props.Description != "" {
		input.Description = aws.String(props.Description)
	}

	if _, err := c.iam.UpdateRole(ctx, input); err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	return nil
}

// deleteRole deletes the role by name, treating an already absent role as
// success.
func (c *Controller) deleteRole(ctx context.Context, roleName string) error {
	_, err := c.iam.DeleteRole(ctx, &iam.DeleteRoleInput{
		RoleName: aws.String(roleName),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil
		}
		return fmt.Errorf("failed to delete role: %w", err)
	}

	return nil
}

// putInlinePolicy upserts an inline policy on the role.
func (c *Controller) putInlinePolicy(ctx context.Context, roleName, policyName, document string) error {
	_, err := c.iam.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(roleName),
		PolicyName:     aws.String(policyName),
		PolicyDocument: aws.String(document),
	})
	if err != nil {
		return fmt.Errorf("failed to put inline policy %s: %w", policyName, err)
	}

	return nil
}

// deleteInlinePolicy removes an inline policy from the role.
func (c *Controller) deleteInlinePolicy(ctx context.Context, roleName, policyName string) error {
	_, err := c.iam.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
		RoleName:   aws.String(roleName),
		PolicyName: aws.String(policyName),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil
		}
		return fmt.Errorf("failed to delete inline policy %s: %w", policyName, err)
	}

	return nil
}

// attachPolicy attaches a managed policy to the role.
func (c *Controller) attachPolicy(ctx context.Context, roleName, policyArn string) error {
	_, err := c.iam.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(roleName),
		PolicyArn: aws.String(policyArn),
	})
	if err != nil {
		return fmt.Errorf("failed to attach policy %s: %w", policyArn, err)
	}

	return nil
}

// detachPolicy detaches a managed policy from the role.
func (c *Controller) detachPolicy(ctx context.Context, roleName, policyArn string) error {
	_, err := c.iam.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
		RoleName:  aws.String(roleName),
		PolicyArn: aws.String(policyArn),
	})
	if err != nil {
		return fmt.Errorf("failed to detach policy %s: %w", policyArn, err)
	}

	return nil
}

// isNotFoundError checks if error indicates the entity does not exist
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var notFoundErr *types.NoSuchEntityException
	return errors.As(err, &notFoundErr)
}

// errorCode extracts the remote API error code for logging.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
