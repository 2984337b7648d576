// Copyright 2025.
// SPDX-License-Identifier: Apache-2.0

package oidcprovider

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/smithy-go"
	"github.com/go-logr/logr"
)

const (
	// rootCAThumbprint is the SHA-1 thumbprint of the root CA behind the EKS
	// OIDC issuer endpoints. The issuer certificates chain to a single root
	// per partition, so a fixed thumbprint is sufficient.
	rootCAThumbprint = "9E99A48A9960B14926BB7F3B02E22DA2B0AB7280"

	// stsAudience is the only client id EKS service account tokens are
	// issued for.
	stsAudience = "sts.amazonaws.com"
)

// IAMAPI is the subset of the IAM client the controller uses.
type IAMAPI interface {
	CreateOpenIDConnectProvider(ctx context.Context, params *iam.CreateOpenIDConnectProviderInput, optFns ...func(*iam.Options)) (*iam.CreateOpenIDConnectProviderOutput, error)
	DeleteOpenIDConnectProvider(ctx context.Context, params *iam.DeleteOpenIDConnectProviderInput, optFns ...func(*iam.Options)) (*iam.DeleteOpenIDConnectProviderOutput, error)
}

// EKSAPI is the subset of the EKS client the controller uses.
type EKSAPI interface {
	DescribeCluster(ctx context.Context, params *eks.DescribeClusterInput, optFns ...func(*eks.Options)) (*eks.DescribeClusterOutput, error)
}

// resolveIssuer returns the cluster's OIDC issuer URL. The full URL,
// scheme included, is what CreateOpenIDConnectProvider expects — unlike the
// trust policy principal, which uses the bare host.
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

// createProvider creates the identity provider for the issuer URL and
// returns its ARN.
func (c *Controller) createProvider(ctx context.Context, issuer string) (string, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("issuer", issuer)

	log.Info("Creating OIDC identity provider")

	output, err := c.iam.CreateOpenIDConnectProvider(ctx, &iam.CreateOpenIDConnectProviderInput{
		Url:            aws.String(issuer),
		ClientIDList:   []string{stsAudience},
		ThumbprintList: []string{rootCAThumbprint},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	arn := aws.ToString(output.OpenIDConnectProviderArn)
	log.Info("Successfully created OIDC identity provider", "providerArn", arn)

	return arn, nil
}

// deleteProvider deletes the identity provider by ARN.
func (c *Controller) deleteProvider(ctx context.Context, providerArn string) error {
	_, err := c.iam.DeleteOpenIDConnectProvider(ctx, &iam.DeleteOpenIDConnectProviderInput{
		OpenIDConnectProviderArn: aws.String(providerArn),
	})
	if err != nil {
		return fmt.Errorf("failed to delete OIDC provider: %w", err)
	}

	return nil
}

// errorCode extracts the remote API error code for logging.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
