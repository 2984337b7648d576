// Copyright 2025.
// SPDX-License-Identifier: Apache-2.0

// Package oidcprovider implements the custom resource lifecycle for a
// cluster's IAM OIDC identity provider.
//
// Providers are immutable with respect to their issuer URL, so Update is a
// replacement: delete the prior provider, create a new one, report a new
// physical resource id.
package oidcprovider

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/awslabs/amazon-eks-irsa-cfn/internal/cfn"
)

// Controller handles the lifecycle of an OIDC identity provider custom
// resource. All collaborators are injected; the controller holds no mutable
// state.
type Controller struct {
	iam      IAMAPI
	eks      EKSAPI
	reporter *cfn.Reporter
}

// NewController creates an OIDC provider lifecycle controller.
func NewController(iamClient IAMAPI, eksClient EKSAPI, reporter *cfn.Reporter) *Controller {
	return &Controller{
		iam:      iamClient,
		eks:      eksClient,
		reporter: reporter,
	}
}

// Handle processes one lifecycle event and reports exactly one terminal
// response. The returned error is the response delivery error, if any.
func (c *Controller) Handle(ctx context.Context, event cfn.Event) error {
	log := logr.FromContextOrDiscard(ctx).WithValues(
		"requestType", event.RequestType,
		"logicalResourceId", event.LogicalResourceID,
		"stackId", event.StackID)
	ctx = logr.NewContext(ctx, log)

	physicalID, err := c.dispatch(ctx, &event)

	response := &cfn.Response{
		Status:             cfn.StatusSuccess,
		PhysicalResourceID: physicalID,
		StackID:            event.StackID,
		RequestID:          event.RequestID,
		LogicalResourceID:  event.LogicalResourceID,
	}
	if err != nil {
		log.Error(err, "Lifecycle operation failed", "errorCode", errorCode(err))
		response.Status = cfn.StatusFailed
		response.Reason = err.Error()
	}

	if response.PhysicalResourceID == "" {
		response.PhysicalResourceID = event.PhysicalResourceID
	}
	if response.PhysicalResourceID == "" {
		response.PhysicalResourceID = event.LogicalResourceID
	}

	if err := c.reporter.Send(ctx, &event, response); err != nil {
		log.Error(err, "Failed to deliver terminal response")
		return err
	}

	return nil
}

// dispatch classifies the request type and runs the matching branch.
func (c *Controller) dispatch(ctx context.Context, event *cfn.Event) (string, error) {
	switch event.RequestType {
	case cfn.RequestCreate:
		return c.create(ctx, event)
	case cfn.RequestUpdate:
		return c.replace(ctx, event)
	case cfn.RequestDelete:
		return c.delete(ctx, event)
	default:
		value := string(event.RequestType)
		if value == "" {
			value = "undefined"
		}
		return "", fmt.Errorf("Unsupported request type %s", value)
	}
}

// create resolves the cluster's issuer URL and creates the provider. The
// provider ARN becomes the physical resource id.
func (c *Controller) create(ctx context.Context, event *cfn.Event) (string, error) {
	props, err := resolveProperties(event.ResourceProperties)
	if err != nil {
		return "", err
	}

	issuer, err := c.resolveIssuer(ctx, props.ClusterName)
	if err != nil {
		return "", err
	}

	return c.createProvider(ctx, issuer)
}

// replace implements Update as an explicit delete-then-create composite:
// the prior provider is deleted by ARN (best effort, same as the Delete
// branch) and a new provider is created against the desired cluster's
// issuer. The physical resource id always changes.
func (c *Controller) replace(ctx context.Context, event *cfn.Event) (string, error) {
	if _, err := c.delete(ctx, event); err != nil {
		// delete never fails by construction; kept for shape
		return "", err
	}
	return c.create(ctx, event)
}

// delete deletes the provider by ARN. Errors are logged and swallowed: a
// prior partial failure must not block stack deletion.
func (c *Controller) delete(ctx context.Context, event *cfn.Event) (string, error) {
	log := logr.FromContextOrDiscard(ctx)

	providerArn := event.PhysicalResourceID

	log.Info("Deleting OIDC identity provider", "providerArn", providerArn)

	if err := c.deleteProvider(ctx, providerArn); err != nil {
		log.Error(err, "Failed to delete OIDC provider, continuing",
			"providerArn", providerArn, "errorCode", errorCode(err))
	}

	return providerArn, nil
}
