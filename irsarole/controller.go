// Copyright 2025.
// SPDX-License-Identifier: Apache-2.0

package irsarole

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/awslabs/amazon-eks-irsa-cfn/internal/cfn"
)

const (
	// defaultPartition is used for the trust policy principal ARN when no
	// partition is configured.
	defaultPartition = "aws"

	// defaultRoleWaitTimeout bounds the wait for a freshly created role to
	// become visible to subsequent IAM calls.
	defaultRoleWaitTimeout = 2 * time.Minute
)

// Controller handles the lifecycle of an IRSA role custom resource.
//
// Every dependency with a side effect is injected: AWS clients, the
// role-existence waiter, the terminal-response reporter and the physical
// name generator. The controller itself holds no mutable state, so
// concurrent invocations for different stacks are independent.
type Controller struct {
	iam      IAMAPI
	eks      EKSAPI
	sts      STSAPI
	waiter   RoleWaiter
	reporter *cfn.Reporter
	names    *cfn.NameGenerator

	partition   string
	waitTimeout time.Duration
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithPartition overrides the AWS partition used in the trust policy
// principal ARN.
func WithPartition(partition string) ControllerOption {
	return func(c *Controller) {
		c.partition = partition
	}
}

// WithRoleWaitTimeout overrides the role-existence wait timeout.
func WithRoleWaitTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.waitTimeout = d
	}
}

// WithNameGenerator overrides the physical name generator.
func WithNameGenerator(names *cfn.NameGenerator) ControllerOption {
	return func(c *Controller) {
		c.names = names
	}
}

// NewController creates an IRSA role lifecycle controller.
func NewController(iamClient IAMAPI, eksClient EKSAPI, stsClient STSAPI,
	waiter RoleWaiter, reporter *cfn.Reporter, opts ...ControllerOption) *Controller {

	c := &Controller{
		iam:         iamClient,
		eks:         eksClient,
		sts:         stsClient,
		waiter:      waiter,
		reporter:    reporter,
		names:       cfn.NewNameGenerator(),
		partition:   defaultPartition,
		waitTimeout: defaultRoleWaitTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle processes one lifecycle event and reports exactly one terminal
// response, whatever happens in between. The returned error is the response
// delivery error, if any; the invocation outcome itself is carried in the
// response.
func (c *Controller) Handle(ctx context.Context, event cfn.Event) error {
	log := logr.FromContextOrDiscard(ctx).WithValues(
		"requestType", event.RequestType,
		"logicalResourceId", event.LogicalResourceID,
		"stackId", event.StackID)
	ctx = logr.NewContext(ctx, log)

	physicalID, data, err := c.dispatch(ctx, &event)

	response := &cfn.Response{
		Status:             cfn.StatusSuccess,
		PhysicalResourceID: physicalID,
		StackID:            event.StackID,
		RequestID:          event.RequestID,
		LogicalResourceID:  event.LogicalResourceID,
		Data:               data,
	}
	if err != nil {
		log.Error(err, "Lifecycle operation failed", "errorCode", errorCode(err))
		response.Status = cfn.StatusFailed
		response.Reason = err.Error()
	}

	// The physical id must stay stable across the resource's lifetime even
	// on failure, or CloudFormation would treat the outcome as a replacement.
	if response.PhysicalResourceID == "" {
		response.PhysicalResourceID = event.PhysicalResourceID
	}
	if response.PhysicalResourceID == "" {
		response.PhysicalResourceID = event.LogicalResourceID
	}

	if err := c.reporter.Send(ctx, &event, response); err != nil {
		// The invocation already terminated; delivery cannot be retried
		// without risking a second terminal response.
		log.Error(err, "Failed to deliver terminal response")
		return err
	}

	return nil
}

// dispatch classifies the request type and runs the matching branch.
func (c *Controller) dispatch(ctx context.Context, event *cfn.Event) (string, map[string]string, error) {
	switch event.RequestType {
	case cfn.RequestCreate:
		return c.create(ctx, event)
	case cfn.RequestUpdate:
		return c.update(ctx, event)
	case cfn.RequestDelete:
		return c.delete(ctx, event)
	default:
		value := string(event.RequestType)
		if value == "" {
			value = "undefined"
		}
		return "", nil, fmt.Errorf("Unsupported request type %s", value)
	}
}
