// Copyright 2025.
// SPDX-License-Identifier: Apache-2.0

// Package cfn implements the CloudFormation custom resource protocol:
// the lifecycle event model, the terminal response callback, and physical
// resource naming.
package cfn

import "encoding/json"

// RequestType is the lifecycle operation CloudFormation is asking for.
type RequestType string

const (
	RequestCreate RequestType = "Create"
	RequestUpdate RequestType = "Update"
	RequestDelete RequestType = "Delete"
)

// Event is the custom resource lifecycle event CloudFormation delivers to the
// handler. Field names follow the custom resource wire format.
//
// ResourceProperties and OldResourceProperties are kept raw; each handler
// decodes them into its own typed properties struct.
type Event struct {
	// RequestType is Create, Update or Delete. Anything else is rejected
	// without remote calls.
	RequestType RequestType `json:"RequestType"`

	// RequestId, StackId and LogicalResourceId are opaque correlation ids,
	// echoed back verbatim in the terminal response.
	RequestID         string `json:"RequestId"`
	StackID           string `json:"StackId"`
	LogicalResourceID string `json:"LogicalResourceId"`

	// ResourceType is the declared custom resource type name.
	ResourceType string `json:"ResourceType,omitempty"`

	// PhysicalResourceID is present on Update and Delete: the identifier
	// assigned by the prior Create (role name or provider ARN).
	PhysicalResourceID string `json:"PhysicalResourceId,omitempty"`

	// ResponseURL is the pre-signed destination for the terminal response.
	ResponseURL string `json:"ResponseURL"`

	// ResourceProperties is the desired state declared in the template.
	ResourceProperties json.RawMessage `json:"ResourceProperties,omitempty"`

	// OldResourceProperties is the prior desired state, present on Update.
	OldResourceProperties json.RawMessage `json:"OldResourceProperties,omitempty"`
}

// StatusType is the terminal outcome reported back to CloudFormation.
type StatusType string

const (
	StatusSuccess StatusType = "SUCCESS"
	StatusFailed  StatusType = "FAILED"
)

// Response is the terminal response document PUT to the event's ResponseURL.
type Response struct {
	Status             StatusType        `json:"Status"`
	Reason             string            `json:"Reason,omitempty"`
	PhysicalResourceID string            `json:"PhysicalResourceId"`
	StackID            string            `json:"StackId"`
	RequestID          string            `json:"RequestId"`
	LogicalResourceID  string            `json:"LogicalResourceId"`
	Data               map[string]string `json:"Data,omitempty"`
}
