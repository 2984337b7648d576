// Copyright 2025.
// SPDX-License-Identifier: Apache-2.0

// The oidc-provider-handler Lambda serves the Custom::ClusterOIDCProvider
// custom resource.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"

	"github.com/awslabs/amazon-eks-irsa-cfn/internal/cfn"
	"github.com/awslabs/amazon-eks-irsa-cfn/oidcprovider"
)

func main() {
	zapLog, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLog.Sync() //nolint:errcheck
	log := zapr.NewLogger(zapLog).WithName("oidc-provider-handler")

	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Error(err, "failed to load AWS configuration")
		os.Exit(1)
	}

	controller := oidcprovider.NewController(
		iam.NewFromConfig(cfg),
		eks.NewFromConfig(cfg),
		cfn.NewReporter(),
	)

	log.Info("Starting OIDC provider handler", "region", cfg.Region)

	lambda.Start(func(ctx context.Context, event cfn.Event) error {
		return controller.Handle(logr.NewContext(ctx, log), event)
	})
}
