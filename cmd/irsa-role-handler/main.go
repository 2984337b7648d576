// Copyright 2025.
// SPDX-License-Identifier: Apache-2.0

// The irsa-role-handler Lambda serves the Custom::IRSARole custom resource.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"

	"github.com/awslabs/amazon-eks-irsa-cfn/internal/cfn"
	"github.com/awslabs/amazon-eks-irsa-cfn/irsarole"
)

func main() {
	zapLog, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLog.Sync() //nolint:errcheck
	log := zapr.NewLogger(zapLog).WithName("irsa-role-handler")

	// Clients are built once during cold start and reused across warm
	// invocations.
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Error(err, "failed to load AWS configuration")
		os.Exit(1)
	}

	iamClient := iam.NewFromConfig(cfg)

	controller := irsarole.NewController(
		iamClient,
		eks.NewFromConfig(cfg),
		sts.NewFromConfig(cfg),
		iam.NewRoleExistsWaiter(iamClient),
		cfn.NewReporter(),
	)

	log.Info("Starting IRSA role handler", "region", cfg.Region)

	lambda.Start(func(ctx context.Context, event cfn.Event) error {
		return controller.Handle(logr.NewContext(ctx, log), event)
	})
}
