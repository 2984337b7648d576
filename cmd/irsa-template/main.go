// Copyright 2025.
// SPDX-License-Identifier: Apache-2.0

// irsa-template renders a CloudFormation template wiring a cluster OIDC
// provider and an IRSA role through the custom resource handlers. Useful for
// authoring and for inspecting what the construct facade produces.
package main

import (
	"fmt"
	"os"

	"github.com/awslabs/goformation/v4/cloudformation"
	"github.com/spf13/cobra"

	"github.com/awslabs/amazon-eks-irsa-cfn/construct"
)

type templateOptions struct {
	clusterName       string
	namespace         string
	serviceAccount    string
	roleName          string
	description       string
	sessionDuration   int32
	managedPolicyArns []string
	roleToken         string
	providerToken     string
	output            string
}

func main() {
	opts := &templateOptions{}

	cmd := &cobra.Command{
		Use:   "irsa-template",
		Short: "Render a CloudFormation template for an IRSA role and OIDC provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			return render(opts)
		},
	}

	cmd.Flags().StringVar(&opts.clusterName, "cluster", "", "EKS cluster name (required)")
	cmd.Flags().StringVar(&opts.namespace, "namespace", "", "Kubernetes namespace (defaults to \"default\")")
	cmd.Flags().StringVar(&opts.serviceAccount, "service-account", "", "Kubernetes service account name (required)")
	cmd.Flags().StringVar(&opts.roleName, "role-name", "", "explicit role name (generated when omitted)")
	cmd.Flags().StringVar(&opts.description, "description", "", "role description")
	cmd.Flags().Int32Var(&opts.sessionDuration, "max-session-duration", 0, "maximum session duration in seconds (3600-43200)")
	cmd.Flags().StringSliceVar(&opts.managedPolicyArns, "managed-policy-arn", nil, "managed policy ARN to attach (repeatable)")
	cmd.Flags().StringVar(&opts.roleToken, "role-service-token", "", "ARN of the IRSA role handler function (required)")
	cmd.Flags().StringVar(&opts.providerToken, "provider-service-token", "", "ARN of the OIDC provider handler function (required)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the template to a file instead of stdout")

	cobra.CheckErr(cmd.MarkFlagRequired("cluster"))
	cobra.CheckErr(cmd.MarkFlagRequired("service-account"))
	cobra.CheckErr(cmd.MarkFlagRequired("role-service-token"))
	cobra.CheckErr(cmd.MarkFlagRequired("provider-service-token"))

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func render(opts *templateOptions) error {
	template := cloudformation.NewTemplate()
	template.Description = fmt.Sprintf("IRSA identities for cluster %s", opts.clusterName)

	if _, err := construct.NewClusterOIDCProvider(template, "ClusterOIDCProvider", construct.ClusterOIDCProviderProps{
		ServiceToken: opts.providerToken,
		ClusterName:  opts.clusterName,
	}); err != nil {
		return err
	}

	role, err := construct.NewServiceAccountRole(template, "ServiceAccountRole", construct.ServiceAccountRoleProps{
		ServiceToken:       opts.roleToken,
		ClusterName:        opts.clusterName,
		Namespace:          opts.namespace,
		ServiceAccount:     opts.serviceAccount,
		RoleName:           opts.roleName,
		Description:        opts.description,
		MaxSessionDuration: opts.sessionDuration,
		ManagedPolicyArns:  opts.managedPolicyArns,
	})
	if err != nil {
		return err
	}

	template.Outputs["RoleArn"] = cloudformation.Output{
		Description: "ARN of the service account role",
		Value:       role.RoleArn(),
	}

	body, err := template.JSON()
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	if opts.output == "" {
		fmt.Println(string(body))
		return nil
	}
	return os.WriteFile(opts.output, body, 0o644)
}
