// Copyright 2025.
// SPDX-License-Identifier: Apache-2.0

package irsarole_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/awslabs/amazon-eks-irsa-cfn/internal/cfn"
	"github.com/awslabs/amazon-eks-irsa-cfn/irsarole"
)

var _ = Describe("Role Controller", func() {
	var (
		rec        *awsRecorder
		controller *irsarole.Controller
		server     *httptest.Server

		mu        sync.Mutex
		responses []cfn.Response
	)

	BeforeEach(func() {
		rec = newAWSRecorder()
		responses = nil

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var resp cfn.Response
			Expect(json.NewDecoder(r.Body).Decode(&resp)).To(Succeed())
			mu.Lock()
			responses = append(responses, resp)
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
		DeferCleanup(server.Close)

		names := cfn.NewNameGeneratorWithSuffix(func(n int) string {
			return strings.Repeat("Z", n)
		})

		controller = irsarole.NewController(
			&fakeIAM{rec: rec},
			&fakeEKS{rec: rec},
			&fakeSTS{rec: rec},
			&fakeWaiter{rec: rec},
			cfn.NewReporter(),
			irsarole.WithNameGenerator(names),
		)
	})

	newEvent := func(requestType cfn.RequestType, props, oldProps map[string]interface{}) cfn.Event {
		event := cfn.Event{
			RequestType:       requestType,
			RequestID:         "req-1",
			StackID:           "arn:aws:cloudformation:us-east-1:123456789012:stack/test/abc",
			LogicalResourceID: "MyServiceAccountRole",
			ResponseURL:       server.URL,
		}
		if props != nil {
			raw, err := json.Marshal(props)
			Expect(err).NotTo(HaveOccurred())
			event.ResourceProperties = raw
		}
		if oldProps != nil {
			raw, err := json.Marshal(oldProps)
			Expect(err).NotTo(HaveOccurred())
			event.OldResourceProperties = raw
		}
		return event
	}

	baseProps := func() map[string]interface{} {
		return map[string]interface{}{
			"ClusterName":    "prod",
			"Namespace":      "payments",
			"ServiceAccount": "app",
		}
	}

	lastResponse := func() cfn.Response {
		mu.Lock()
		defer mu.Unlock()
		Expect(responses).To(HaveLen(1))
		return responses[0]
	}

	Describe("Create", func() {
		It("provisions the role and reports the generated physical id", func() {
			props := baseProps()
			props["InlinePolicies"] = map[string]interface{}{
				"s3-read": map[string]interface{}{"Version": "2012-10-17"},
			}
			props["ManagedPolicyArns"] = []string{"arn:aws:iam::aws:policy/ReadOnlyAccess"}

			Expect(controller.Handle(context.Background(), newEvent(cfn.RequestCreate, props, nil))).To(Succeed())

			resp := lastResponse()
			Expect(resp.Status).To(Equal(cfn.StatusSuccess))
			Expect(resp.PhysicalResourceID).To(Equal("MyServiceAccountRole-ZZZZZZZZZZZZ"))
			Expect(resp.Data).To(HaveKeyWithValue("Arn",
				"arn:aws:iam::123456789012:role/MyServiceAccountRole-ZZZZZZZZZZZZ"))
			Expect(resp.Data).To(HaveKey("RoleId"))

			Expect(rec.callNames()).To(Equal([]string{
				"GetCallerIdentity",
				"DescribeCluster",
				"CreateRole",
				"WaitForRole",
				"PutRolePolicy",
				"AttachRolePolicy",
			}))
		})

		It("uses the explicit role name when supplied", func() {
			props := baseProps()
			props["RoleName"] = "payments-app"

			Expect(controller.Handle(context.Background(), newEvent(cfn.RequestCreate, props, nil))).To(Succeed())

			Expect(lastResponse().PhysicalResourceID).To(Equal("payments-app"))
		})

		It("builds the federated trust policy from account and issuer", func() {
			Expect(controller.Handle(context.Background(), newEvent(cfn.RequestCreate, baseProps(), nil))).To(Succeed())

			Expect(rec.createdRoles).To(HaveLen(1))
			policy := *rec.createdRoles[0].AssumeRolePolicyDocument
			Expect(policy).To(ContainSubstring(
				"arn:aws:iam::123456789012:oidc-provider/oidc.eks.us-east-1.amazonaws.com/id/EBAABEEF"))
			Expect(policy).To(ContainSubstring("system:serviceaccount:payments:app"))
			Expect(policy).To(ContainSubstring("sts.amazonaws.com"))
		})

		DescribeTable("reports exactly one FAILED response when a remote call fails",
			func(failingCall string, expectedAfter []string) {
				rec.failWith(failingCall, errors.New("simulated "+failingCall+" outage"))

				props := baseProps()
				props["InlinePolicies"] = map[string]interface{}{
					"s3-read": map[string]interface{}{"Version": "2012-10-17"},
				}
				props["ManagedPolicyArns"] = []string{"arn:aws:iam::aws:policy/ReadOnlyAccess"}

				Expect(controller.Handle(context.Background(), newEvent(cfn.RequestCreate, props, nil))).To(Succeed())

				resp := lastResponse()
				Expect(resp.Status).To(Equal(cfn.StatusFailed))
				Expect(resp.Reason).To(ContainSubstring("simulated " + failingCall + " outage"))
				Expect(resp.PhysicalResourceID).NotTo(BeEmpty())

				// Steps after the failing one must never have run.
				for _, call := range expectedAfter {
					Expect(rec.callNames()).NotTo(ContainElement(call))
				}
			},
			Entry("account resolution", "GetCallerIdentity",
				[]string{"DescribeCluster", "CreateRole", "WaitForRole", "PutRolePolicy", "AttachRolePolicy"}),
			Entry("cluster describe", "DescribeCluster",
				[]string{"CreateRole", "WaitForRole", "PutRolePolicy", "AttachRolePolicy"}),
			Entry("role creation", "CreateRole",
				[]string{"WaitForRole", "PutRolePolicy", "AttachRolePolicy"}),
			Entry("existence wait", "WaitForRole",
				[]string{"PutRolePolicy", "AttachRolePolicy"}),
			Entry("inline policy put", "PutRolePolicy",
				[]string{"AttachRolePolicy"}),
			Entry("managed policy attach", "AttachRolePolicy",
				[]string{}),
		)
	})

	Describe("Update", func() {
		It("detaches removed and attaches added managed policies only", func() {
			oldProps := baseProps()
			oldProps["ManagedPolicyArns"] = []string{"arn:aws:iam::aws:policy/A"}
			props := baseProps()
			props["ManagedPolicyArns"] = []string{"arn:aws:iam::aws:policy/B"}

			event := newEvent(cfn.RequestUpdate, props, oldProps)
			event.PhysicalResourceID = "payments-app"

			Expect(controller.Handle(context.Background(), event)).To(Succeed())

			resp := lastResponse()
			Expect(resp.Status).To(Equal(cfn.StatusSuccess))
			Expect(resp.PhysicalResourceID).To(Equal("payments-app"))

			Expect(rec.detachedArns).To(Equal([]string{"arn:aws:iam::aws:policy/A"}))
			Expect(rec.attachedArns).To(Equal([]string{"arn:aws:iam::aws:policy/B"}))
		})

		It("keeps unchanged managed policies untouched", func() {
			oldProps := baseProps()
			oldProps["ManagedPolicyArns"] = []string{"arn:aws:iam::aws:policy/A", "arn:aws:iam::aws:policy/B"}
			props := baseProps()
			props["ManagedPolicyArns"] = []string{"arn:aws:iam::aws:policy/B", "arn:aws:iam::aws:policy/C"}

			event := newEvent(cfn.RequestUpdate, props, oldProps)
			event.PhysicalResourceID = "payments-app"

			Expect(controller.Handle(context.Background(), event)).To(Succeed())

			Expect(rec.detachedArns).To(Equal([]string{"arn:aws:iam::aws:policy/A"}))
			Expect(rec.attachedArns).To(Equal([]string{"arn:aws:iam::aws:policy/C"}))
		})

		It("deletes removed inline policies and puts every desired one", func() {
			oldProps := baseProps()
			oldProps["InlinePolicies"] = map[string]interface{}{
				"p1": map[string]interface{}{"Version": "2012-10-17"},
			}
			props := baseProps()
			props["InlinePolicies"] = map[string]interface{}{
				"p2": map[string]interface{}{"Version": "2012-10-17"},
			}

			event := newEvent(cfn.RequestUpdate, props, oldProps)
			event.PhysicalResourceID = "payments-app"

			Expect(controller.Handle(context.Background(), event)).To(Succeed())

			Expect(rec.deletedInline).To(Equal([]string{"p1"}))
			Expect(rec.putPolicies).To(Equal([]string{"p2"}))
		})

		It("updates mutable scalar attributes", func() {
			props := baseProps()
			props["Description"] = "updated description"
			props["MaxSessionDuration"] = 7200

			event := newEvent(cfn.RequestUpdate, props, baseProps())
			event.PhysicalResourceID = "payments-app"

			Expect(controller.Handle(context.Background(), event)).To(Succeed())

			Expect(rec.updatedRoles).To(HaveLen(1))
			Expect(*rec.updatedRoles[0].MaxSessionDuration).To(Equal(int32(7200)))
			Expect(*rec.updatedRoles[0].Description).To(Equal("updated description"))
		})

		It("reports exactly one FAILED response when a remote call fails", func() {
			rec.failWith("UpdateRole", errors.New("simulated throttling"))

			event := newEvent(cfn.RequestUpdate, baseProps(), baseProps())
			event.PhysicalResourceID = "payments-app"

			Expect(controller.Handle(context.Background(), event)).To(Succeed())

			resp := lastResponse()
			Expect(resp.Status).To(Equal(cfn.StatusFailed))
			Expect(resp.Reason).To(ContainSubstring("simulated throttling"))
			Expect(resp.PhysicalResourceID).To(Equal("payments-app"))
		})
	})

	Describe("Delete", func() {
		It("detaches managed policies, deletes inline policies, then the role", func() {
			props := baseProps()
			props["InlinePolicies"] = map[string]interface{}{
				"p1": map[string]interface{}{"Version": "2012-10-17"},
			}
			props["ManagedPolicyArns"] = []string{"arn:aws:iam::aws:policy/A"}

			event := newEvent(cfn.RequestDelete, props, nil)
			event.PhysicalResourceID = "payments-app"

			Expect(controller.Handle(context.Background(), event)).To(Succeed())

			Expect(lastResponse().Status).To(Equal(cfn.StatusSuccess))
			Expect(rec.callNames()).To(Equal([]string{
				"DetachRolePolicy",
				"DeleteRolePolicy",
				"DeleteRole",
			}))
			Expect(rec.deletedRoles).To(Equal([]string{"payments-app"}))
		})

		It("treats an already absent role as success", func() {
			rec.failWith("DeleteRole", notFoundError())

			event := newEvent(cfn.RequestDelete, baseProps(), nil)
			event.PhysicalResourceID = "payments-app"

			Expect(controller.Handle(context.Background(), event)).To(Succeed())

			Expect(lastResponse().Status).To(Equal(cfn.StatusSuccess))
		})

		It("continues past already detached policies", func() {
			rec.failWith("DetachRolePolicy", notFoundError())

			props := baseProps()
			props["ManagedPolicyArns"] = []string{"arn:aws:iam::aws:policy/A"}

			event := newEvent(cfn.RequestDelete, props, nil)
			event.PhysicalResourceID = "payments-app"

			Expect(controller.Handle(context.Background(), event)).To(Succeed())

			Expect(lastResponse().Status).To(Equal(cfn.StatusSuccess))
			Expect(rec.callNames()).To(ContainElement("DeleteRole"))
		})

		It("propagates genuine delete errors", func() {
			rec.failWith("DeleteRole", errors.New("access denied"))

			event := newEvent(cfn.RequestDelete, baseProps(), nil)
			event.PhysicalResourceID = "payments-app"

			Expect(controller.Handle(context.Background(), event)).To(Succeed())

			resp := lastResponse()
			Expect(resp.Status).To(Equal(cfn.StatusFailed))
			Expect(resp.Reason).To(ContainSubstring("access denied"))
		})
	})

	Describe("Unsupported request types", func() {
		It("fails without any remote call", func() {
			event := newEvent("Bogus", baseProps(), nil)

			Expect(controller.Handle(context.Background(), event)).To(Succeed())

			resp := lastResponse()
			Expect(resp.Status).To(Equal(cfn.StatusFailed))
			Expect(resp.Reason).To(Equal("Unsupported request type Bogus"))
			Expect(rec.callNames()).To(BeEmpty())
		})

		It("renders an empty request type as undefined", func() {
			event := newEvent("", baseProps(), nil)

			Expect(controller.Handle(context.Background(), event)).To(Succeed())

			Expect(lastResponse().Reason).To(Equal("Unsupported request type undefined"))
		})
	})
})
