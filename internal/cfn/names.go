// Copyright 2025.
// SPDX-License-Identifier: Apache-2.0

package cfn

import (
	"crypto/rand"
	"fmt"
)

const (
	// maxPhysicalNameLength is the IAM role name limit minus the headroom
	// other integrations (e.g. session names) assume.
	maxPhysicalNameLength = 63

	// suffixLength is the number of random characters appended to the
	// truncated logical id.
	suffixLength = 12

	suffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NameGenerator derives physical resource names from logical resource ids.
// The random source is injectable so tests can pin the suffix.
type NameGenerator struct {
	randomSuffix func(n int) string
}

// NewNameGenerator creates a NameGenerator backed by crypto/rand.
func NewNameGenerator() *NameGenerator {
	return &NameGenerator{randomSuffix: randomSuffix}
}

// NewNameGeneratorWithSuffix creates a NameGenerator with a fixed suffix
// function. Intended for tests.
func NewNameGeneratorWithSuffix(suffix func(n int) string) *NameGenerator {
	return &NameGenerator{randomSuffix: suffix}
}

// PhysicalName derives a collision-resistant physical name from a logical
// resource id: the id truncated to leave room for a hyphen and a fixed-length
// random suffix, never longer than 63 characters. The result becomes the
// durable physical resource id, so this must be called at most once per
// Create.
func (g *NameGenerator) PhysicalName(logicalID string) string {
	maxPrefix := maxPhysicalNameLength - suffixLength - 1
	prefix := logicalID
	if len(prefix) > maxPrefix {
		prefix = prefix[:maxPrefix]
	}
	return fmt.Sprintf("%s-%s", prefix, g.randomSuffix(suffixLength))
}

// randomSuffix draws n characters independently and uniformly from the
// uppercase alphanumeric alphabet.
func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure means the platform entropy source is broken;
		// there is no reasonable fallback for a collision-sensitive name.
		panic(fmt.Sprintf("failed to read random bytes: %v", err))
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return string(out)
}
