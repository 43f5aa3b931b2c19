//go:build tools
// +build tools

// Package tools pins the lint and test runner binaries so `go install` builds
// the versions recorded in go.mod.
package tools

import (
	_ "github.com/golangci/golangci-lint/cmd/golangci-lint"
	_ "github.com/onsi/ginkgo/ginkgo"
)
