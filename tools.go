//go:build tools
// +build tools

// Package tools tracks mockgen as a module dependency so `go generate`
// works on a fresh checkout.
package tools

import (
	_ "go.uber.org/mock/mockgen"
)
