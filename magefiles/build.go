//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for the neurodata module using Mage.
//
// Usage:
//
//	mage build          Compile every package
//	mage test:all       Run all tests
//	mage test:race      Run all tests with the race detector
//	mage test:cover     Run all tests and write coverage.out
//	mage test:store     Run the store tests only
//	mage lint           Run golangci-lint
//	mage clean          Remove build artifacts
//	mage stats          Print Go LOC and namespace word counts
package main

import (
	"os"

	"github.com/magefile/mage/sh"
)

const (
	binGo        = "go"
	coverProfile = "coverage.out"
	specDir      = "pkg/fiberphotometry/spec"
)

// Build compiles every package in the module.
func Build() error {
	return sh.RunV(binGo, "build", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.Remove(coverProfile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return sh.RunV(binGo, "clean", "-testcache")
}
