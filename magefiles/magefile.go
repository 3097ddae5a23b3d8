//go:build mage

// Package main contains Mage build targets for poseconvert.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binDir  = "bin"
	binName = "poseconvert"
	cmdPkg  = "./cmd/poseconvert"
)

// Default target when mage runs without arguments.
var Default = Build

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	if err := sh.RunV("go", "build", "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests. Integration tests skip unless their
// POSECONVERT_* environment variables are set.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Vet runs go vet over the module.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Convert builds the CLI and converts the default model registry.
func Convert() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName))
}

// Doctor builds the CLI and checks the exporter environment.
func Doctor() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "doctor")
}

// Clean removes build output.
func Clean() error {
	return sh.Rm(binDir)
}
