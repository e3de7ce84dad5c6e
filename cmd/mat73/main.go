// Package main provides the mat73 CLI for inspecting MATLAB v7.3 MAT-files.
//
// Usage:
//
//	mat73 list run.mat other.mat
//	mat73 show run.mat speed --rows 20
//	mat73 show run.mat s --json
//	mat73 dump run.mat --offset 512 --length 96
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mat73:", err)
		os.Exit(exitError)
	}
}
