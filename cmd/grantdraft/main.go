// Package main provides the grantdraft binary entry point.
// grantdraft keeps the version history of a grant proposal draft and serves
// it over gRPC.
package main

import (
	"fmt"
	"os"
	"runtime"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "grantdraft"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := newApp(os.Stdin, os.Stdout, os.Stderr).rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
