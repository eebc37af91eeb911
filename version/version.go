// Package version records the build identity of the cache proxy binary.
package version

import (
	"fmt"
	"io"
	"os"
)

// Package is the canonical import path the binary is built under.
var Package = "github.com/SiestaCat/dep-cache-proxy-server"

// Version is replaced at link time with the release tag being built.
var Version = "v0.1.0+unknown"

// Revision is filled with the VCS revision at link time.
var Revision = ""

// FprintVersion writes "<argv0> <package> <version>" to w, followed by a
// newline.
func FprintVersion(w io.Writer) {
	fmt.Fprintln(w, os.Args[0], Package, Version)
}

// PrintVersion writes the version line to stdout.
func PrintVersion() {
	FprintVersion(os.Stdout)
}
