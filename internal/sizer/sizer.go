// Package sizer implements the bundle sizer: given a canonical import
// statement and the externals a production bundle would already supply, it
// measures the raw and gzipped byte weight esbuild would add for that import
// alone.
package sizer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	ierrors "github.com/standardbeagle/importcost/internal/errors"
	"github.com/standardbeagle/importcost/internal/resolver"
	"github.com/standardbeagle/importcost/internal/types"
)

// productionDefines mirrors the dead-code-elimination condition a real
// bundler build runs under; many packages branch their entire export surface
// on process.env.NODE_ENV and are far smaller in production.
var productionDefines = map[string]string{
	"process.env.NODE_ENV": `"production"`,
}

// Size writes decl's canonical import statement into a synthetic ephemeral
// entry file, bundles and minifies it with esbuild, and returns its raw and
// gzipped byte length. externals lists module specifiers (exact names or
// doublestar globs, per the package's peer dependencies, its declared
// importCost.externals entries, and Node builtins) that must not be inlined
// into the synthetic bundle.
//
// decl.Name is checked against externals via resolver.MatchesExternal before
// bundling: esbuild's own Externals matching only understands a single "*"
// wildcard, not doublestar's full glob syntax, and a decl that is itself
// externalized has nothing to measure — a production bundle never inlines it,
// so it costs 0 bytes. Only decl.Name needs this pre-check; the literal
// patterns are still passed to esbuild's Externals so anything the entry
// transitively pulls in during bundling is excluded too.
//
// A context deadline exceeded while esbuild is running surfaces as a
// TimeoutError; any other bundling failure surfaces as a BundleError. Both
// are soft, per-entry errors: the caller reports size=0, gzip=0 and moves on.
func Size(ctx context.Context, decl types.ImportDeclaration, externals []string) (types.SizeResult, error) {
	if resolver.MatchesExternal(externals, decl.Name) {
		return types.SizeResult{}, nil
	}

	workDir, err := os.MkdirTemp("", "importcost-"+uuid.NewString())
	if err != nil {
		return types.SizeResult{}, ierrors.NewBundleError(decl.String, fmt.Errorf("creating work dir: %w", err))
	}
	defer os.RemoveAll(workDir)

	entryPath := filepath.Join(workDir, "entry.js")
	if err := os.WriteFile(entryPath, []byte(decl.String), 0o644); err != nil {
		return types.SizeResult{}, ierrors.NewBundleError(decl.String, fmt.Errorf("writing entry file: %w", err))
	}

	type buildOutcome struct {
		result api.BuildResult
	}
	done := make(chan buildOutcome, 1)
	go func() {
		result := api.Build(api.BuildOptions{
			EntryPoints:       []string{entryPath},
			Bundle:            true,
			Format:            api.FormatESModule,
			Platform:          api.PlatformBrowser,
			MinifyWhitespace:  true,
			MinifyIdentifiers: true,
			MinifySyntax:      true,
			Defines:           productionDefines,
			Externals:         externals,
		})
		done <- buildOutcome{result: result}
	}()

	// api.Build has no cancellation hook, so a timeout here returns to the
	// caller immediately while the build goroutine finishes in the
	// background and its result is discarded into the buffered channel.
	select {
	case <-ctx.Done():
		return types.SizeResult{}, ierrors.NewTimeoutError(decl.String, deadlineDuration(ctx))
	case outcome := <-done:
		return finish(decl, outcome.result)
	}
}

func finish(decl types.ImportDeclaration, result api.BuildResult) (types.SizeResult, error) {
	if len(result.Errors) > 0 {
		return types.SizeResult{}, ierrors.NewBundleError(decl.String, fmt.Errorf("%s", result.Errors[0].Text))
	}

	var raw int
	for _, f := range result.OutputFiles {
		raw += len(f.Contents)
	}
	if raw == 0 {
		return types.SizeResult{}, nil
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	for _, f := range result.OutputFiles {
		if _, err := gw.Write(f.Contents); err != nil {
			return types.SizeResult{}, ierrors.NewBundleError(decl.String, fmt.Errorf("gzip: %w", err))
		}
	}
	if err := gw.Close(); err != nil {
		return types.SizeResult{}, ierrors.NewBundleError(decl.String, fmt.Errorf("gzip close: %w", err))
	}

	return types.SizeResult{Size: raw, Gzip: buf.Len()}, nil
}

func deadlineDuration(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return time.Until(deadline)
}
