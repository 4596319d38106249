// Package resolver implements the package resolver: given a source file and
// an external import specifier, it locates the installed package on disk and
// reads the manifest fields the sizer needs to build an accurate externals
// list for bundling.
package resolver

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/standardbeagle/importcost/internal/types"
)

// ErrPackageNotFound is returned when no node_modules/<pkg> directory is
// found walking up from the source file.
var ErrPackageNotFound = errors.New("resolver: package not found in any node_modules")

type manifest struct {
	Version          string            `json:"version"`
	PeerDependencies map[string]string `json:"peerDependencies"`
	ImportCost       struct {
		Externals []string `json:"externals"`
	} `json:"importCost"`
}

// Resolve walks filepath.Dir(fileName) upward through parent directories
// (the teacher's FindProjectRoot style, internal/indexing/project_initializer.go)
// looking for node_modules/<pkg>/package.json, where pkg is the top-level
// package name of specifier (types.PackageName handles the scoped-package
// and path-suffix cases). The nearest match wins, matching Node's own
// resolution order.
func Resolve(fileName, specifier string) (*types.PackageInfo, error) {
	pkgName := types.PackageName(specifier)
	if pkgName == "" {
		return nil, ErrPackageNotFound
	}

	dir := filepath.Dir(fileName)
	for {
		pkgDir := filepath.Join(dir, "node_modules", pkgName)
		info, err := os.Stat(pkgDir)
		if err == nil && info.IsDir() {
			return readPackageInfo(pkgDir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return nil, ErrPackageNotFound
}

func readPackageInfo(pkgDir string) (*types.PackageInfo, error) {
	raw, err := os.ReadFile(filepath.Join(pkgDir, "package.json"))
	if err != nil {
		return nil, ErrPackageNotFound
	}

	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}

	version := m.Version
	if version == "" {
		version = types.UnknownVersion
	}

	peers := make(map[string]bool, len(m.PeerDependencies))
	for name := range m.PeerDependencies {
		peers[name] = true
	}

	externals := make(map[string]bool, len(m.ImportCost.Externals))
	for _, pattern := range m.ImportCost.Externals {
		externals[pattern] = true
	}

	return &types.PackageInfo{
		Directory:        pkgDir,
		Version:          version,
		PeerDependencies: peers,
		MainExternals:    externals,
	}, nil
}
