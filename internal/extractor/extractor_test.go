package extractor

import (
	"fmt"
	"sync"
	"testing"

	"github.com/standardbeagle/importcost/internal/types"
)

func TestExtractDefaultImport(t *testing.T) {
	src := []byte(`import chai from 'chai';`)
	decls, err := Extract("/src/app.js", src, types.JavaScript)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decls) != 1 {
		t.Fatalf("expected 1 declaration, got %d", len(decls))
	}
	if decls[0].Name != "chai" {
		t.Errorf("expected name chai, got %q", decls[0].Name)
	}
	if decls[0].String != `import _default from "chai";` {
		t.Errorf("unexpected canonical string: %q", decls[0].String)
	}
	if decls[0].Line != 1 {
		t.Errorf("expected line 1, got %d", decls[0].Line)
	}
}

func TestExtractNamedImportOrderIndependent(t *testing.T) {
	a, err := Extract("/src/a.js", []byte(`import { map, filter } from 'lodash';`), types.JavaScript)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Extract("/src/b.js", []byte(`import { filter, map } from 'lodash';`), types.JavaScript)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a[0].String != b[0].String {
		t.Errorf("expected order-independent canonical strings, got %q vs %q", a[0].String, b[0].String)
	}
}

func TestExtractLocalAliasDoesNotAffectCanonicalString(t *testing.T) {
	a, err := Extract("/src/a.js", []byte(`import { map as m } from 'lodash';`), types.JavaScript)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Extract("/src/b.js", []byte(`import { map } from 'lodash';`), types.JavaScript)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a[0].String != b[0].String {
		t.Errorf("expected alias-independent canonical strings, got %q vs %q", a[0].String, b[0].String)
	}
}

func TestExtractIgnoresRelativeImports(t *testing.T) {
	decls, err := Extract("/src/app.js", []byte(`import x from './local';`), types.JavaScript)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decls) != 0 {
		t.Fatalf("expected 0 declarations, got %d", len(decls))
	}
}

func TestExtractRequire(t *testing.T) {
	decls, err := Extract("/src/app.js", []byte(`const mocha = require('mocha');`), types.JavaScript)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decls) != 1 {
		t.Fatalf("expected 1 declaration, got %d", len(decls))
	}
	if decls[0].String != `const _default = require("mocha");` {
		t.Errorf("unexpected canonical string: %q", decls[0].String)
	}
}

func TestExtractDynamicImport(t *testing.T) {
	decls, err := Extract("/src/app.js", []byte(`async function f() { const m = await import('jest'); }`), types.JavaScript)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decls) != 1 {
		t.Fatalf("expected 1 declaration, got %d", len(decls))
	}
	if decls[0].Name != "jest" {
		t.Errorf("expected name jest, got %q", decls[0].Name)
	}
}

func TestExtractNamespaceImport(t *testing.T) {
	decls, err := Extract("/src/app.ts", []byte(`import * as React from 'react';`), types.TypeScript)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decls) != 1 {
		t.Fatalf("expected 1 declaration, got %d", len(decls))
	}
	if decls[0].String != `import * as _ns from "react";` {
		t.Errorf("unexpected canonical string: %q", decls[0].String)
	}
}

func TestExtractSideEffectImport(t *testing.T) {
	decls, err := Extract("/src/app.js", []byte(`import 'reflect-metadata';`), types.JavaScript)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decls) != 1 {
		t.Fatalf("expected 1 declaration, got %d", len(decls))
	}
	if decls[0].String != `import "reflect-metadata";` {
		t.Errorf("unexpected canonical string: %q", decls[0].String)
	}
}

func TestExtractSyntaxErrorIsParseError(t *testing.T) {
	_, err := Extract("/src/broken.js", []byte(`import { from 'chai'`), types.JavaScript)
	if err == nil {
		t.Fatal("expected an error for invalid syntax")
	}
}

func TestExtractVueScriptBlock(t *testing.T) {
	src := []byte("<template><div/></template>\n<script>\nimport Vuex from 'vuex';\n</script>\n")
	decls, err := Extract("/src/App.vue", src, types.Vue)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decls) != 1 {
		t.Fatalf("expected 1 declaration, got %d", len(decls))
	}
	if decls[0].Name != "vuex" {
		t.Errorf("expected name vuex, got %q", decls[0].Name)
	}
	if decls[0].Line != 3 {
		t.Errorf("expected line 3, got %d", decls[0].Line)
	}
}

func TestExtractSvelteTypeScriptScript(t *testing.T) {
	src := []byte("<script lang=\"ts\">\nimport { writable } from 'svelte/store';\n</script>\n<div></div>\n")
	decls, err := Extract("/src/App.svelte", src, types.Svelte)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decls) != 1 {
		t.Fatalf("expected 1 declaration, got %d", len(decls))
	}
	if decls[0].Name != "svelte/store" {
		t.Errorf("expected name svelte/store, got %q", decls[0].Name)
	}
}

// TestExtractConcurrentSameDialect exercises many goroutines calling Extract
// for the same dialect at once, the shape the orchestrator produces when
// several Run calls for different files are in flight together. Each call
// must check out its own pooled parser rather than racing a shared one.
func TestExtractConcurrentSameDialect(t *testing.T) {
	const n = 64
	var wg sync.WaitGroup
	errs := make([]error, n)
	counts := make([]int, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := []byte(fmt.Sprintf("import pkg%d from 'pkg%d';\n", i, i))
			decls, err := Extract(fmt.Sprintf("/src/app%d.js", i), src, types.JavaScript)
			errs[i] = err
			counts[i] = len(decls)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("goroutine %d: unexpected error: %v", i, errs[i])
		}
		if counts[i] != 1 {
			t.Fatalf("goroutine %d: expected 1 declaration, got %d", i, counts[i])
		}
	}
}
