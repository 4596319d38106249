package extractor

import (
	"fmt"
	"sync"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/standardbeagle/importcost/internal/types"
)

// languageCache holds one compiled, immutable tree_sitter.Language per
// dialect. A Language is safe to share across goroutines once built; it is
// the *Parser* bound to it that carries mutable per-parse state and must not
// be shared, so only this lookup is mutex-guarded.
var (
	languageMu    sync.Mutex
	languageCache = map[types.Language]*tree_sitter.Language{}
)

func languageFor(lang types.Language) (*tree_sitter.Language, error) {
	languageMu.Lock()
	defer languageMu.Unlock()

	if l, ok := languageCache[lang]; ok {
		return l, nil
	}

	var languagePtr unsafe.Pointer
	switch lang {
	case types.JavaScript:
		languagePtr = tree_sitter_javascript.Language()
	case types.TypeScript:
		languagePtr = tree_sitter_typescript.LanguageTypescript()
	default:
		return nil, fmt.Errorf("extractor: unsupported language %v", lang)
	}

	l := tree_sitter.NewLanguage(languagePtr)
	languageCache[lang] = l
	return l, nil
}

// parserPools holds one sync.Pool of *tree_sitter.Parser per dialect, in the
// teacher's getParser/ReleaseParserToPool style (internal/parser/parser.go:
// "This enables true parallel parsing..."), so two goroutines extracting the
// same dialect concurrently each check out their own Parser instead of
// racing Parse calls on one shared instance.
var (
	parserPoolsMu sync.Mutex
	parserPools   = map[types.Language]*sync.Pool{}
)

func poolFor(lang types.Language) *sync.Pool {
	parserPoolsMu.Lock()
	defer parserPoolsMu.Unlock()

	pool, ok := parserPools[lang]
	if !ok {
		pool = &sync.Pool{}
		parserPools[lang] = pool
	}
	return pool
}

// acquireParser checks out a *tree_sitter.Parser already bound to lang's
// Language, creating one if the pool is empty. Callers must releaseParser it
// when done.
func acquireParser(lang types.Language) (*tree_sitter.Parser, error) {
	language, err := languageFor(lang)
	if err != nil {
		return nil, err
	}

	pool := poolFor(lang)
	if v := pool.Get(); v != nil {
		return v.(*tree_sitter.Parser), nil
	}

	parser := tree_sitter.NewParser()
	if err := parser.SetLanguage(language); err != nil {
		return nil, err
	}
	return parser, nil
}

func releaseParser(lang types.Language, parser *tree_sitter.Parser) {
	poolFor(lang).Put(parser)
}
