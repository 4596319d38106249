package extractor

import (
	"fmt"
	"strings"

	"github.com/standardbeagle/importcost/internal/types"
)

// scriptBlock narrows a Vue single-file component or a Svelte component down
// to the contents of its <script> block, since tree-sitter's JS/TS grammars
// have no notion of the surrounding template/style sections. JavaScript and
// TypeScript sources pass through untouched.
//
// It returns the isolated script content and the 0-based line offset of the
// block's first line within the original file, so reported import line
// numbers stay faithful to the original source.
func scriptBlock(source []byte, language types.Language) (content []byte, lineOffset int, err error) {
	switch language {
	case types.Vue, types.Svelte:
	default:
		return source, 0, nil
	}

	text := string(source)
	openIdx := strings.Index(text, "<script")
	if openIdx < 0 {
		return nil, 0, fmt.Errorf("extractor: no <script> block found")
	}
	tagEnd := strings.IndexByte(text[openIdx:], '>')
	if tagEnd < 0 {
		return nil, 0, fmt.Errorf("extractor: unterminated <script> tag")
	}
	bodyStart := openIdx + tagEnd + 1

	closeIdx := strings.Index(text[bodyStart:], "</script>")
	if closeIdx < 0 {
		return nil, 0, fmt.Errorf("extractor: unterminated <script> block")
	}
	body := text[bodyStart : bodyStart+closeIdx]

	lineOffset = strings.Count(text[:bodyStart], "\n")
	return []byte(body), lineOffset, nil
}

// scriptDialect inspects a Vue/Svelte <script> opening tag's lang attribute
// to decide whether the isolated block should be parsed as JavaScript or
// TypeScript. Absent a lang attribute, both frameworks default to
// JavaScript.
func scriptDialect(source []byte, language types.Language) types.Language {
	text := string(source)
	openIdx := strings.Index(text, "<script")
	if openIdx < 0 {
		return types.JavaScript
	}
	tagEnd := strings.IndexByte(text[openIdx:], '>')
	if tagEnd < 0 {
		return types.JavaScript
	}
	tag := text[openIdx : openIdx+tagEnd]

	langIdx := strings.Index(tag, "lang=")
	if langIdx < 0 {
		return types.JavaScript
	}
	rest := tag[langIdx+len("lang="):]
	if len(rest) == 0 {
		return types.JavaScript
	}
	quote := rest[0]
	if quote != '"' && quote != '\'' {
		return types.JavaScript
	}
	end := strings.IndexByte(rest[1:], quote)
	if end < 0 {
		return types.JavaScript
	}
	switch rest[1 : 1+end] {
	case "ts", "tsx":
		return types.TypeScript
	default:
		return types.JavaScript
	}
}
