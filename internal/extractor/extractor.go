// Package extractor implements the import extractor: given a source file and
// its dialect, it returns every external import declaration (including
// require and dynamic import() calls nested inside functions), each
// carrying a canonical re-materialized string so that equivalent import
// clauses (same specifier, same bindings, different order or aliasing)
// collapse to the same cache/fingerprint key.
package extractor

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	ierrors "github.com/standardbeagle/importcost/internal/errors"
	"github.com/standardbeagle/importcost/internal/types"
)

// Extract parses source as language and returns one ImportDeclaration per
// distinct import/require/dynamic-import statement whose specifier is not a
// relative path. Vue and Svelte sources are narrowed to their <script> block
// first; see component.go.
//
// A syntax error anywhere in the file is fatal: the teacher's pipeline treats
// a parse failure as disqualifying for the whole file rather than attempting
// partial recovery, and the same rule carries over here as ParseError.
func Extract(fileName string, source []byte, language types.Language) ([]types.ImportDeclaration, error) {
	content, scriptLine, err := scriptBlock(source, language)
	if err != nil {
		return nil, ierrors.NewParseError(fileName, 0, err)
	}

	dialect := language
	if language == types.Vue || language == types.Svelte {
		dialect = scriptDialect(source, language)
	}

	parser, err := acquireParser(dialect)
	if err != nil {
		return nil, ierrors.NewParseError(fileName, 0, err)
	}
	defer releaseParser(dialect, parser)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, ierrors.NewParseError(fileName, scriptLine, errParse("parser returned no tree"))
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		errNode := firstErrorNode(root)
		pos := errNode.StartPosition()
		return nil, ierrors.NewParseError(fileName, scriptLine+int(pos.Row)+1, errParse("unexpected syntax"))
	}

	w := &walker{fileName: fileName, content: content, scriptLine: scriptLine, seen: map[string]bool{}}
	w.walk(root)
	return w.out, nil
}

type walker struct {
	fileName   string
	content    []byte
	scriptLine int
	seen       map[string]bool
	out        []types.ImportDeclaration
}

func (w *walker) walk(node tree_sitter.Node) {
	switch node.Kind() {
	case "import_statement":
		w.emitESM(node)
	case "call_expression":
		w.emitCall(node)
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil {
			w.walk(*child)
		}
	}
}

// emitESM handles "import ... from 'x'" and "import 'x'" statements; dynamic
// import('x') calls are handled by emitCall.
func (w *walker) emitESM(node tree_sitter.Node) {
	sourceNode := node.ChildByFieldName("source")
	if sourceNode == nil {
		return
	}
	specifier := stringLiteralValue(w.content, *sourceNode)
	if specifier == "" {
		return
	}

	clauseText := ""
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if child.Kind() == "import_clause" {
			clauseText = string(w.content[child.StartByte():child.EndByte()])
			break
		}
	}

	w.emit(node, specifier, canonicalize(kindESM, specifier, clauseText))
}

// emitCall handles require('x') and dynamic import('x') calls, which the
// grammar represents as call_expression nodes with function "require" or the
// import keyword respectively.
func (w *walker) emitCall(node tree_sitter.Node) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}

	var k kind
	switch {
	case fn.Kind() == "import":
		k = kindDynamic
	case fn.Kind() == "identifier" && string(w.content[fn.StartByte():fn.EndByte()]) == "require":
		k = kindRequire
	default:
		return
	}

	args := node.ChildByFieldName("arguments")
	if args == nil {
		return
	}
	var sourceNode *tree_sitter.Node
	for i := uint(0); i < args.ChildCount(); i++ {
		child := args.Child(i)
		if child != nil && child.Kind() == "string" {
			n := *child
			sourceNode = &n
			break
		}
	}
	if sourceNode == nil {
		return
	}

	specifier := stringLiteralValue(w.content, *sourceNode)
	if specifier == "" {
		return
	}

	w.emit(node, specifier, canonicalize(k, specifier, ""))
}

func (w *walker) emit(node tree_sitter.Node, specifier, canonical string) {
	decl := types.ImportDeclaration{
		Name:     specifier,
		FileName: w.fileName,
		String:   canonical,
		Line:     w.scriptLine + int(node.StartPosition().Row) + 1,
	}
	if decl.IsRelative() {
		return
	}

	key := decl.FileName + "|" + decl.String + "|" + itoa(decl.Line)
	if w.seen[key] {
		return
	}
	w.seen[key] = true
	w.out = append(w.out, decl)
}

func stringLiteralValue(content []byte, node tree_sitter.Node) string {
	raw := strings.TrimSpace(string(content[node.StartByte():node.EndByte()]))
	if len(raw) < 2 {
		return ""
	}
	return raw[1 : len(raw)-1]
}

func firstErrorNode(node tree_sitter.Node) tree_sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.HasError() {
			return firstErrorNode(*child)
		}
	}
	return node
}

type parseErr string

func (e parseErr) Error() string { return string(e) }

func errParse(msg string) error { return parseErr(msg) }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
