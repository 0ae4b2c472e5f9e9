// Package rules maps file extensions to language grammars and the
// node-kind sets that drive semantic chunking.
//
// A Rule is data rather than a per-language parser type: the extension
// set, the tree-sitter grammar loader, the node kinds that may become
// chunks, the subdivision map for oversized nodes, the "important
// variable" kinds, and the doc-comment pattern. internal/chunker walks
// any grammar generically against this data.
package rules

import (
	"regexp"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_css "github.com/tree-sitter/tree-sitter-css/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_html "github.com/tree-sitter/tree-sitter-html/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_json "github.com/tree-sitter/tree-sitter-json/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	tree_sitter_markdown "github.com/tree-sitter-grammars/tree-sitter-markdown/bindings/go"
	tree_sitter_sql "github.com/DerekStride/tree-sitter-sql/bindings/go"
)

// Rule describes how to parse and chunk one language.
type Rule struct {
	Language string
	// Grammar lazily constructs the tree-sitter Language (grammars are
	// not safe to share as package-level *Language values across all
	// bindings, so each rule gets a constructor).
	Grammar func() *sitter.Language
	// NodeTypes are the top-level AST node kinds eligible to become a
	// chunk on their own (SPEC_FULL §4.2 "Collect").
	NodeTypes map[string]bool
	// ContainerTypes is the subset of NodeTypes treated as a "container"
	// (class/interface/module/namespace/trait/enum) for the grouping
	// algorithm's semantic-group partition (SPEC_FULL §4.2 step 1).
	ContainerTypes map[string]bool
	// SubdivisionTypes names, for a parent node kind, the child kinds to
	// descend into when that parent's chunk would exceed max size.
	SubdivisionTypes map[string][]string
	// VariableTypes marks "important variable" declaration kinds that
	// survive EnrichParseResult's top-level-only filter.
	VariableTypes map[string]bool
	// NameFields are field names tried, in order, to resolve a node's
	// identifier (falls back to a depth-first identifier scan).
	NameFields []string
	// CommentPattern matches a contiguous trailing run of doc-comment
	// lines immediately preceding a chunkable node.
	CommentPattern *regexp.Regexp
}

var cLikeComment = regexp.MustCompile(`(?m)(?:^[ \t]*(?://[^\n]*|/\*.*?\*/)[ \t]*\n)+\z`)
var hashComment = regexp.MustCompile(`(?m)(?:^[ \t]*#[^\n]*\n)+\z`)
var sqlComment = regexp.MustCompile(`(?m)(?:^[ \t]*--[^\n]*\n)+\z`)
var htmlComment = regexp.MustCompile(`(?s)<!--.*?-->\s*\z`)

// Registry resolves a Rule by file extension.
type Registry struct {
	byExt map[string]*Rule
}

// NewRegistry builds the default registry covering the supported
// languages.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]*Rule)}

	goRule := &Rule{
		Language:       "go",
		Grammar:        func() *sitter.Language { return sitter.NewLanguage(tree_sitter_go.Language()) },
		NodeTypes:      set("function_declaration", "method_declaration", "type_declaration"),
		ContainerTypes: set("type_declaration"),
		SubdivisionTypes: map[string][]string{
			"type_declaration": {"method_declaration", "function_declaration"},
		},
		VariableTypes:  set("const_declaration", "var_declaration"),
		NameFields:     []string{"name"},
		CommentPattern: cLikeComment,
	}
	r.register(goRule, ".go")

	pyRule := &Rule{
		Language:       "python",
		Grammar:        func() *sitter.Language { return sitter.NewLanguage(tree_sitter_python.Language()) },
		NodeTypes:      set("function_definition", "class_definition"),
		ContainerTypes: set("class_definition"),
		SubdivisionTypes: map[string][]string{
			"class_definition": {"function_definition"},
		},
		VariableTypes:  set("assignment", "expression_statement"),
		NameFields:     []string{"name"},
		CommentPattern: hashComment,
	}
	r.register(pyRule, ".py")

	tsRule := &Rule{
		Language: "typescript",
		Grammar:  func() *sitter.Language { return sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()) },
		NodeTypes: set("function_declaration", "class_declaration", "interface_declaration",
			"enum_declaration", "type_alias_declaration"),
		ContainerTypes: set("class_declaration", "interface_declaration", "enum_declaration"),
		SubdivisionTypes: map[string][]string{
			"class_declaration":     {"method_definition", "public_field_definition"},
			"interface_declaration": {"method_signature", "property_signature"},
		},
		VariableTypes:  set("lexical_declaration", "variable_declaration"),
		NameFields:     []string{"name"},
		CommentPattern: cLikeComment,
	}
	r.register(tsRule, ".ts", ".tsx")

	jsRule := &Rule{
		Language:       "javascript",
		Grammar:        func() *sitter.Language { return sitter.NewLanguage(tree_sitter_javascript.Language()) },
		NodeTypes:      set("function_declaration", "class_declaration"),
		ContainerTypes: set("class_declaration"),
		SubdivisionTypes: map[string][]string{
			"class_declaration": {"method_definition", "field_definition"},
		},
		VariableTypes:  set("lexical_declaration", "variable_declaration"),
		NameFields:     []string{"name"},
		CommentPattern: cLikeComment,
	}
	r.register(jsRule, ".js", ".jsx", ".mjs", ".cjs")

	htmlRule := &Rule{
		Language:         "html",
		Grammar:          func() *sitter.Language { return sitter.NewLanguage(tree_sitter_html.Language()) },
		NodeTypes:        set("element", "script_element", "style_element"),
		ContainerTypes:   set("element"),
		SubdivisionTypes: map[string][]string{"element": {"element", "script_element", "style_element"}},
		VariableTypes:    set(),
		NameFields:       []string{"name", "tag_name"},
		CommentPattern:   htmlComment,
	}
	r.register(htmlRule, ".html", ".htm")

	cssRule := &Rule{
		Language:         "css",
		Grammar:          func() *sitter.Language { return sitter.NewLanguage(tree_sitter_css.Language()) },
		NodeTypes:        set("rule_set", "media_statement", "keyframes_statement"),
		ContainerTypes:   set("media_statement", "keyframes_statement"),
		SubdivisionTypes: map[string][]string{"media_statement": {"rule_set"}},
		VariableTypes:    set(),
		NameFields:       []string{"name"},
		CommentPattern:   cLikeComment,
	}
	r.register(cssRule, ".css", ".scss", ".sass")

	jsonRule := &Rule{
		Language:       "json",
		Grammar:        func() *sitter.Language { return sitter.NewLanguage(tree_sitter_json.Language()) },
		NodeTypes:      set("pair"),
		ContainerTypes: set(),
		VariableTypes:  set(),
		NameFields:     []string{"key"},
		CommentPattern: cLikeComment,
	}
	r.register(jsonRule, ".json")

	mdRule := &Rule{
		Language:       "markdown",
		Grammar:        func() *sitter.Language { return sitter.NewLanguage(tree_sitter_markdown.Language()) },
		NodeTypes:      set("atx_heading", "setext_heading", "fenced_code_block"),
		ContainerTypes: set("atx_heading", "setext_heading"),
		VariableTypes:  set(),
		NameFields:     []string{"heading_content"},
		CommentPattern: htmlComment,
	}
	r.register(mdRule, ".md", ".markdown")

	sqlRule := &Rule{
		Language:       "sql",
		Grammar:        func() *sitter.Language { return sitter.NewLanguage(tree_sitter_sql.Language()) },
		NodeTypes:      set("statement"),
		ContainerTypes: set(),
		VariableTypes:  set(),
		NameFields:     []string{"name"},
		CommentPattern: sqlComment,
	}
	r.register(sqlRule, ".sql")

	return r
}

func (r *Registry) register(rule *Rule, exts ...string) {
	for _, ext := range exts {
		r.byExt[ext] = rule
	}
}

// Lookup returns the rule for a file extension (lowercased, with dot).
func (r *Registry) Lookup(ext string) (*Rule, bool) {
	rule, ok := r.byExt[ext]
	return rule, ok
}

// Extensions returns all extensions covered by the registry.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}

func set(vals ...string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}
