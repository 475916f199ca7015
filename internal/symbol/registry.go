// Package symbol implements the Symbol Extractor (SPEC_FULL.md §4.2):
// per-language declarative tree-sitter query documents (pattern -> capture)
// that identify definitions, qualify method names against their enclosing
// type, and produce a truncated signature for each chunk.
//
// The query-document style is grounded on standardbeagle-lci's
// internal/parser/parser_language_setup.go ("(function_declaration name:
// (identifier) @function.name) @function") rather than the teacher's own
// manual-AST-walk parser, since the teacher never expresses symbol
// extraction declaratively. Ancestor lookup for qualifying method names
// reuses the teacher's findChildByType-style manual walk
// (internal/indexer/parsers/treesitter.go), so a query finds candidate
// definitions and a small walk resolves the enclosing type.
package symbol

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// languageSpec binds a language ID to its grammar, query document, and the
// node kinds a method's enclosing type can be.
type languageSpec struct {
	language      *sitter.Language
	query         string
	enclosingKind map[string]bool // node kinds that own methods (class, struct, impl, trait)
}

// Registry holds one compiled *sitter.Query per language with a grammar.
type Registry struct {
	specs   map[string]languageSpec
	queries map[string]*sitter.Query
}

// NewRegistry compiles every built-in language's query document. A
// compile failure for one language is fatal at startup (fail-fast,
// matching the RE2 separator-registration style in internal/lang): a
// malformed declarative query is a programming error, not a runtime
// condition callers should handle per-file.
func NewRegistry() (*Registry, error) {
	specs := builtinSpecs()
	queries := make(map[string]*sitter.Query, len(specs))

	for id, spec := range specs {
		q, queryErr := sitter.NewQuery(spec.language, spec.query)
		if queryErr != nil {
			return nil, fmt.Errorf("symbol: compile query for %s: %w", id, queryErr)
		}
		queries[id] = q
	}

	return &Registry{specs: specs, queries: queries}, nil
}

// HasGrammar reports whether languageID has a compiled query.
func (r *Registry) HasGrammar(languageID string) bool {
	_, ok := r.queries[languageID]
	return ok
}

func builtinSpecs() map[string]languageSpec {
	return map[string]languageSpec{
		"go": {
			language: sitter.NewLanguage(tree_sitter_go.Language()),
			query: `
				(function_declaration name: (identifier) @function.name) @function
				(method_declaration
					receiver: (parameter_list) @method.receiver
					name: (field_identifier) @method.name) @method
				(type_declaration (type_spec name: (type_identifier) @type.name)) @type
			`,
		},
		"python": {
			language:      sitter.NewLanguage(tree_sitter_python.Language()),
			enclosingKind: kinds("class_definition"),
			query: `
				(function_definition name: (identifier) @function.name) @function
				(class_definition name: (identifier) @class.name) @class
			`,
		},
		"typescript": {
			language:      sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
			enclosingKind: kinds("class_declaration"),
			query: `
				(function_declaration name: (identifier) @function.name) @function
				(method_definition name: (property_identifier) @method.name) @method
				(class_declaration name: (type_identifier) @class.name) @class
				(interface_declaration name: (type_identifier) @interface.name) @interface
				(type_alias_declaration name: (type_identifier) @type.name) @type
				(enum_declaration name: (identifier) @enum.name) @enum
			`,
		},
		"javascript": {
			language:      sitter.NewLanguage(tree_sitter_javascript.Language()),
			enclosingKind: kinds("class_declaration"),
			query: `
				(function_declaration name: (identifier) @function.name) @function
				(generator_function_declaration name: (identifier) @function.name) @function
				(method_definition name: (property_identifier) @method.name) @method
				(class_declaration name: (identifier) @class.name) @class
			`,
		},
		"rust": {
			language:      sitter.NewLanguage(tree_sitter_rust.Language()),
			enclosingKind: kinds("impl_item", "trait_item"),
			query: `
				(impl_item body: (declaration_list (function_item name: (identifier) @method.name))) @method
				(trait_item body: (declaration_list (function_item name: (identifier) @method.name))) @method
				(function_item name: (identifier) @function.name) @function
				(struct_item name: (type_identifier) @struct.name) @struct
				(enum_item name: (type_identifier) @enum.name) @enum
				(trait_item name: (type_identifier) @interface.name) @interface
			`,
		},
		"java": {
			language:      sitter.NewLanguage(tree_sitter_java.Language()),
			enclosingKind: kinds("class_declaration", "interface_declaration", "enum_declaration", "record_declaration"),
			query: `
				(method_declaration name: (identifier) @method.name) @method
				(constructor_declaration name: (identifier) @constructor.name) @constructor
				(class_declaration name: (identifier) @class.name) @class
				(record_declaration name: (identifier) @class.name) @class
				(interface_declaration name: (identifier) @interface.name) @interface
				(enum_declaration name: (identifier) @enum.name) @enum
			`,
		},
		"c": {
			language: sitter.NewLanguage(tree_sitter_c.Language()),
			query: `
				(function_definition declarator: (function_declarator declarator: (identifier) @function.name)) @function
				(struct_specifier name: (type_identifier) @struct.name) @struct
				(enum_specifier name: (type_identifier) @enum.name) @enum
			`,
		},
		"php": {
			language:      sitter.NewLanguage(tree_sitter_php.LanguagePHP()),
			enclosingKind: kinds("class_declaration", "interface_declaration", "trait_declaration"),
			query: `
				(class_declaration name: (name) @class.name) @class
				(interface_declaration name: (name) @interface.name) @interface
				(trait_declaration name: (name) @trait.name) @trait
				(enum_declaration name: (name) @enum.name) @enum
				(function_definition name: (name) @function.name) @function
				(method_declaration name: (name) @method.name) @method
			`,
		},
		"ruby": {
			language:      sitter.NewLanguage(tree_sitter_ruby.Language()),
			enclosingKind: kinds("class", "module"),
			query: `
				(method name: (identifier) @method.name) @method
				(singleton_method name: (identifier) @method.name) @method
				(class name: (constant) @class.name) @class
				(module name: (constant) @module.name) @module
			`,
		},
	}
}

func kinds(values ...string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}
