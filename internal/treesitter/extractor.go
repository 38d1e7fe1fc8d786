// Package treesitter extracts function and type definitions from C and
// C++ sources.
package treesitter

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/sirupsen/logrus"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/lmarques/vulnhist/internal/models"
)

// Kind labels for type definitions.
const (
	KindStruct = "Struct"
	KindUnion  = "Union"
	KindClass  = "Class"
)

// qualifier matches scope qualifiers such as "Widget::" or
// "ns::Widget::". Stripping them lets out-of-line C++ method
// definitions parse as plain functions. The pattern never spans a
// newline, so line numbers survive the rewrite.
var qualifier = regexp.MustCompile(`\S+::`)

// Extractor parses sources of one language mode and lists the code
// units defined in them. Always call Close to release the parser
// (CGO requirement).
type Extractor struct {
	parser   *sitter.Parser
	language string
	log      *logrus.Logger
}

// NewExtractor creates an extractor for the given language mode,
// either "c" or "c++".
func NewExtractor(language string, logger *logrus.Logger) (*Extractor, error) {
	parser := sitter.NewParser()
	switch language {
	case "c":
		parser.SetLanguage(c.GetLanguage())
	case "c++":
		parser.SetLanguage(cpp.GetLanguage())
	default:
		parser.Close()
		return nil, fmt.Errorf("unsupported language: %s", language)
	}
	return &Extractor{parser: parser, language: language, log: logger}, nil
}

// Close releases the parser resources.
func (e *Extractor) Close() {
	e.parser.Close()
}

// Language returns the configured language mode.
func (e *Extractor) Language() string {
	return e.language
}

// ExtractFile reads one source file from disk and extracts its code
// units. Unreadable files yield empty lists.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (functions, classes []models.CodeUnit) {
	source, err := os.ReadFile(path)
	if err != nil {
		e.log.Errorf("Cannot read the file %s: %v", path, err)
		return nil, nil
	}
	return e.ExtractSource(ctx, path, source)
}

// ExtractSource extracts the function and type definitions of one
// source text. Definitions pulled in through includes never appear
// because only the given text is parsed. Unparsable sources yield
// empty lists.
func (e *Extractor) ExtractSource(ctx context.Context, path string, source []byte) (functions, classes []models.CodeUnit) {
	if e.language == "c++" {
		source = qualifier.ReplaceAll(source, nil)
	}

	tree, err := e.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		e.log.Errorf("Cannot parse the file %s: %v", path, err)
		return nil, nil
	}

	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}
		switch node.Type() {
		case "function_definition":
			// A function template is recorded with the span of its
			// template wrapper
			span := node
			if parent := node.Parent(); parent != nil && parent.Type() == "template_declaration" {
				span = parent
			}
			if unit, ok := functionUnit(node, span, source); ok {
				functions = append(functions, unit)
			}
		case "struct_specifier", "union_specifier", "class_specifier":
			span := node
			if parent := node.Parent(); parent != nil && parent.Type() == "template_declaration" {
				span = parent
			}
			if unit, ok := typeUnit(node, span, source); ok {
				classes = append(classes, unit)
			}
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i))
		}
	}
	walk(tree.RootNode())

	return functions, classes
}

// functionUnit builds the code unit for a function definition.
func functionUnit(node, span *sitter.Node, source []byte) (models.CodeUnit, bool) {
	for declarator := node.ChildByFieldName("declarator"); declarator != nil; declarator = declarator.ChildByFieldName("declarator") {
		switch declarator.Type() {
		case "function_declarator":
			name := declaratorName(declarator, source)
			if name == "" {
				return models.CodeUnit{}, false
			}
			return models.CodeUnit{
				Name:      name,
				Signature: declarator.Content(source),
				Lines:     nodeLines(span),
			}, true
		case "operator_cast":
			// Conversion operators carry no declarator identifier
			typeNode := declarator.ChildByFieldName("type")
			if typeNode == nil {
				return models.CodeUnit{}, false
			}
			return models.CodeUnit{
				Name:      "operator " + typeNode.Content(source),
				Signature: declarator.Content(source),
				Lines:     nodeLines(span),
			}, true
		}
	}
	return models.CodeUnit{}, false
}

// declaratorName returns the innermost identifier of a function
// declarator, covering plain names, member names, destructors, and
// operators.
func declaratorName(declarator *sitter.Node, source []byte) string {
	node := declarator.ChildByFieldName("declarator")
	for node != nil {
		switch node.Type() {
		case "identifier", "field_identifier", "type_identifier", "destructor_name", "operator_name":
			return node.Content(source)
		}
		node = node.ChildByFieldName("declarator")
	}
	return ""
}

// typeUnit builds the code unit for a struct, union, or class
// definition. Forward declarations have no body and unnamed types have
// no usable name; both are skipped.
func typeUnit(node, span *sitter.Node, source []byte) (models.CodeUnit, bool) {
	if node.ChildByFieldName("body") == nil {
		return models.CodeUnit{}, false
	}
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return models.CodeUnit{}, false
	}
	name := nameNode.Content(source)

	var kind string
	switch {
	case span != node:
		// Templated types are labeled Class regardless of keyword
		kind = KindClass
	case node.Type() == "struct_specifier":
		kind = KindStruct
	case node.Type() == "union_specifier":
		kind = KindUnion
	default:
		kind = KindClass
	}

	return models.CodeUnit{
		Name:      name,
		Signature: name,
		Kind:      kind,
		Lines:     nodeLines(span),
	}, true
}

// nodeLines converts a node span to one-based line numbers.
func nodeLines(node *sitter.Node) models.LineRange {
	return models.LineRange{
		Begin: int(node.StartPoint().Row) + 1,
		End:   int(node.EndPoint().Row) + 1,
	}
}
