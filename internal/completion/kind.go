package completion

import "github.com/woxQAQ/completion-bridge/pkg/protocol"

// kindLabels maps protocol completion kinds to the labels shown in the menu.
// Consumers match on these strings, keep them stable.
var kindLabels = map[protocol.CompletionItemKind]string{
	protocol.CompletionItemKindText:          "Text",
	protocol.CompletionItemKindMethod:        "Method",
	protocol.CompletionItemKindFunction:      "Function",
	protocol.CompletionItemKindConstructor:   "Constructor",
	protocol.CompletionItemKindField:         "Field",
	protocol.CompletionItemKindVariable:      "Variable",
	protocol.CompletionItemKindClass:         "Class",
	protocol.CompletionItemKindInterface:     "Interface",
	protocol.CompletionItemKindModule:        "Module",
	protocol.CompletionItemKindProperty:      "Property",
	protocol.CompletionItemKindUnit:          "Unit",
	protocol.CompletionItemKindValue:         "Value",
	protocol.CompletionItemKindEnum:          "Enum",
	protocol.CompletionItemKindKeyword:       "Keyword",
	protocol.CompletionItemKindSnippet:       "Snippet",
	protocol.CompletionItemKindColor:         "Color",
	protocol.CompletionItemKindFile:          "File",
	protocol.CompletionItemKindReference:     "Reference",
	protocol.CompletionItemKindFolder:        "Folder",
	protocol.CompletionItemKindEnumMember:    "EnumMember",
	protocol.CompletionItemKindConstant:      "Constant",
	protocol.CompletionItemKindStruct:        "Struct",
	protocol.CompletionItemKindEvent:         "Event",
	protocol.CompletionItemKindOperator:      "Operator",
	protocol.CompletionItemKindTypeParameter: "TypeParameter",
}

// KindLabel returns the menu label for kind, or "" when the kind is unknown.
func KindLabel(kind protocol.CompletionItemKind) string {
	return kindLabels[kind]
}
