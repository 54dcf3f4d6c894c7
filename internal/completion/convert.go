package completion

import (
	"encoding/json"
	"regexp"

	"github.com/woxQAQ/completion-bridge/pkg/protocol"
)

// VimItem is the flat completion record understood by the host editor's menu.
type VimItem struct {
	// Word is the text inserted into the buffer.
	Word string `json:"word"`
	// Abbr is the text shown in the menu.
	Abbr       string `json:"abbr"`
	Menu       string `json:"menu"`
	Kind       string `json:"kind"`
	SortText   string `json:"sortText"`
	FilterText string `json:"filterText"`
	IsSnippet  bool   `json:"isSnippet"`
	Info       string `json:"info,omitempty"`

	// UserData is an opaque string the host echoes back on resolve and done.
	UserData string `json:"user_data,omitempty"`
}

// Result is what the host receives for one completion request.
type Result struct {
	IsIncomplete bool      `json:"isIncomplete"`
	Items        []VimItem `json:"items"`
}

var lineBreaks = regexp.MustCompile(`(\r\n|\r|\n)+`)

// Convert flattens a protocol completion item into a menu record.
// Commit characters have no equivalent on the host side and are dropped.
func Convert(item protocol.CompletionItem, shortcut string) VimItem {
	v := VimItem{
		Word:       item.Label,
		Abbr:       item.Label,
		Menu:       "[" + shortcut + "]",
		Kind:       KindLabel(item.Kind),
		SortText:   item.Label,
		FilterText: item.Label,
		IsSnippet:  item.InsertTextFormat == protocol.InsertTextFormatSnippet,
	}

	if item.InsertText != "" {
		v.Word = item.InsertText
	}
	if item.Detail != "" {
		v.Menu = lineBreaks.ReplaceAllString(item.Detail, " ") + " " + v.Menu
	}
	if item.SortText != "" {
		v.SortText = item.SortText
	}
	if item.FilterText != "" {
		v.FilterText = item.FilterText
	}
	if item.Documentation != nil {
		v.Info = item.Documentation.Value
	}

	return v
}

// itemRef identifies a batch entry from the host's user_data.
type itemRef struct {
	Source string `json:"source"`
	Index  *int   `json:"index,omitempty"`
}

func encodeItemRef(source string, index int) string {
	data, err := json.Marshal(itemRef{Source: source, Index: &index})
	if err != nil {
		return ""
	}
	return string(data)
}

// parseItemRef decodes user_data. Anything unparseable belongs to someone else.
func parseItemRef(userData string) (itemRef, bool) {
	if userData == "" {
		return itemRef{}, false
	}

	var ref itemRef
	if err := json.Unmarshal([]byte(userData), &ref); err != nil {
		return itemRef{}, false
	}
	if ref.Source == "" {
		return itemRef{}, false
	}
	return ref, true
}
