package protocol

// ContentTypeText is the content block type for plain text.
const ContentTypeText = "text"

// TextContent is a text content block in a tool result.
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult is the result payload of tools/call.
type CallToolResult struct {
	Content []TextContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// NewTextResult returns a result holding a single text block.
func NewTextResult(text string) *CallToolResult {
	return &CallToolResult{
		Content: []TextContent{{Type: ContentTypeText, Text: text}},
	}
}

// Text returns the concatenated text of all text blocks.
func (r *CallToolResult) Text() string {
	if r == nil {
		return ""
	}
	var out string
	for _, c := range r.Content {
		if c.Type == ContentTypeText {
			out += c.Text
		}
	}
	return out
}
