// Package tools contains the tools served by charcount.
package tools

import (
	"context"
	"fmt"
	"time"
	"unicode/utf16"

	"github.com/felixgeelhaar/charcount/middleware"
	"github.com/felixgeelhaar/charcount/protocol"
	"github.com/felixgeelhaar/charcount/server"
)

// CountCharactersName is the registered tool name.
const CountCharactersName = "countCharacters"

// CountCharactersInput is the argument object of countCharacters.
type CountCharactersInput struct {
	Text string `json:"text" jsonschema:"required,description=The text to count characters in"`
}

// CountCharacters returns the number of UTF-16 code units in s, which is
// what JavaScript clients see as the string's length. Invalid UTF-8 bytes
// decode to U+FFFD and count once each.
func CountCharacters(s string) int {
	n := 0
	for _, r := range s {
		if w := utf16.RuneLen(r); w > 0 {
			n += w
		} else {
			n++
		}
	}
	return n
}

// CountCharactersMessage formats the tool's reply for a count.
func CountCharactersMessage(count int) string {
	return fmt.Sprintf("The text has %d characters.", count)
}

// NewCountCharacters builds the countCharacters tool. logger receives debug
// diagnostics for each call and may be nil.
func NewCountCharacters(logger middleware.Logger) *server.ToolBuilder {
	if logger == nil {
		logger = middleware.NopLogger{}
	}

	return server.NewTool(CountCharactersName).
		Description("Count the number of characters in a text").
		Title("Character Counter").
		ReadOnly().
		Idempotent().
		ClosedWorld().
		ValidateInput().
		Handler(func(ctx context.Context, in CountCharactersInput) (*protocol.CallToolResult, error) {
			start := time.Now()
			count := CountCharacters(in.Text)
			result := protocol.NewTextResult(CountCharactersMessage(count))

			logger.Debug("countCharacters",
				middleware.F("request_id", middleware.RequestIDFromContext(ctx)),
				middleware.F("input_bytes", len(in.Text)),
				middleware.F("count", count),
				middleware.F("duration", time.Since(start)),
				middleware.F("output", result.Text()),
			)
			return result, nil
		})
}
