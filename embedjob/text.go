package embedjob

import (
	"fmt"
	"strings"

	"github.com/poiesic/vecload/core"
)

// textSeparator joins the columns of one row.
const textSeparator = "\n\n"

// charsPerToken is the rough English ratio used to estimate token usage.
const charsPerToken = 4

// JoinColumns builds the text embedded for a row by joining the named
// columns in order. Missing and NULL columns contribute an empty string.
func JoinColumns(row core.Payload, columns []string) string {
	parts := make([]string, len(columns))
	for i, col := range columns {
		switch v := row[col].(type) {
		case nil:
		case string:
			parts[i] = v
		default:
			parts[i] = fmt.Sprint(v)
		}
	}
	return strings.Join(parts, textSeparator)
}

// EstimateTokens approximates the token count of texts, never returning
// less than one token per text.
func EstimateTokens(texts []string) int64 {
	var total int64
	for _, text := range texts {
		total += max(int64(len(text)/charsPerToken), 1)
	}
	return total
}
