package command

import "strings"

// ParseResult holds the keyword and arguments of a prefixed chat line.
type ParseResult struct {
	// Command is the keyword after the prefix, lowercased.
	Command string
	// Args are the remaining words after the keyword.
	Args []string
	// RawArgs is the raw text after the keyword.
	RawArgs string
}

// Parse extracts a command from content.
//
// Precondition: prefix must be non-empty.
// Postcondition: Returns (result, true) when content starts with prefix
// followed by a keyword; otherwise (ParseResult{}, false).
func Parse(prefix, content string) (ParseResult, bool) {
	line := strings.TrimSpace(content)
	if !strings.HasPrefix(line, prefix) {
		return ParseResult{}, false
	}
	line = line[len(prefix):]
	if line == "" || line[0] == ' ' || line[0] == '\t' {
		return ParseResult{}, false
	}

	spaceIdx := strings.IndexAny(line, " \t")
	if spaceIdx < 0 {
		return ParseResult{Command: strings.ToLower(line)}, true
	}

	cmd := strings.ToLower(line[:spaceIdx])
	rest := strings.TrimSpace(line[spaceIdx+1:])

	var args []string
	if rest != "" {
		args = strings.Fields(rest)
	}

	return ParseResult{
		Command: cmd,
		Args:    args,
		RawArgs: rest,
	}, true
}
