package pipeline

import "strings"

// ContextWindow holds the trailing translated lines carried between
// segment translations for stylistic continuity. When continuity
// cannot be derived it resets to a language-pair default.
type ContextWindow struct {
	current      string
	defaultValue string
}

func NewContextWindow(defaultValue string) *ContextWindow {
	return &ContextWindow{current: defaultValue, defaultValue: defaultValue}
}

// Current returns the window to prime the next translation call with.
func (c *ContextWindow) Current() string { return c.current }

// UpdateFromSegment derives the window from a translated segment's
// output. With at least 4 lines present it keeps the 3 lines preceding
// the last one; the last line is excluded because it is often a
// partial boundary artifact. Fewer lines reset to the default.
func (c *ContextWindow) UpdateFromSegment(output string) {
	lines := splitLines(output)
	if len(lines) >= 4 {
		c.current = strings.Join(lines[len(lines)-4:len(lines)-1], "\n")
		return
	}
	c.current = c.defaultValue
}

// UpdateFromLine derives the window from a single retried unit's
// output: the last 3 lines when at least 3 are present, otherwise the
// default.
func (c *ContextWindow) UpdateFromLine(output string) {
	lines := splitLines(output)
	if len(lines) >= 3 {
		c.current = strings.Join(lines[len(lines)-3:], "\n")
		return
	}
	c.current = c.defaultValue
}

func splitLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
