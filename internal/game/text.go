package game

import (
	"strings"
	"unicode/utf8"
)

// minWrapWidth stops tiny client windows from wrapping every word.
const minWrapWidth = 20

// WrapText inserts soft line breaks so each line fits within width columns.
// Paragraph breaks are kept and words longer than a line are split.
func WrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	width = max(width, minWrapWidth)
	paragraphs := strings.Split(text, "\n")
	for i, line := range paragraphs {
		paragraphs[i] = wrapLine(strings.Fields(line), width)
	}
	return strings.Join(paragraphs, "\n")
}

func wrapLine(words []string, width int) string {
	var lines []string
	var current strings.Builder
	col := 0
	flush := func() {
		if col > 0 {
			lines = append(lines, current.String())
			current.Reset()
			col = 0
		}
	}
	for _, word := range words {
		for utf8.RuneCountInString(word) > width {
			flush()
			runes := []rune(word)
			lines = append(lines, string(runes[:width]))
			word = string(runes[width:])
		}
		n := utf8.RuneCountInString(word)
		if col > 0 && col+1+n > width {
			flush()
		}
		if col > 0 {
			current.WriteByte(' ')
			col++
		}
		current.WriteString(word)
		col += n
	}
	flush()
	return strings.Join(lines, "\n")
}

// Columns lays names out left to right in as many padded columns as fit in
// width.
func Columns(names []string, width int) []string {
	if len(names) == 0 {
		return nil
	}
	widest := 0
	for _, name := range names {
		widest = max(widest, utf8.RuneCountInString(name))
	}
	cell := widest + 2
	perRow := max(1, width/cell)
	var rows []string
	for start := 0; start < len(names); start += perRow {
		end := min(start+perRow, len(names))
		var row strings.Builder
		for i, name := range names[start:end] {
			row.WriteString(name)
			if start+i < end-1 {
				row.WriteString(strings.Repeat(" ", cell-utf8.RuneCountInString(name)))
			}
		}
		rows = append(rows, row.String())
	}
	return rows
}
