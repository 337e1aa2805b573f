package coverage

// LineNumber converts a byte offset within text into a 1-based line
// number by counting newlines before the offset. Offsets at or below
// zero, and empty text, resolve to line 1. Offsets past the end of the
// text count every newline in it.
//
// The text must be the same source the offsets were sampled against;
// the classifiers always pass the full snapshot's text since it is a
// superset of the pre-paint capture.
func LineNumber(text string, offset int64) int64 {
	if offset <= 0 || len(text) == 0 {
		return 1
	}
	end := offset
	if end > int64(len(text)) {
		end = int64(len(text))
	}
	var line int64 = 1
	for i := int64(0); i < end; i++ {
		if text[i] == '\n' {
			line++
		}
	}
	return line
}
