package shell

import "github.com/kazz187/mysh/pkg/shellformat"

// previewSuffix marks a line for preview rather than execution: typed
// as the very last character, it asks to see how the line would be
// parsed instead of running it.
const previewSuffix = "?"

// IsPreview reports whether line ends with the preview-mode suffix and
// returns the line with the suffix stripped.
func IsPreview(line string) (string, bool) {
	if len(line) == 0 || line[len(line)-1:] != previewSuffix {
		return line, false
	}
	return line[:len(line)-1], true
}

// Preview renders how line would be parsed, without running it. It
// reuses the full POSIX-grammar formatter for output quality even
// though the shell itself only accepts the restricted grammar; a line
// outside that formatter's grasp falls back to echoing the raw text.
func Preview(line string) string {
	formatted, err := shellformat.Format(line)
	if err != nil {
		return line
	}
	return formatted
}
