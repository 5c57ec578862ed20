package codegen

import "fmt"

// Context size bounds for one file. Very large files are cut to head+tail
// with an explicit elision marker so the generator sees both the imports
// and the trailing definitions.
const (
	maxContextBytes = 48 * 1024
	headBytes       = 32 * 1024
	tailBytes       = 12 * 1024
)

// BuildFileContext packages one file's current content for the generation
// request, truncating oversized files.
func BuildFileContext(path string, data []byte) FileContext {
	if len(data) <= maxContextBytes {
		return FileContext{Path: path, Content: string(data)}
	}

	elided := len(data) - headBytes - tailBytes
	content := string(data[:headBytes]) +
		fmt.Sprintf("\n... [%d bytes elided] ...\n", elided) +
		string(data[len(data)-tailBytes:])

	return FileContext{Path: path, Content: content, Truncated: true}
}
