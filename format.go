package kvstore

import "strings"

// FormatSuccess renders a command outcome in its wire form:
// "OK" for transaction control, "old new" for SET, the rendered value for
// GET. Value quoting rules live on Value.Render.
func FormatSuccess(result Result) string {
	switch result.kind {
	case ResultSet:
		return result.old.Render() + " " + result.new.Render()
	case ResultValue:
		return result.val.Render()
	default:
		return "OK"
	}
}

// FormatError renders an error response: ERR "<message>" with inner
// quotes escaped. The message is exactly the upstream error text.
func FormatError(err error) string {
	return `ERR "` + strings.ReplaceAll(err.Error(), `"`, `\"`) + `"`
}
