package pathtree

import (
	"regexp"

	"github.com/paulschiretz/pgl-treesync/pkg/util"
)

// DateLayout is the layout used for the {date} token.
const DateLayout = "02/01/2006 15:04:05"

var formatToken = regexp.MustCompile(`\{([^}]+)\}`)

// Format renders a description of n from a pattern containing the tokens
// {type} ("d" or "f"), {name}, {size} (human readable) and {date} (file
// modification time in local time, empty for directories). Unknown tokens
// are left as they are.
func (n *Node) Format(pattern string) string {
	return formatToken.ReplaceAllStringFunc(pattern, func(token string) string {
		switch token[1 : len(token)-1] {
		case "type":
			return n.kind.String()
		case "name":
			return n.name
		case "size":
			return util.ByteCountIEC(n.Size())
		case "date":
			if n.kind == Directory {
				return ""
			}
			return n.modTime.Local().Format(DateLayout)
		default:
			return token
		}
	})
}
