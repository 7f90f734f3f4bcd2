package invite

import "strings"

var invitePrefixes = []string{
	"discord.gg/",
	"discord.com/invite/",
	"discordapp.com/invite/",
}

// NormalizeCode accepts either a bare invite code or an invite URL
// (https://discord.gg/abc123, discord.com/invite/abc123) and returns the code.
func NormalizeCode(token string) string {
	code := strings.TrimSpace(token)
	if code == "" {
		return ""
	}

	lower := strings.ToLower(code)
	for _, scheme := range []string{"https://", "http://"} {
		if strings.HasPrefix(lower, scheme) {
			code = code[len(scheme):]
			lower = lower[len(scheme):]
			break
		}
	}
	if strings.HasPrefix(lower, "www.") {
		code = code[len("www."):]
		lower = lower[len("www."):]
	}

	for _, prefix := range invitePrefixes {
		if strings.HasPrefix(lower, prefix) {
			code = code[len(prefix):]
			break
		}
	}

	if i := strings.IndexAny(code, "/?#"); i >= 0 {
		code = code[:i]
	}

	return code
}
