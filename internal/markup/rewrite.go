package markup

import "strings"

// LinkRewrite turns a hosting site's viewer link into its embeddable form.
// A URL containing HostMarker and From has the first From replaced by To.
type LinkRewrite struct {
	HostMarker string
	From       string
	To         string
}

// DefaultRewrites covers Google Drive file links.
var DefaultRewrites = []LinkRewrite{
	{HostMarker: "drive.google.com", From: "/view", To: "/preview"},
}

// RewriteLink applies the first matching rule. URLs that match no rule,
// including malformed ones, are returned unchanged.
func RewriteLink(url string, rules []LinkRewrite) string {
	for _, r := range rules {
		if r.HostMarker == "" || r.From == "" {
			continue
		}
		if strings.Contains(url, r.HostMarker) && strings.Contains(url, r.From) {
			return strings.Replace(url, r.From, r.To, 1)
		}
	}
	return url
}
