package mailing

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// anchorPattern matches a complete <a ...href="...">...</a> element. The
// inner text match is non-greedy, so nested or adjacent anchors each match
// on their own. Only double-quoted href values are recognized; anything the
// pattern does not match passes through untouched.
var anchorPattern = regexp.MustCompile(`(?s)<a(\s[^>]*?)href="([^"]*)"([^>]*)>(.*?)</a>`)

// Rewriter instruments outbound HTML with click-through links and an open
// pixel pointing back at this service.
type Rewriter struct {
	baseURL string
}

// NewRewriter creates a rewriter. baseURL is the public origin of this
// service, without a trailing slash.
func NewRewriter(baseURL string) *Rewriter {
	return &Rewriter{baseURL: strings.TrimRight(baseURL, "/")}
}

// RewriteLinks replaces every anchor's href with a redirect through
// /api/click, carrying the tracking ID and the percent-encoded original
// destination. mailto: and fragment links are left byte-identical, as are
// anchors the pattern does not recognize. All other attributes and the inner
// text survive verbatim.
//
// Relative hrefs are rewritten like absolute ones, so their redirect target
// resolves against the click host rather than the original page.
// TODO: absolutize relative hrefs against a configured site origin before
// wrapping them.
func (r *Rewriter) RewriteLinks(html, trackingID string) string {
	return anchorPattern.ReplaceAllStringFunc(html, func(match string) string {
		parts := anchorPattern.FindStringSubmatch(match)
		if parts == nil {
			return match
		}
		href := parts[2]
		if strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "#") {
			return match
		}
		tracked := fmt.Sprintf("%s/api/click?id=%s&url=%s",
			r.baseURL, url.QueryEscape(trackingID), url.QueryEscape(href))
		return "<a" + parts[1] + `href="` + tracked + `"` + parts[3] + ">" + parts[4] + "</a>"
	})
}

// InjectPixel appends a 1x1 open-tracking pixel to the HTML, before the
// closing body tag when one exists.
func (r *Rewriter) InjectPixel(html, trackingID string) string {
	pixel := fmt.Sprintf(`<img src="%s/api/pixel/%s" width="1" height="1" style="display:none" />`,
		r.baseURL, url.PathEscape(trackingID))

	if strings.Contains(html, "</body>") {
		return strings.Replace(html, "</body>", pixel+"</body>", 1)
	}
	return html + pixel
}

// Instrument applies both link rewriting and pixel injection.
func (r *Rewriter) Instrument(html, trackingID string) string {
	return r.InjectPixel(r.RewriteLinks(html, trackingID), trackingID)
}
