package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// TrackingPixelURL returns the open-tracking pixel URL for a sent message.
func TrackingPixelURL(baseURL, token string) string {
	return fmt.Sprintf("%s/tracking/open/%s", baseURL, token)
}

// ClickTrackURL wraps a link so the click is recorded before redirecting.
func ClickTrackURL(baseURL, token, originalURL string) string {
	return fmt.Sprintf("%s/tracking/click/%s?url=%s", baseURL, token, url.QueryEscape(originalURL))
}

// UnsubscribeURL returns the one-click unsubscribe link for a sent message.
func UnsubscribeURL(baseURL, token string) string {
	return fmt.Sprintf("%s/tracking/unsubscribe/%s", baseURL, token)
}

// InjectTracking rewrites links for click tracking and appends the open pixel
// and an unsubscribe footer to the rendered body.
func InjectTracking(htmlContent, baseURL, token string) string {
	modified := injectClickTracking(htmlContent, baseURL, token)

	pixel := fmt.Sprintf(`<img src="%s" alt="" width="1" height="1" style="display:none">`,
		TrackingPixelURL(baseURL, token))
	footer := fmt.Sprintf(`<p style="font-size:11px;color:#999"><a href="%s">Unsubscribe</a></p>`,
		UnsubscribeURL(baseURL, token))

	return modified + footer + pixel
}

func injectClickTracking(html, baseURL, token string) string {
	const startTag = `<a href="`
	const endTag = `"`
	offset := 0

	for {
		startIdx := strings.Index(html[offset:], startTag)
		if startIdx == -1 {
			break
		}
		startIdx += offset + len(startTag)

		endIdx := strings.Index(html[startIdx:], endTag)
		if endIdx == -1 {
			break
		}
		endIdx += startIdx

		originalURL := html[startIdx:endIdx]
		if strings.HasPrefix(originalURL, baseURL) {
			offset = endIdx
			continue
		}
		trackedURL := ClickTrackURL(baseURL, token, originalURL)

		html = html[:startIdx] + trackedURL + html[endIdx:]
		offset = startIdx + len(trackedURL)
	}

	return html
}
