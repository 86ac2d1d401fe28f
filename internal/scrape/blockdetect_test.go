package scrape

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock(t *testing.T) {
	t.Parallel()

	bigForm := "<html><body><form>" + strings.Repeat("<p>Write to us and we answer within a day.</p>", 200) +
		`<div class="g-recaptcha"></div></form></body></html>`

	tests := []struct {
		name   string
		status int
		header http.Header
		body   string
		want   BlockType
	}{
		{"cloudflare 403 ray", 403, http.Header{"Cf-Ray": {"abc123"}}, "", BlockCloudflare},
		{"cloudflare 503 server", 503, http.Header{"Server": {"cloudflare"}}, "", BlockCloudflare},
		{"challenge page", 200, http.Header{}, "<html>Checking your browser before accessing</html>", BlockCloudflare},
		{"captcha interstitial", 200, http.Header{}, "<html><body>Please complete the reCAPTCHA to continue</body></html>", BlockCaptcha},
		{"captcha on error page", 429, http.Header{}, bigForm, BlockCaptcha},
		{"captcha widget in contact form", 200, http.Header{}, bigForm, BlockNone},
		{"js shell", 200, http.Header{}, "<html><noscript>Please enable JavaScript to continue</noscript></html>", BlockJSShell},
		{"js shell with email", 200, http.Header{}, "<html><noscript>Enable JavaScript</noscript>hola@uno.es</html>", BlockNone},
		{"clean page", 200, http.Header{}, "<html><body>Welcome to Cafe Uno.</body></html>", BlockNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := &http.Response{StatusCode: tt.status, Header: tt.header}
			blocked, bt := DetectBlock(resp, []byte(tt.body))
			assert.Equal(t, tt.want != BlockNone, blocked)
			assert.Equal(t, tt.want, bt)
		})
	}
}

func TestDetectBlock_NilResponse(t *testing.T) {
	t.Parallel()

	blocked, bt := DetectBlock(nil, nil)
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, bt)
}
