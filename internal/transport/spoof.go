package transport

import (
	"math/rand/v2"
	"net/http"
)

var browserUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// spoofingTransport는 요청마다 브라우저 헤더를 덮어씁니다.
// 서명 헤더(OK-ACCESS-*)는 건드리지 않습니다.
type spoofingTransport struct {
	base   http.RoundTripper
	pickUA func() string
}

func newSpoofingTransport(base http.RoundTripper) *spoofingTransport {
	return &spoofingTransport{
		base: base,
		pickUA: func() string {
			return browserUserAgents[rand.IntN(len(browserUserAgents))]
		},
	}
}

func (t *spoofingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.pickUA())
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,ko;q=0.8")
	req.Header.Set("Cache-Control", "no-cache")
	return t.base.RoundTrip(req)
}
