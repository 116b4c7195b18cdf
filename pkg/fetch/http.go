package fetch

import (
	"context"
	"net/http"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// newHTTPClient builds the plain HTTP document engine. The transport mimics
// a desktop browser's TLS handshake and headers.
func newHTTPClient(opts Options) *resty.Client {
	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	client.SetHeader("Accept-Language", "en-US,en;q=0.9")
	if opts.DocumentTimeout > 0 {
		client.SetTimeout(opts.DocumentTimeout)
	}
	return client
}

func (f *Fetcher) fetchHTTP(ctx context.Context, url string) (*goquery.Document, error) {
	f.emit(Transition{URL: url, Mode: ModeDocument, State: StateNavigating, Attempt: 1})

	resp, err := f.http.R().SetContext(ctx).Get(url)
	if err != nil {
		navErr := &NavigationError{URL: url, Attempts: 1, Err: err}
		f.emit(Transition{URL: url, Mode: ModeDocument, State: StateFailed, Attempt: 1, Err: navErr})
		f.log.Errorf("%v", navErr)
		return nil, navErr
	}
	if resp.StatusCode() != http.StatusOK {
		err := &NavigationError{URL: url, Status: resp.StatusCode(), Attempts: 1}
		f.emit(Transition{URL: url, Mode: ModeDocument, State: StateFailed, Attempt: 1, Status: resp.StatusCode(), Err: err})
		f.log.Errorf("%v", err)
		return nil, err
	}

	f.emit(Transition{URL: url, Mode: ModeDocument, State: StateReady, Attempt: 1, Status: resp.StatusCode()})
	return parseDocument(resp.String())
}
