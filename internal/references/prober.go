package references

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	authorizationHeaderConstant        = "Authorization"
	authorizationTemplateConstant      = "Token %s"
	userAgentHeaderConstant            = "User-Agent"
	userAgentValueConstant             = "matrix-lint"
	httpSchemeConstant                 = "http"
	httpsSchemeConstant                = "https"
	fragmentPrefixConstant             = "#"
	defaultHTTPPortConstant            = "80"
	defaultHTTPSPortConstant           = "443"
	responseDrainLimitConstant         = 64 << 10
	unsupportedSchemeTemplateConstant  = "unsupported url scheme %q"
	invalidURLTemplateConstant         = "invalid url %q: %w"
	unexpectedStatusTemplateConstant   = "unexpected status %d"
	emptyURLMessageConstant            = "empty url"
	missingProbeBaseURLMessageConstant = "probe base url must be absolute"
)

// DefaultProbeTimeout bounds a single probe when no timeout is configured.
const DefaultProbeTimeout = 15 * time.Second

var (
	// ErrProbeBaseURLInvalid indicates a relative or missing repository base URL.
	ErrProbeBaseURLInvalid = errors.New(missingProbeBaseURLMessageConstant)

	skippedSchemes = map[string]struct{}{
		"data":       {},
		"mailto":     {},
		"javascript": {},
		"tel":        {},
	}
)

// HTTPClient executes probe requests.
type HTTPClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// ProberConfiguration describes the repository the prober treats as internal.
type ProberConfiguration struct {
	BaseURL *url.URL
	Token   string
	Timeout time.Duration
}

// ProbeResult is the classification of one URL.
type ProbeResult struct {
	URL        string
	Status     Status
	StatusCode int
	Internal   bool
	Err        error
}

// Detail describes the result for reports.
func (result ProbeResult) Detail() string {
	if result.Err != nil {
		return result.Err.Error()
	}
	if result.StatusCode != 0 && result.Status != StatusValid {
		return http.StatusText(result.StatusCode)
	}
	return ""
}

// Prober checks URL reachability with a single GET per call.
type Prober struct {
	httpClient HTTPClient
	baseURL    *url.URL
	token      string
	timeout    time.Duration
}

// NewProber constructs a Prober. A nil httpClient is replaced by http.DefaultClient.
func NewProber(httpClient HTTPClient, configuration ProberConfiguration) (*Prober, error) {
	if configuration.BaseURL == nil || !configuration.BaseURL.IsAbs() || len(configuration.BaseURL.Host) == 0 {
		return nil, ErrProbeBaseURLInvalid
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	timeout := configuration.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	baseURL := *configuration.BaseURL
	return &Prober{
		httpClient: httpClient,
		baseURL:    &baseURL,
		token:      strings.TrimSpace(configuration.Token),
		timeout:    timeout,
	}, nil
}

// Probe fetches rawURL once. 200 is Valid, 404 is NotFound, anything else
// including transport failures is Unreachable. Non-network URLs are Skipped.
func (prober *Prober) Probe(executionContext context.Context, rawURL string) ProbeResult {
	trimmedURL := strings.TrimSpace(rawURL)
	if len(trimmedURL) == 0 {
		return ProbeResult{URL: trimmedURL, Status: StatusSkipped, Err: errors.New(emptyURLMessageConstant)}
	}
	if strings.HasPrefix(trimmedURL, fragmentPrefixConstant) {
		return ProbeResult{URL: trimmedURL, Status: StatusSkipped}
	}

	parsedURL, parseError := url.Parse(trimmedURL)
	if parseError != nil {
		return ProbeResult{URL: trimmedURL, Status: StatusUnreachable, Err: fmt.Errorf(invalidURLTemplateConstant, trimmedURL, parseError)}
	}

	scheme := strings.ToLower(parsedURL.Scheme)
	if _, skipped := skippedSchemes[scheme]; skipped {
		return ProbeResult{URL: trimmedURL, Status: StatusSkipped}
	}

	resolvedURL := prober.baseURL.ResolveReference(parsedURL)
	result := ProbeResult{URL: resolvedURL.String(), Internal: prober.IsInternal(resolvedURL)}

	resolvedScheme := strings.ToLower(resolvedURL.Scheme)
	if resolvedScheme != httpSchemeConstant && resolvedScheme != httpsSchemeConstant {
		result.Status = StatusUnreachable
		result.Err = fmt.Errorf(unsupportedSchemeTemplateConstant, resolvedURL.Scheme)
		return result
	}

	probeContext, cancel := context.WithTimeout(executionContext, prober.timeout)
	defer cancel()

	request, requestError := http.NewRequestWithContext(probeContext, http.MethodGet, result.URL, nil)
	if requestError != nil {
		result.Status = StatusUnreachable
		result.Err = requestError
		return result
	}
	request.Header.Set(userAgentHeaderConstant, userAgentValueConstant)
	if result.Internal && len(prober.token) > 0 {
		request.Header.Set(authorizationHeaderConstant, fmt.Sprintf(authorizationTemplateConstant, prober.token))
	}

	response, responseError := prober.httpClient.Do(request)
	if responseError != nil {
		result.Status = StatusUnreachable
		result.Err = responseError
		return result
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, responseDrainLimitConstant))

	result.StatusCode = response.StatusCode
	switch response.StatusCode {
	case http.StatusOK:
		result.Status = StatusValid
	case http.StatusNotFound:
		result.Status = StatusNotFound
	default:
		result.Status = StatusUnreachable
		result.Err = fmt.Errorf(unexpectedStatusTemplateConstant, response.StatusCode)
	}
	return result
}

// IsInternal reports whether target shares the repository origin.
func (prober *Prober) IsInternal(target *url.URL) bool {
	if target == nil {
		return false
	}
	return origin(target) == origin(prober.baseURL)
}

func origin(target *url.URL) string {
	scheme := strings.ToLower(target.Scheme)
	port := target.Port()
	if len(port) == 0 {
		switch scheme {
		case httpSchemeConstant:
			port = defaultHTTPPortConstant
		case httpsSchemeConstant:
			port = defaultHTTPSPortConstant
		}
	}
	return scheme + "://" + strings.ToLower(target.Hostname()) + ":" + port
}
