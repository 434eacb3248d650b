// Utilities for parsing cURL commands copied from the browser's network tab.
package shared

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
)

// APIKeyHeader is the request header carrying the server credential.
const APIKeyHeader = "X-API-Key"

var (
	headerRegex = regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"`)
	cookieRegex = regexp.MustCompile(`-b\s+'([^']+)'|-b\s+"([^"]+)"`)
	urlRegex    = regexp.MustCompile(`'(https?://[^']+)'|"(https?://[^"]+)"|(https?://\S+)`)
)

// CurlRequest represents the parsed URL, headers and cookies of a cURL command.
type CurlRequest struct {
	URL     string
	Headers map[string]string
	Cookie  string
}

// ParseCurlFile reads a .sh file containing a cURL command and extracts the request.
func ParseCurlFile(filepath string) (*CurlRequest, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}

	return ParseCurlCommand(string(content))
}

// ParseCurlCommand parses a cURL command string and extracts its URL, headers and cookie.
func ParseCurlCommand(curlCmd string) (*CurlRequest, error) {
	curlCmd = strings.ReplaceAll(curlCmd, "\\\n", " ")
	curlCmd = strings.ReplaceAll(curlCmd, "\\", "")

	headers := make(map[string]string)
	var cookie, headerCookie string

	for _, match := range headerRegex.FindAllStringSubmatch(curlCmd, -1) {
		headerLine := firstGroup(match)

		parts := strings.SplitN(headerLine, ":", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if strings.EqualFold(key, "cookie") {
			if headerCookie == "" {
				headerCookie = value
			}
			continue
		}
		headers[key] = value
	}

	if m := cookieRegex.FindStringSubmatch(curlCmd); m != nil {
		cookie = firstGroup(m)
	}
	if cookie == "" {
		cookie = headerCookie
	}

	// Header values such as Referer also hold URLs.
	rest := cookieRegex.ReplaceAllString(headerRegex.ReplaceAllString(curlCmd, ""), "")

	var rawURL string
	if m := urlRegex.FindStringSubmatch(rest); m != nil {
		rawURL = firstGroup(m)
	}

	if len(headers) == 0 && cookie == "" && rawURL == "" {
		return nil, fmt.Errorf("%w: no url, headers or cookies found in curl command", ErrInvalidInput)
	}

	return &CurlRequest{URL: rawURL, Headers: headers, Cookie: cookie}, nil
}

// APIKey returns the X-API-Key header, falling back to an api_key query parameter
// (the form used by the event stream URL).
func (c *CurlRequest) APIKey() (string, error) {
	for key, value := range c.Headers {
		if strings.EqualFold(key, APIKeyHeader) && value != "" {
			return value, nil
		}
	}

	if c.URL != "" {
		if u, err := url.Parse(c.URL); err == nil {
			if key := u.Query().Get("api_key"); key != "" {
				return key, nil
			}
		}
	}

	return "", fmt.Errorf("%w: no %s header or api_key parameter in curl command", ErrMissingCredentials, APIKeyHeader)
}

// BaseURL returns the scheme and host of the request URL.
func (c *CurlRequest) BaseURL() (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: curl command has no absolute url", ErrInvalidInput)
	}
	return u.Scheme + "://" + u.Host, nil
}

func firstGroup(match []string) string {
	for _, g := range match[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}
