package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/fatih/color"
)

// joinPath joins the base URL and an endpoint with exactly one slash at the
// seam, regardless of leading or trailing slashes on either operand. The
// join is idempotent.
func joinPath(baseURL, endpoint string) string {
	base := strings.TrimRight(baseURL, "/")
	path := strings.TrimLeft(endpoint, "/")

	if path == "" {
		return base
	}

	return base + "/" + path
}

// buildFullURL constructs the full URL with encoded query parameters.
func buildFullURL(baseURL, path string, query url.Values) string {
	full := joinPath(baseURL, path)

	if len(query) > 0 {
		full += "?" + query.Encode()
	}

	return full
}

// dumpRequest prints outgoing request details with colorized formatting.
func dumpRequest(req *http.Request) {
	head := color.New(color.FgHiCyan, color.Bold)
	_, _ = head.Printf("--> %s %s\n", req.Method, req.URL.String())

	dumpHeaders(req.Header)
}

// dumpResponse prints response details with colorized formatting.
func dumpResponse(resp *Response) {
	head := color.New(color.FgHiCyan, color.Bold)
	_, _ = head.Printf("<-- %s (%s)\n", resp.Status(), resp.Duration())

	dumpHeaders(resp.Header())

	if body := resp.Bytes(); len(body) > 0 {
		dumpBody(resp.Header().Get("Content-Type"), body)
	}
}

// dumpHeaders prints headers with consistent indentation.
func dumpHeaders(headers http.Header) {
	green := color.New(color.FgGreen)

	for key, values := range headers {
		_, _ = green.Printf("    %-20s", key)
		fmt.Printf(": %s\n", strings.Join(values, ", "))
	}
}

// dumpBody prints the body, pretty-printed when it is JSON.
func dumpBody(contentType string, body []byte) {
	if strings.Contains(contentType, "application/json") {
		var pretty bytes.Buffer
		if json.Indent(&pretty, body, "    ", "  ") == nil {
			fmt.Println("    " + pretty.String())

			return
		}
	}

	for _, line := range strings.Split(string(body), "\n") {
		if line != "" {
			fmt.Printf("    %s\n", line)
		}
	}
}
