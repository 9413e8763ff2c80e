// response/error.go
// This package extracts diagnostics from FHIR error responses so that callers can surface
// a readable message for replies the executor did not treat as failures.
package response

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/antchfx/xmlquery"
	"golang.org/x/net/html"
)

// APIError represents an error reply from a FHIR server.
type APIError struct {
	StatusCode  int      `json:"status_code"`       // HTTP status code
	Method      string   `json:"method"`            // HTTP method used for the request
	URL         string   `json:"url"`               // The URL of the HTTP request
	Message     string   `json:"message"`           // Summary of the error
	Issues      []Issue  `json:"issues,omitempty"`  // OperationOutcome issues, when the server sent one
	Details     []string `json:"details,omitempty"` // Detailed error messages, if any
	RawResponse string   `json:"raw_response"`      // Raw response body for debugging
}

// Issue is a single OperationOutcome.issue entry.
type Issue struct {
	Severity    string `json:"severity,omitempty"`
	Code        string `json:"code,omitempty"`
	Diagnostics string `json:"diagnostics,omitempty"`
	Details     string `json:"details,omitempty"`
}

// Error returns a string representation of the APIError, making it compatible with the error interface.
func (e *APIError) Error() string {
	message := e.Message
	if message == "" {
		message = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("FHIR API error: %s %s returned %d: %s", e.Method, e.URL, e.StatusCode, message)
}

// operationOutcome is the JSON shape of a FHIR OperationOutcome resource.
type operationOutcome struct {
	ResourceType string `json:"resourceType"`
	Issue        []struct {
		Severity    string `json:"severity"`
		Code        string `json:"code"`
		Diagnostics string `json:"diagnostics"`
		Details     struct {
			Text string `json:"text"`
		} `json:"details"`
	} `json:"issue"`
}

// ParseErrorResponse builds an APIError from a recorded error reply, choosing a parser by content type.
func ParseErrorResponse(statusCode int, method, url, contentType string, body []byte) *APIError {
	apiError := &APIError{
		StatusCode:  statusCode,
		Method:      method,
		URL:         url,
		RawResponse: string(body),
	}

	mimeType, _ := ParseContentTypeHeader(contentType)
	switch mimeType {
	case "application/fhir+json", "application/json+fhir", "application/json":
		parseJSONResponse(body, apiError)
	case "application/fhir+xml", "application/xml+fhir", "application/xml", "text/xml":
		parseXMLResponse(body, apiError)
	case "text/html":
		parseHTMLResponse(body, apiError)
	case "text/plain":
		apiError.Message = strings.TrimSpace(string(body))
	default:
		apiError.Message = "Unknown content type error"
	}

	if apiError.Message == "" {
		apiError.Message = http.StatusText(statusCode)
	}
	return apiError
}

// parseJSONResponse reads an OperationOutcome, falling back to a generic {"message": ...} body.
func parseJSONResponse(body []byte, apiError *APIError) {
	var outcome operationOutcome
	if err := json.Unmarshal(body, &outcome); err != nil {
		apiError.Message = "Failed to decode JSON error response"
		return
	}

	if outcome.ResourceType == "OperationOutcome" {
		for _, issue := range outcome.Issue {
			apiError.Issues = append(apiError.Issues, Issue{
				Severity:    issue.Severity,
				Code:        issue.Code,
				Diagnostics: issue.Diagnostics,
				Details:     issue.Details.Text,
			})
		}
		apiError.Details = issueMessages(apiError.Issues)
		apiError.Message = strings.Join(apiError.Details, "; ")
		return
	}

	var generic struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &generic); err == nil {
		apiError.Message = generic.Message
	}
}

// parseXMLResponse reads an OperationOutcome in FHIR XML, where primitive values live in
// "value" attributes rather than text nodes.
func parseXMLResponse(body []byte, apiError *APIError) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		apiError.Message = "Failed to parse XML error response"
		return
	}

	var traverse func(*xmlquery.Node, *Issue)
	traverse = func(n *xmlquery.Node, current *Issue) {
		if n.Type == xmlquery.ElementNode {
			switch n.Data {
			case "issue":
				issue := &Issue{}
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					traverse(c, issue)
				}
				apiError.Issues = append(apiError.Issues, *issue)
				return
			case "severity":
				if current != nil {
					current.Severity = n.SelectAttr("value")
				}
			case "code":
				if current != nil && current.Code == "" {
					current.Code = n.SelectAttr("value")
				}
			case "diagnostics":
				if current != nil {
					current.Diagnostics = n.SelectAttr("value")
				}
			case "text":
				if current != nil && n.Parent != nil && n.Parent.Data == "details" {
					current.Details = n.SelectAttr("value")
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c, current)
		}
	}
	traverse(doc, nil)

	if len(apiError.Issues) > 0 {
		apiError.Details = issueMessages(apiError.Issues)
		apiError.Message = strings.Join(apiError.Details, "; ")
		return
	}

	var messages []string
	for _, n := range xmlquery.Find(doc, "//text()") {
		if text := strings.TrimSpace(n.Data); text != "" {
			messages = append(messages, text)
		}
	}
	if len(messages) > 0 {
		apiError.Message = strings.Join(messages, "; ")
	} else {
		apiError.Message = "Failed to extract error details from XML response"
	}
}

// parseHTMLResponse concatenates the text of every <p> element, including link targets.
// Gateways in front of FHIR servers commonly answer with HTML error pages.
func parseHTMLResponse(body []byte, apiError *APIError) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return
	}

	var messages []string
	var parse func(*html.Node)
	parse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "p" {
			var pContent strings.Builder
			var traverseChildren func(*html.Node)
			traverseChildren = func(c *html.Node) {
				if c.Type == html.TextNode {
					if text := strings.TrimSpace(c.Data); text != "" {
						pContent.WriteString(text + " ")
					}
				} else if c.Type == html.ElementNode && c.Data == "a" {
					for _, attr := range c.Attr {
						if attr.Key == "href" {
							pContent.WriteString("[Link: " + attr.Val + "] ")
							break
						}
					}
				}
				for child := c.FirstChild; child != nil; child = child.NextSibling {
					traverseChildren(child)
				}
			}
			for child := n.FirstChild; child != nil; child = child.NextSibling {
				traverseChildren(child)
			}
			if finalContent := strings.TrimSpace(pContent.String()); finalContent != "" {
				messages = append(messages, finalContent)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			parse(c)
		}
	}
	parse(doc)

	if len(messages) > 0 {
		apiError.Message = strings.Join(messages, "; ")
	} else {
		apiError.Message = "HTML Error: See 'Raw' field for details."
	}
}

// issueMessages picks the most specific text of each issue: diagnostics, then details, then code.
func issueMessages(issues []Issue) []string {
	var messages []string
	for _, issue := range issues {
		switch {
		case issue.Diagnostics != "":
			messages = append(messages, issue.Diagnostics)
		case issue.Details != "":
			messages = append(messages, issue.Details)
		case issue.Code != "":
			messages = append(messages, issue.Code)
		}
	}
	return messages
}
