package automation

import (
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/nwtelemetry/huboffload/internal/models"
)

const (
	// DefaultExportFilename is used when the attachment response carries no
	// filename in its content-disposition header.
	DefaultExportFilename = "download.csv"

	defaultPollInterval  = 100 * time.Millisecond
	defaultExportTimeout = 10 * time.Second
	defaultPreClickDelay = 1 * time.Second
)

var filenameRe = regexp.MustCompile(`filename="(.+?)"`)

// matchAttachment reports whether a response looks like the portal's CSV
// export: status 200, an attachment content-disposition, and a csv or text
// content type. It returns the filename from the disposition header, or the
// default when absent.
func matchAttachment(status int, headers map[string]string) (string, bool) {
	disposition := headerValue(headers, "content-disposition")
	contentType := headerValue(headers, "content-type")

	if status != 200 ||
		!strings.Contains(disposition, "attachment") ||
		!(strings.Contains(contentType, "csv") || strings.Contains(contentType, "text")) {
		return "", false
	}

	if m := filenameRe.FindStringSubmatch(disposition); m != nil {
		return m[1], true
	}
	return DefaultExportFilename, true
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// capturedExport is the observer's completion slot. The response handler
// fills it from the browser's event goroutine; the capture engine polls it.
type capturedExport struct {
	mu       sync.Mutex
	url      string
	filename string
	body     func() ([]byte, error)
}

func (c *capturedExport) record(url, filename string, body func() ([]byte, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.url = url
	c.filename = filename
	c.body = body
}

func (c *capturedExport) get() (url, filename string, body func() ([]byte, error), ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url, c.filename, c.body, c.url != ""
}

// ExportCapture triggers the portal's export action and obtains the file
// content from the resulting HTTP response. The export is served as a plain
// response rather than a native download, so the engine observes network
// responses instead of download events.
type ExportCapture struct {
	page          playwright.Page
	slot          *capturedExport
	pollInterval  time.Duration
	timeout       time.Duration
	preClickDelay time.Duration
}

// NewExportCapture registers the response observer on the portal page. The
// observer must be in place before the download control is triggered: the
// matching response arrives asynchronously relative to the trigger call.
func NewExportCapture(page playwright.Page) *ExportCapture {
	e := &ExportCapture{
		page:          page,
		slot:          &capturedExport{},
		pollInterval:  defaultPollInterval,
		timeout:       defaultExportTimeout,
		preClickDelay: defaultPreClickDelay,
	}

	page.OnResponse(func(response playwright.Response) {
		filename, ok := matchAttachment(response.Status(), response.Headers())
		if !ok {
			return
		}
		log.Printf("Export response detected: %s", filename)
		e.slot.record(response.URL(), filename, response.Body)
	})

	return e
}

// Run fires the download trigger through its fallback chain, polls for the
// captured response up to the bounded timeout, and returns the export
// content. The buffered response body is preferred; an authenticated GET of
// the captured URL is the fallback.
func (e *ExportCapture) Run(trigger []Strategy) (*models.RawExportFile, error) {
	// Give the portal time to bind the download handler before clicking.
	time.Sleep(e.preClickDelay)

	if _, err := runStrategies("trigger export download", trigger); err != nil {
		return nil, err
	}

	url, filename, body, err := e.waitForCapture()
	if err != nil {
		return nil, err
	}

	csvText, err := e.readBody(url, body)
	if err != nil {
		return nil, err
	}

	return &models.RawExportFile{
		Filename:   filename,
		Content:    csvText,
		CapturedAt: time.Now(),
	}, nil
}

func (e *ExportCapture) waitForCapture() (string, string, func() ([]byte, error), error) {
	deadline := time.Now().Add(e.timeout)
	for {
		if url, filename, body, ok := e.slot.get(); ok {
			return url, filename, body, nil
		}
		if time.Now().After(deadline) {
			return "", "", nil, &ExportTimeoutError{Timeout: e.timeout}
		}
		time.Sleep(e.pollInterval)
	}
}

func (e *ExportCapture) readBody(url string, body func() ([]byte, error)) (string, error) {
	if body != nil {
		if raw, err := body(); err == nil {
			return string(raw), nil
		}
		log.Printf("Could not read captured response body; falling back to network GET")
	}

	resp, err := e.page.Request().Get(url)
	if err != nil {
		return "", err
	}
	return resp.Text()
}
