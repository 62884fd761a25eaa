package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coursekit/lti-test-harness/framework"
	"github.com/coursekit/lti-test-harness/framework/helpers"
)

const endpointPathPrefix = "/endpoints/"

const awaitConnectionTimeout = time.Second * 5

type mockEndpointsManager struct {
	endpoints       map[int]*MockEndpoint
	lastEndpointID  int
	externalBaseURL string
	logger          framework.Logger
	lock            sync.Mutex
}

// MockEndpoint represents an endpoint that can receive requests.
type MockEndpoint struct {
	owner       *mockEndpointsManager
	id          int
	description string
	basePath    string
	handler     http.Handler
	newConns    chan IncomingRequestInfo
	activeConn  *IncomingRequestInfo
	cancels     []*context.CancelFunc
	logger      framework.Logger
	lock        sync.Mutex
	closing     sync.Once
}

// MockEndpointOption is the interface for options to NewMockEndpoint.
type MockEndpointOption helpers.ConfigOption[MockEndpoint]

type mockEndpointDescriptionOption string

func (o mockEndpointDescriptionOption) Configure(m *MockEndpoint) error {
	m.description = string(o)
	return nil
}

// MockEndpointDescription is an option for NewMockEndpoint to set the description that
// appears in debug log messages about the endpoint.
func MockEndpointDescription(description string) MockEndpointOption {
	return mockEndpointDescriptionOption(description)
}

// IncomingRequestInfo contains information about a request sent by the application
// under test to one of the mock endpoints.
type IncomingRequestInfo struct {
	Headers http.Header
	Method  string
	URL     string
	Body    []byte
	Context context.Context
	Cancel  context.CancelFunc
}

func newMockEndpointsManager(externalBaseURL string, logger framework.Logger) *mockEndpointsManager {
	return &mockEndpointsManager{
		endpoints:       make(map[int]*MockEndpoint),
		externalBaseURL: externalBaseURL,
		logger:          logger,
	}
}

func (m *mockEndpointsManager) newMockEndpoint(
	handler http.Handler,
	logger framework.Logger,
	options ...MockEndpointOption,
) *MockEndpoint {
	if logger == nil {
		logger = m.logger
	}
	e := &MockEndpoint{
		owner:    m,
		handler:  handler,
		newConns: make(chan IncomingRequestInfo, 100), // arbitrary capacity that should be more than enough
		logger:   logger,
	}
	_ = helpers.ApplyOptions(e, options...)

	m.lock.Lock()
	m.lastEndpointID++
	e.id = m.lastEndpointID
	e.basePath = fmt.Sprintf("%s%d", endpointPathPrefix, e.id)
	m.endpoints[e.id] = e
	m.lock.Unlock()

	return e
}

func (m *mockEndpointsManager) serveHTTP(w http.ResponseWriter, r *http.Request) {
	wrappedWriter := wrappedResponseWriter{w: w}

	path := r.URL.Path
	if !strings.HasPrefix(path, endpointPathPrefix) {
		m.logger.Printf("Received request for unrecognized path %s", path)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	path = strings.TrimPrefix(path, endpointPathPrefix)
	var endpointID int
	subPath := ""
	slashPos := strings.Index(path, "/")
	if slashPos >= 0 {
		subPath = path[slashPos:]
		path = path[0:slashPos]
	}
	endpointID, err := strconv.Atoi(path)
	if err != nil {
		m.logger.Printf("Received request for unrecognized path %s", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	m.lock.Lock()
	e := m.endpoints[endpointID]
	m.lock.Unlock()
	if e == nil {
		m.logger.Printf("Received request for unknown endpoint %s", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	e.logger.Printf("Received %s %s", r.Method, r.URL)

	var body []byte
	if r.Body != nil {
		data, err := io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			e.logger.Printf("Unexpected error trying to read request body: %s", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body = data
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	ctx, canceller := context.WithCancel(r.Context())
	transformedReq := r.WithContext(ctx)
	url := *r.URL
	url.Path = subPath
	transformedReq.URL = &url

	incoming := IncomingRequestInfo{
		Headers: r.Header,
		Method:  r.Method,
		URL:     r.URL.String(),
		Body:    body,
		Context: ctx,
		Cancel:  canceller,
	}
	e.lock.Lock()
	e.cancels = append(e.cancels, &canceller)
	e.activeConn = &incoming
	e.lock.Unlock()

	if !helpers.NonBlockingSend(e.newConns, incoming) {
		e.logger.Printf("Incoming connection channel was full for %s", r.URL)
	}

	e.handler.ServeHTTP(&wrappedWriter, transformedReq)

	if wrappedWriter.statusCode == http.StatusNotFound || wrappedWriter.statusCode == http.StatusMethodNotAllowed {
		e.logger.Printf("Endpoint did not recognize request %s %s (status %d)", r.Method, r.URL, wrappedWriter.statusCode)
	}
}

// BaseURL returns the base path of the mock endpoint.
func (e *MockEndpoint) BaseURL() string {
	return e.owner.externalBaseURL + e.basePath
}

// AwaitConnection waits for an incoming request to the endpoint.
func (e *MockEndpoint) AwaitConnection(timeout time.Duration) (IncomingRequestInfo, error) {
	if cxn, ok := helpers.TryReceive(e.newConns, timeout); ok {
		return cxn, nil
	}
	return IncomingRequestInfo{}, fmt.Errorf("timed out waiting for application to send a request to %s", e.describe())
}

// RequireConnection waits for an incoming request to the endpoint, and causes the test
// to fail and terminate if it timed out.
func (e *MockEndpoint) RequireConnection(t helpers.TestContext) IncomingRequestInfo {
	cxn, err := e.AwaitConnection(awaitConnectionTimeout)
	if err != nil {
		t.Errorf("%s", err.Error())
		t.FailNow()
	}
	return cxn
}

// RequireNoMoreConnections causes the test to fail and terminate if there is another
// incoming request within the given timeout.
func (e *MockEndpoint) RequireNoMoreConnections(t helpers.TestContext, timeout time.Duration) {
	if cxn, ok := helpers.TryReceive(e.newConns, timeout); ok {
		t.Errorf("did not expect another request to %s but got one (%s %s)", e.describe(), cxn.Method, cxn.URL)
		t.FailNow()
	}
}

// ActiveConnection returns the most recently started incoming request, if any.
func (e *MockEndpoint) ActiveConnection() *IncomingRequestInfo {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.activeConn
}

// Close unregisters the endpoint. Any further requests to it will receive 404 errors.
// It also cancels the Context for every active request to that endpoint.
func (e *MockEndpoint) Close() {
	e.closing.Do(func() {
		m := e.owner
		m.lock.Lock()
		delete(m.endpoints, e.id)
		m.lock.Unlock()

		e.lock.Lock()
		cancellers := e.cancels
		e.cancels = nil
		e.lock.Unlock()
		for _, cancel := range cancellers {
			(*cancel)()
		}
	})
}

func (e *MockEndpoint) describe() string {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.description != "" {
		return fmt.Sprintf("%s (%s)", e.description, e.basePath)
	}
	return e.basePath
}

type wrappedResponseWriter struct {
	w          http.ResponseWriter
	statusCode int
}

func (w *wrappedResponseWriter) Header() http.Header {
	return w.w.Header()
}

func (w *wrappedResponseWriter) Write(data []byte) (int, error) {
	return w.w.Write(data)
}

func (w *wrappedResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.w.WriteHeader(statusCode)
}

func (w *wrappedResponseWriter) Flush() {
	if f, ok := w.w.(http.Flusher); ok {
		f.Flush()
	}
}
