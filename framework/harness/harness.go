package harness

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coursekit/lti-test-harness/framework"
)

const httpListenerTimeout = time.Second * 10

// Harness is the main component that manages communication with a course application
// under test.
//
// It always communicates with a single application, which it verifies is alive on startup
// by querying its status resource. It can then create any number of callback endpoints
// for the application to interact with (NewMockEndpoint), such as launch-presentation
// return URLs in LTI flows.
//
// It contains no domain-specific test logic, but only provides a general mechanism for
// test suites to build on.
type Harness struct {
	appBaseURL    string
	appStatus     Status
	mockEndpoints *mockEndpointsManager
	logger        framework.Logger
}

// NewHarness creates a Harness instance, and verifies that the application under test is
// responding by querying its status resource. It also starts an HTTP listener on the
// specified port to receive callback requests.
func NewHarness(
	appBaseURL string,
	statusPath string,
	externalHostname string,
	port int,
	statusQueryTimeout time.Duration,
	debugLogger framework.Logger,
	startupOutput io.Writer,
) (*Harness, error) {
	if debugLogger == nil {
		debugLogger = framework.NullLogger()
	}

	externalBaseURL := fmt.Sprintf("http://%s:%d", externalHostname, port)
	h := &Harness{
		appBaseURL:    appBaseURL,
		mockEndpoints: newMockEndpointsManager(externalBaseURL, debugLogger),
		logger:        debugLogger,
	}

	status, err := queryAppStatus(appBaseURL+statusPath, statusQueryTimeout, startupOutput)
	if err != nil {
		return nil, err
	}
	h.appStatus = status

	if err := startServer(port, http.HandlerFunc(h.serveHTTP)); err != nil {
		return nil, err
	}

	return h, nil
}

// AppBaseURL returns the base URL of the application under test.
func (h *Harness) AppBaseURL() string {
	return h.appBaseURL
}

// AppStatus returns the initial status information received from the application.
func (h *Harness) AppStatus() Status {
	return h.appStatus
}

// NewMockEndpoint adds a new endpoint that can receive requests.
//
// The specified handler will be called for all incoming requests to the endpoint's
// base URL or any subpath of it. For instance, if the generated base URL (as reported
// by MockEndpoint.BaseURL()) is http://localhost:8111/endpoints/3, then it can also
// receive requests to http://localhost:8111/endpoints/3/some/subpath.
//
// When the handler is called, the harness rewrites the request URL first so that the
// handler sees only the subpath. It also attaches a Context to the request whose Done
// channel will be closed if Close is called on the endpoint.
func (h *Harness) NewMockEndpoint(
	handler http.Handler,
	logger framework.Logger,
	options ...MockEndpointOption,
) *MockEndpoint {
	if logger == nil {
		logger = h.logger
	}
	return h.mockEndpoints.newMockEndpoint(handler, logger, options...)
}

func (h *Harness) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == "HEAD" {
		w.WriteHeader(200) // we use this to test whether our own listener is active yet
		return
	}
	h.mockEndpoints.serveHTTP(w, r)
}

func startServer(port int, handler http.Handler) error {
	server := &http.Server{
		Addr: fmt.Sprintf(":%d", port),
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == "HEAD" {
				w.WriteHeader(200)
				return
			}
			handler.ServeHTTP(w, r)
		}),
		ReadHeaderTimeout: 10 * time.Second, // arbitrary but non-infinite timeout to avoid Slowloris Attack
	}
	go func() {
		if err := server.ListenAndServe(); err != nil {
			panic(err)
		}
	}()

	// Wait till the server is definitely listening for requests before we run any tests
	deadline := time.NewTimer(httpListenerTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(time.Millisecond * 10)
	defer ticker.Stop()
	for {
		select {
		case <-deadline.C:
			return fmt.Errorf("could not detect own listener at %s", server.Addr)
		case <-ticker.C:
			_, _, err := doRequest("HEAD", fmt.Sprintf("http://localhost:%d", port), nil)
			if err == nil {
				return nil
			}
		}
	}
}
