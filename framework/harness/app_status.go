package harness

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coursekit/lti-test-harness/framework"
)

// Status is the information returned by the application under test from its status
// resource, such as its name and capabilities.
type Status struct {
	Name         string                 `json:"name"`
	Capabilities framework.Capabilities `json:"capabilities"`
	Version      string                 `json:"version,omitempty"`

	fullData []byte
}

// FullData returns the raw JSON of the status response, in case a test suite wants
// properties beyond the standard ones.
func (s Status) FullData() []byte {
	return s.fullData
}

func queryAppStatus(url string, timeout time.Duration, output io.Writer) (Status, error) {
	fmt.Fprintf(output, "Connecting to application at %s", url)

	deadline := time.Now().Add(timeout)
	for {
		fmt.Fprintf(output, ".")
		respData, _, err := doRequest("GET", url, nil)
		if err == nil {
			fmt.Fprintln(output)
			var status Status
			if err := json.Unmarshal(respData, &status); err != nil {
				return Status{}, fmt.Errorf("malformed status response: %w", err)
			}
			status.fullData = respData
			fmt.Fprintf(output, "Application: %s\n", status.Name)
			if status.Version != "" {
				fmt.Fprintf(output, "Version: %s\n", status.Version)
			}
			fmt.Fprintf(output, "Capabilities: %s\n", strings.Join(status.Capabilities, ", "))
			return status, nil
		}
		if !time.Now().Before(deadline) {
			fmt.Fprintln(output)
			return Status{}, fmt.Errorf("timed out, result of last query was: %w", err)
		}
		time.Sleep(time.Millisecond * 100)
	}
}

// StopService tells the application under test that it should exit. Not all
// applications support this.
func (h *Harness) StopService() error {
	_, _, err := doRequest("DELETE", h.appBaseURL, nil)
	if err != nil && !strings.Contains(err.Error(), "EOF") {
		return err
	}
	// It's normal for the request to return an I/O error if the application immediately quit
	return nil
}

func doRequest(method, url string, body []byte) ([]byte, http.Header, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = strings.NewReader(string(body))
	}
	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, nil, err
	}
	if body != nil {
		req.Header.Add("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.Header, err
	}
	if resp.StatusCode >= 300 {
		message := ""
		if len(respBody) > 0 {
			message = " (" + string(respBody) + ")"
		}
		return nil, resp.Header, fmt.Errorf("%s request to %s returned status %d%s", method, url, resp.StatusCode, message)
	}
	return respBody, resp.Header, nil
}
