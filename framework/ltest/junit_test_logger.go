package ltest

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/coursekit/lti-test-harness/framework"
)

// JUnitTestLogger accumulates results for the whole test run and writes a JUnit-compatible
// XML report when EndLog is called.
type JUnitTestLogger struct {
	filePath string
	appName  string
	filters  RegexFilters
	testIDs  []TestID // this slice preserves the order that the tests were run in
	tests    map[string]jUnitTestStatus
	lock     sync.Mutex
}

type jUnitTestStatus struct {
	failures   []error
	skipped    bool
	skipReason string
	output     string
	startTime  time.Time
	duration   time.Duration
}

// Struct definitions for the JUnit XML schema - see https://github.com/jstemmer/go-junit-report

type jUnitXMLDocument struct {
	XMLName xml.Name            `xml:"testsuites"`
	Suites  []jUnitXMLTestSuite `xml:"testsuite"`
}

type jUnitXMLTestSuite struct {
	XMLName    xml.Name           `xml:"testsuite"`
	Tests      int                `xml:"tests,attr"`
	Failures   int                `xml:"failures,attr"`
	Time       string             `xml:"time,attr"`
	Name       string             `xml:"name,attr"`
	Properties []jUnitXMLProperty `xml:"properties>property,omitempty"`
	TestCases  []jUnitXMLTestCase `xml:"testcase"`
}

type jUnitXMLTestCase struct {
	XMLName     xml.Name             `xml:"testcase"`
	Classname   string               `xml:"classname,attr"`
	Name        string               `xml:"name,attr"`
	Time        string               `xml:"time,attr"`
	SkipMessage *jUnitXMLSkipMessage `xml:"skipped,omitempty"`
	Failure     *jUnitXMLFailure     `xml:"failure,omitempty"`
}

type jUnitXMLSkipMessage struct {
	Message string `xml:"message,attr"`
}

type jUnitXMLProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type jUnitXMLFailure struct {
	Message  string `xml:"message,attr"`
	Type     string `xml:"type,attr"`
	Contents string `xml:",chardata"`
}

func NewJUnitTestLogger(
	filePath string,
	appName string,
	filters RegexFilters,
) *JUnitTestLogger {
	return &JUnitTestLogger{
		filePath: filePath,
		appName:  appName,
		filters:  filters,
		tests:    make(map[string]jUnitTestStatus),
	}
}

func (j *JUnitTestLogger) TestStarted(id TestID) {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.testIDs = append(j.testIDs, id)
	j.tests[id.String()] = jUnitTestStatus{startTime: time.Now()}
}

func (j *JUnitTestLogger) TestError(id TestID, err error) {
	j.lock.Lock()
	defer j.lock.Unlock()
	status := j.tests[id.String()]
	status.failures = append(status.failures, err)
	j.tests[id.String()] = status
}

func (j *JUnitTestLogger) TestFinished(id TestID, failed bool, debugOutput framework.CapturedOutput) {
	j.lock.Lock()
	defer j.lock.Unlock()
	status := j.tests[id.String()]
	status.duration = time.Since(status.startTime)
	status.output = debugOutput.ToString("")
	j.tests[id.String()] = status
}

func (j *JUnitTestLogger) TestSkipped(id TestID, reason string) {
	j.lock.Lock()
	defer j.lock.Unlock()
	status := j.tests[id.String()]
	status.duration = time.Since(status.startTime)
	status.skipped = true
	status.skipReason = reason
	j.tests[id.String()] = status
}

func (j *JUnitTestLogger) EndLog(results Results) error {
	j.lock.Lock()
	defer j.lock.Unlock()

	suite := jUnitXMLTestSuite{
		Name: j.appName,
		Properties: []jUnitXMLProperty{
			{Name: "must-match", Value: j.filters.MustMatch.String()},
			{Name: "must-not-match", Value: j.filters.MustNotMatch.String()},
		},
	}
	var totalDuration time.Duration
	for _, id := range j.testIDs {
		status := j.tests[id.String()]
		testCase := jUnitXMLTestCase{
			Classname: j.appName,
			Name:      id.String(),
			Time:      formatDurationSeconds(status.duration),
		}
		if status.skipped {
			testCase.SkipMessage = &jUnitXMLSkipMessage{Message: status.skipReason}
		}
		if len(status.failures) > 0 {
			messages := make([]string, 0, len(status.failures))
			for _, err := range status.failures {
				messages = append(messages, err.Error())
			}
			testCase.Failure = &jUnitXMLFailure{
				Message:  strings.Join(messages, "; "),
				Contents: status.output,
			}
			suite.Failures++
		}
		suite.Tests++
		totalDuration += status.duration
		suite.TestCases = append(suite.TestCases, testCase)
	}
	suite.Time = formatDurationSeconds(totalDuration)

	document := jUnitXMLDocument{Suites: []jUnitXMLTestSuite{suite}}
	data, err := xml.MarshalIndent(document, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(j.filePath, data, 0o644)
}

func formatDurationSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
