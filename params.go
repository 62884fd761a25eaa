package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/coursekit/lti-test-harness/framework/ltest"
)

type commandParams struct {
	appURL       string
	port         int
	host         string
	filters      ltest.RegexFilters
	stopAppAtEnd bool
	debug        bool
	debugAll     bool
	jUnitFile    string
	skipFile     string
}

func (c *commandParams) Read(args []string) bool {
	fs := flag.NewFlagSet("", flag.ExitOnError)
	fs.StringVar(&c.appURL, "url", "", "base URL of the course application under test")
	fs.StringVar(&c.host, "host", "localhost", "external hostname of the test harness")
	fs.IntVar(&c.port, "port", defaultPort, "port that the test harness will listen on")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.StringVar(&c.skipFile, "skip-from", "", "file with test IDs to skip, one per line")
	fs.BoolVar(&c.stopAppAtEnd, "stop-service-at-end", false, "tell the application to exit after the test run")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")
	fs.StringVar(&c.jUnitFile, "junit", "", "write JUnit XML output to the specified path")

	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return false
	}
	if c.appURL == "" {
		fmt.Fprintln(os.Stderr, "-url is required")
		fs.Usage()
		return false
	}
	return true
}
