package coursetests

import (
	"fmt"

	"github.com/coursekit/lti-test-harness/appinfo"
	"github.com/coursekit/lti-test-harness/framework"
	"github.com/coursekit/lti-test-harness/framework/harness"
	"github.com/coursekit/lti-test-harness/framework/ltest"
)

// RunCourseTestSuite runs every suite against the application the harness is
// connected to. Suites for capabilities the application does not advertise are
// skipped.
func RunCourseTestSuite(
	harness *harness.Harness,
	filters ltest.RegexFilters,
	testLogger ltest.TestLogger,
) ltest.Results {
	capabilities := harness.AppStatus().Capabilities

	fmt.Printf("Running course test suite against %q\n\n", harness.AppStatus().Name)
	ltest.PrintFilterDescription(filters, allCapabilities(), capabilities)

	config := ltest.TestConfiguration{
		Filter:       filters.Match,
		Capabilities: capabilities,
		TestLogger:   testLogger,
		Context:      &SuiteContext{harness: harness},
	}

	return ltest.Run(config, func(t *ltest.T) {
		t.Run("login", doLoginTests)
		t.Run("course management", doCourseManagementTests)
		t.Run("enrollment", doEnrollmentTests)
		t.Run("activity stream", doActivityStreamTests)
		t.Run("lti consumer", doLTIConsumerTests)
		t.Run("lti provider", doLTIProviderTests)
	})
}

func allCapabilities() framework.Capabilities {
	return framework.Capabilities{
		appinfo.CapabilityLTIConsumer,
		appinfo.CapabilityLTIProvider,
		appinfo.CapabilityActivityStream,
		appinfo.CapabilityBrowsableCourses,
	}
}
