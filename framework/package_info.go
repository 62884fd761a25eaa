// Package framework contains the low-level implementation of test harness infrastructure
// that can be reused for different kinds of tests. The base package contains shared
// types such as Logger; other components are in the subpackages harness and ltest.
//
// The general model is:
//
// 1. The test harness communicates with a course application under test, which exposes a
// status endpoint for querying its name and capabilities (GET).
//
// 2. The test harness can expose any number of mock endpoints to receive requests from
// the application, such as LTI launch-presentation return URLs.
//
// 3. There is a general notion of a test context which is similar to Go's testing.T,
// allowing pieces of test logic to be associated with a test identifier and to accumulate
// success/failure results.
//
// The domain-specific code that knows what is being tested is responsible for driving the
// application's endpoints, providing HTTP handlers for requests to mock endpoints, and
// building domain-specific test APIs on top of the test context.
package framework
