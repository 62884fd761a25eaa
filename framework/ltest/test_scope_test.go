package ltest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runTree(t *testing.T, config TestConfiguration, action func(*T)) Results {
	t.Helper()
	return Run(config, action)
}

func TestRunCollectsResults(t *testing.T) {
	results := runTree(t, TestConfiguration{}, func(t *T) {
		t.Run("a", func(t *T) {})
		t.Run("b", func(t *T) {
			t.Errorf("something went wrong")
		})
	})

	assert.False(t, results.OK())
	require.Len(t, results.Failures, 1)
	assert.Equal(t, "b", results.Failures[0].TestID.String())
	require.Len(t, results.Failures[0].Errors, 1)
	assert.Equal(t, "something went wrong", results.Failures[0].Errors[0].Error())
}

func TestFailNowTerminatesScope(t *testing.T) {
	reachedAfterFailNow := false
	results := runTree(t, TestConfiguration{}, func(t *T) {
		t.Run("fails fast", func(t *T) {
			t.Errorf("boom")
			t.FailNow()
			reachedAfterFailNow = true
		})
		t.Run("still runs", func(t *T) {})
	})

	assert.False(t, reachedAfterFailNow)
	assert.Len(t, results.Failures, 1)
	assert.Len(t, results.Tests, 3) // two subtests plus the root scope
}

func TestSkipDoesNotFail(t *testing.T) {
	results := runTree(t, TestConfiguration{}, func(t *T) {
		t.Run("skipped", func(t *T) {
			t.SkipWithReason("not relevant here")
			t.Errorf("should not be reached")
		})
	})

	assert.True(t, results.OK())
}

func TestUnexpectedPanicBecomesFailure(t *testing.T) {
	results := runTree(t, TestConfiguration{}, func(t *T) {
		t.Run("panics", func(t *T) {
			panic(errors.New("kaboom"))
		})
	})

	require.Len(t, results.Failures, 1)
	assert.Contains(t, results.Failures[0].Errors[0].Error(), "kaboom")
}

func TestCleanupRunsInReverseOrder(t *testing.T) {
	var order []string
	_ = runTree(t, TestConfiguration{}, func(t *T) {
		t.Run("with cleanup", func(t *T) {
			t.Cleanup(func() { order = append(order, "first registered") })
			t.Cleanup(func() { order = append(order, "second registered") })
		})
	})

	assert.Equal(t, []string{"second registered", "first registered"}, order)
}

func TestFilterSkipsTests(t *testing.T) {
	var ran []string
	filter := func(id TestID) bool { return id.String() != "excluded" }
	_ = runTree(t, TestConfiguration{Filter: filter}, func(t *T) {
		t.Run("included", func(t *T) { ran = append(ran, "included") })
		t.Run("excluded", func(t *T) { ran = append(ran, "excluded") })
	})

	assert.Equal(t, []string{"included"}, ran)
}

func TestCapabilities(t *testing.T) {
	config := TestConfiguration{Capabilities: []string{"lti-provider"}}
	skipped := true
	_ = runTree(t, config, func(t *T) {
		t.Run("has", func(t *T) {
			assert.True(t, t.HasCapability("lti-provider"))
			assert.False(t, t.HasCapability("activity-stream"))
		})
		t.Run("requires missing", func(t *T) {
			t.RequireCapability("activity-stream")
			skipped = false
		})
	})
	assert.True(t, skipped)
}
