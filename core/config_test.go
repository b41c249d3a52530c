package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("ENV", "")
		conf := NewConfig()
		assert.Same(t, conf, Conf)
		assert.Equal(t, "DEV", conf.Env)
		assert.False(t, conf.TestMode)
		assert.Equal(t, "en", conf.Language)
		assert.Equal(t, 20*time.Second, conf.Timing.ElementTimeout)
		assert.Equal(t, 500*time.Millisecond, conf.Timing.RowTimeout)
		assert.Equal(t, 3, conf.Timing.LookupAttempts)
		assert.Equal(t, "67%", conf.Browser.Zoom)
		assert.Equal(t, "ON_TIME", conf.Locators.ArrivalOnTime)
		assert.Equal(t, "1", conf.Locators.ModeOffline)
		assert.Equal(t, "2", conf.Locators.ModeOnline)
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("ENV", "test")
		t.Setenv("TEST_LANGUAGE", "vi")
		t.Setenv("TEST_TIMING_ROWTIMEOUT", "250ms")
		t.Setenv("TEST_BROWSER_HEADLESS", "true")
		t.Setenv("TEST_REPORT_EMAILTO", "head@school.test")

		conf := NewConfig()
		assert.Equal(t, "TEST", conf.Env)
		assert.True(t, conf.TestMode)
		assert.Equal(t, "vi", conf.Language)
		assert.Equal(t, 250*time.Millisecond, conf.Timing.RowTimeout)
		assert.True(t, conf.Browser.Headless)
		assert.Equal(t, "head@school.test", conf.Report.EmailTo)
	})
}
