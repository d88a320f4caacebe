package log

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
)

// LoggerTestSuite tests the log package
type LoggerTestSuite struct {
	suite.Suite
	testOutput *bytes.Buffer
}

// SetupTest routes JSON output at debug level into a buffer
func (s *LoggerTestSuite) SetupTest() {
	s.testOutput = &bytes.Buffer{}
	SetOutput(s.testOutput)
	SetJSON(true)
	s.Require().NoError(SetLevel("debug"))
}

// TearDownTest restores the defaults
func (s *LoggerTestSuite) TearDownTest() {
	SetOutput(os.Stderr)
	SetJSON(false)
	s.Require().NoError(SetLevel("info"))
}

func (s *LoggerTestSuite) lines() []map[string]interface{} {
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(s.testOutput.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]interface{}{}
		s.Require().NoError(json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

// TestGetGoroutineID tests the goroutine ID extraction
func (s *LoggerTestSuite) TestGetGoroutineID() {
	id := goroutineID()
	s.NotEmpty(id)
	if id != "unknown" {
		for _, char := range id {
			s.True(char >= '0' && char <= '9', "Goroutine ID should be numeric or 'unknown'")
		}
	}
}

// TestGoroutineIDConsistency tests that goroutine ID is stable within a goroutine
func (s *LoggerTestSuite) TestGoroutineIDConsistency() {
	s.Equal(goroutineID(), goroutineID())
}

// TestLevelsAndFields tests structured output at each level
func (s *LoggerTestSuite) TestLevelsAndFields() {
	Debug().Msg("debug test")
	Info().Str("provider", "disk-a").Msg("info test")
	Warn().Msg("warn test")
	Error().Msg("error test")

	entries := s.lines()
	s.Require().Len(entries, 4)
	s.Equal("debug", entries[0]["level"])
	s.Equal("info", entries[1]["level"])
	s.Equal("disk-a", entries[1]["provider"])
	s.Equal("warn", entries[2]["level"])
	s.Equal("error", entries[3]["level"])
	for _, entry := range entries {
		s.Contains(entry, "goid")
	}
}

// TestSetLevelFilters tests that lower levels are dropped
func (s *LoggerTestSuite) TestSetLevelFilters() {
	s.Require().NoError(SetLevel("warn"))

	Debug().Msg("dropped debug")
	Info().Msg("dropped info")
	Warn().Msg("kept warn")

	output := s.testOutput.String()
	s.NotContains(output, "dropped")
	s.Contains(output, "kept warn")
}

// TestParseLevel tests level parsing
func (s *LoggerTestSuite) TestParseLevel() {
	testCases := []struct {
		input    string
		expected zerolog.Level
		valid    bool
	}{
		{"debug", zerolog.DebugLevel, true},
		{"INFO", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
		{"warning", zerolog.WarnLevel, true},
		{"error", zerolog.ErrorLevel, true},
		{"trace", zerolog.NoLevel, false},
	}

	for _, tc := range testCases {
		parsed, err := ParseLevel(tc.input)
		if tc.valid {
			s.NoError(err, tc.input)
			s.Equal(tc.expected, parsed, tc.input)
		} else {
			s.Error(err, tc.input)
		}
	}
}

// TestSetLevelInvalid tests that an invalid level leaves the logger untouched
func (s *LoggerTestSuite) TestSetLevelInvalid() {
	s.Error(SetLevel("verbose"))
	s.Equal(zerolog.DebugLevel, Logger.GetLevel())
}

// TestConsoleMode tests the human readable writer
func (s *LoggerTestSuite) TestConsoleMode() {
	SetJSON(false)
	Info().Msg("console message")
	s.Contains(s.testOutput.String(), "console message")
	s.NotContains(s.testOutput.String(), `"message"`)
}

// TestConcurrentLogging tests that logging is thread-safe
func (s *LoggerTestSuite) TestConcurrentLogging() {
	numGoroutines := 10
	done := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer func() { done <- true }()
			Info().Int("worker", id).Msg("concurrent info")
			Warn().Int("worker", id).Msg("concurrent warn")
		}(i)
	}
	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	s.Len(s.lines(), numGoroutines*2)
}

// TestSetOutputDiscard tests that output can be silenced
func (s *LoggerTestSuite) TestSetOutputDiscard() {
	SetOutput(io.Discard)
	Info().Msg("nowhere")
	s.Empty(s.testOutput.String())
}

// TestLoggerSuite runs the logger test suite
func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}
