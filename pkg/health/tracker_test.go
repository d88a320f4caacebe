package health

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// TrackerTestSuite tests score arithmetic and ranking
type TrackerTestSuite struct {
	suite.Suite
	tracker *Tracker
	clock   time.Time
}

// SetupTest registers A, B, C, D with a fixed clock
func (s *TrackerTestSuite) SetupTest() {
	s.clock = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.tracker = NewTracker()
	s.tracker.now = func() time.Time { return s.clock }
	for _, key := range []string{"A", "B", "C", "D"} {
		s.tracker.Add(key)
	}
}

func (s *TrackerTestSuite) status(key string) (status struct {
	Healthy bool
	Score   float64
	Fails   int
}) {
	st, ok := s.tracker.Status(key)
	s.Require().True(ok)
	status.Healthy, status.Score, status.Fails = st.Healthy, st.Score, st.ConsecutiveFailures
	return status
}

// TestInitialStatus tests that new entries start healthy at 1.0
func (s *TrackerTestSuite) TestInitialStatus() {
	st := s.status("A")
	s.True(st.Healthy)
	s.Equal(1.0, st.Score)
	s.Zero(st.Fails)
	s.Equal(4, s.tracker.HealthyCount())
}

// TestAddIsIdempotent tests that re-adding keeps state and order
func (s *TrackerTestSuite) TestAddIsIdempotent() {
	s.tracker.RecordFailure("A", nil)
	s.tracker.Add("A")

	s.Equal(0.8, s.status("A").Score)
	s.Len(s.tracker.Snapshot(), 4)
	s.Equal("A", s.tracker.Snapshot()[0].Key)
}

// TestRecordFailure tests the -0.2 step and flags
func (s *TrackerTestSuite) TestRecordFailure() {
	s.tracker.RecordFailure("B", errors.New("connection refused"))

	st, _ := s.tracker.Status("B")
	s.False(st.Healthy)
	s.Equal(0.8, st.Score)
	s.Equal(1, st.ConsecutiveFailures)
	s.Equal("connection refused", st.LastError)
	s.Equal(s.clock, st.LastChecked)
}

// TestRecordSuccess tests the +0.1 step and reset
func (s *TrackerTestSuite) TestRecordSuccess() {
	s.tracker.RecordFailure("B", errors.New("boom"))
	s.tracker.RecordFailure("B", nil)
	s.tracker.RecordSuccess("B")

	st, _ := s.tracker.Status("B")
	s.True(st.Healthy)
	s.Equal(0.7, st.Score)
	s.Zero(st.ConsecutiveFailures)
	s.Empty(st.LastError)
}

// TestScoreClamping tests that repeated outcomes never leave [0, 1]
func (s *TrackerTestSuite) TestScoreClamping() {
	for i := 0; i < 20; i++ {
		s.tracker.RecordFailure("C", nil)
		s.GreaterOrEqual(s.status("C").Score, 0.0)
	}
	s.Equal(0.0, s.status("C").Score)
	s.Equal(20, s.status("C").Fails)

	for i := 0; i < 30; i++ {
		s.tracker.RecordSuccess("C")
		s.LessOrEqual(s.status("C").Score, 1.0)
	}
	s.Equal(1.0, s.status("C").Score)

	s.tracker.RecordSuccess("A")
	s.Equal(1.0, s.status("A").Score)
}

// TestExactSteps tests every score reachable from 1.0
func (s *TrackerTestSuite) TestExactSteps() {
	expected := []float64{0.8, 0.6, 0.4, 0.2, 0.0, 0.0}
	for _, want := range expected {
		s.tracker.RecordFailure("D", nil)
		s.Equal(want, s.status("D").Score)
	}
	expected = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0, 1.0}
	for _, want := range expected {
		s.tracker.RecordSuccess("D")
		s.Equal(want, s.status("D").Score)
	}
}

// TestRankedOrder tests ranking by score with registration order ties
func (s *TrackerTestSuite) TestRankedOrder() {
	s.Equal([]string{"A", "B", "C", "D"}, s.tracker.Ranked(""))

	// B drops and is excluded until it recovers.
	s.tracker.RecordFailure("B", nil)
	s.Equal([]string{"A", "C", "D"}, s.tracker.Ranked(""))

	// Recovered B sits at 0.9, behind the 1.0 entries.
	s.tracker.RecordSuccess("B")
	s.Equal([]string{"A", "C", "D", "B"}, s.tracker.Ranked(""))
}

// TestPreferredOnlyBreaksTies tests that the preferred key never overrides score
func (s *TrackerTestSuite) TestPreferredOnlyBreaksTies() {
	s.Equal([]string{"C", "A", "B", "D"}, s.tracker.Ranked("C"))

	s.tracker.RecordFailure("C", nil)
	s.tracker.RecordSuccess("C")
	s.Equal([]string{"A", "B", "D", "C"}, s.tracker.Ranked("C"))

	s.Equal([]string{"A", "B", "C", "D"}, s.tracker.Ranked("unknown"))
}

// TestOrderedIncludesUnhealthy tests that unhealthy keys follow healthy ones
func (s *TrackerTestSuite) TestOrderedIncludesUnhealthy() {
	s.tracker.RecordFailure("A", nil)
	s.tracker.RecordFailure("C", nil)
	s.tracker.RecordFailure("C", nil)

	s.Equal([]string{"B", "D", "A", "C"}, s.tracker.Ordered(""))
	s.Equal(2, s.tracker.HealthyCount())
}

// TestRecordDispatch tests Record
func (s *TrackerTestSuite) TestRecordDispatch() {
	s.tracker.Record("A", errors.New("x"))
	s.False(s.status("A").Healthy)
	s.tracker.Record("A", nil)
	s.True(s.status("A").Healthy)
}

// TestUnknownKeyPanics tests that reporting for unknown keys is a programming error
func (s *TrackerTestSuite) TestUnknownKeyPanics() {
	s.Panics(func() { s.tracker.RecordSuccess("missing") })
	s.Panics(func() { s.tracker.RecordFailure("missing", nil) })
	_, ok := s.tracker.Status("missing")
	s.False(ok)
	s.False(s.tracker.Has("missing"))
	s.Zero(s.tracker.Score("missing"))
}

// TestMarkInitialized tests the initialized flag in snapshots
func (s *TrackerTestSuite) TestMarkInitialized() {
	s.tracker.MarkInitialized("B")
	snapshot := s.tracker.Snapshot()
	s.False(snapshot[0].Initialized)
	s.True(snapshot[1].Initialized)
}

// TestConcurrentOutcomes tests the tracker under concurrent writers
func (s *TrackerTestSuite) TestConcurrentOutcomes() {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.tracker.RecordFailure("A", nil)
		}()
		go func() {
			defer wg.Done()
			_ = s.tracker.Ranked("")
		}()
	}
	wg.Wait()

	st := s.status("A")
	s.Equal(0.0, st.Score)
	s.Equal(50, st.Fails)
}

// TestTrackerSuite runs the tracker test suite
func TestTrackerSuite(t *testing.T) {
	suite.Run(t, new(TrackerTestSuite))
}
