package disk

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"replicafs/pkg/provider"
)

// DiskTestSuite tests the disk provider
type DiskTestSuite struct {
	suite.Suite
	tempDir  string
	provider *Provider
	ctx      context.Context
}

// SetupTest creates a fresh storage root
func (s *DiskTestSuite) SetupTest() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "disk-provider-test-*")
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.provider = New("disk-a", filepath.Join(s.tempDir, "data"))
	s.Require().NoError(s.provider.Initialize(s.ctx))
}

// TearDownTest removes the storage root
func (s *DiskTestSuite) TearDownTest() {
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
}

// TestNotInitialized tests operations before Initialize
func (s *DiskTestSuite) TestNotInitialized() {
	p := New("disk-b", filepath.Join(s.tempDir, "other"))
	_, err := p.Store(s.ctx, []byte("x"), "f", "")
	s.ErrorIs(err, provider.ErrNotInitialized)
	s.False(p.IsConfigured())
	s.False(p.Exists(s.ctx, "f"))
}

// TestInitializeUnwritableRoot tests initialization failure
func (s *DiskTestSuite) TestInitializeUnwritableRoot() {
	blocker := filepath.Join(s.tempDir, "blocker")
	s.Require().NoError(os.WriteFile(blocker, []byte("x"), 0600))

	p := New("disk-b", filepath.Join(blocker, "data"))
	s.ErrorIs(p.Initialize(s.ctx), provider.ErrConfiguration)
}

// TestStoreAndRetrieve tests a round trip
func (s *DiskTestSuite) TestStoreAndRetrieve() {
	receipt, err := s.provider.Store(s.ctx, []byte("hello world"), "report 2024.pdf", "")
	s.Require().NoError(err)
	s.Equal(provider.PlacementRemote, receipt.Placement)
	s.Equal(int64(11), receipt.Size)
	s.FileExists(receipt.Ref)

	hash := hashName("report 2024.pdf")
	s.Equal(filepath.Join(s.tempDir, "data", objectsDir, hash[:2], hash[2:4], hash), receipt.Ref)

	data, err := s.provider.Retrieve(s.ctx, "report 2024.pdf", "")
	s.Require().NoError(err)
	s.Equal([]byte("hello world"), data)
	s.True(s.provider.Exists(s.ctx, "report 2024.pdf"))
}

// TestStoreOverwrites tests last write wins
func (s *DiskTestSuite) TestStoreOverwrites() {
	_, err := s.provider.Store(s.ctx, []byte("one"), "f", "")
	s.Require().NoError(err)
	_, err = s.provider.Store(s.ctx, []byte("two"), "f", "")
	s.Require().NoError(err)

	data, err := s.provider.Retrieve(s.ctx, "f", "")
	s.Require().NoError(err)
	s.Equal([]byte("two"), data)

	names, err := s.provider.List(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"f"}, names)
}

// TestStoreLeavesNoTempFiles tests that uploads clean up after themselves
func (s *DiskTestSuite) TestStoreLeavesNoTempFiles() {
	_, err := s.provider.Store(s.ctx, []byte("x"), "f", "")
	s.Require().NoError(err)

	entries, err := os.ReadDir(filepath.Join(s.tempDir, "data", tempDir))
	s.Require().NoError(err)
	s.Empty(entries)
}

// TestRetrieveMissing tests the not found error
func (s *DiskTestSuite) TestRetrieveMissing() {
	_, err := s.provider.Retrieve(s.ctx, "missing", "")
	s.True(provider.IsNotFound(err))
	s.IsType(provider.FileNotFoundError{}, err)
	s.False(s.provider.Exists(s.ctx, "missing"))
}

// TestDelete tests removal and the second delete
func (s *DiskTestSuite) TestDelete() {
	receipt, err := s.provider.Store(s.ctx, []byte("x"), "f", "")
	s.Require().NoError(err)

	s.Require().NoError(s.provider.Delete(s.ctx, "f"))
	s.NoFileExists(receipt.Ref)
	s.NoFileExists(receipt.Ref + nameSuffix)
	s.True(provider.IsNotFound(s.provider.Delete(s.ctx, "f")))
}

// TestList tests listing and stats
func (s *DiskTestSuite) TestList() {
	for _, name := range []string{"c", "a", "b"} {
		_, err := s.provider.Store(s.ctx, []byte(name+name), name, "")
		s.Require().NoError(err)
	}

	names, err := s.provider.List(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"a", "b", "c"}, names)

	files, size := s.provider.Stats()
	s.Equal(3, files)
	s.Equal(int64(6), size)
}

// TestConcurrentStores tests parallel writers on distinct and shared names
func (s *DiskTestSuite) TestConcurrentStores() {
	var waitGroup sync.WaitGroup
	for i := 0; i < 16; i++ {
		waitGroup.Add(1)
		go func(n int) {
			defer waitGroup.Done()
			name := "shared"
			if n%2 == 0 {
				name = filepath.Base(s.tempDir) + string(rune('a'+n))
			}
			_, err := s.provider.Store(s.ctx, []byte{byte(n)}, name, "")
			s.NoError(err)
		}(i)
	}
	waitGroup.Wait()

	names, err := s.provider.List(s.ctx)
	s.Require().NoError(err)
	s.Len(names, 9)
}

// TestIsConfigured tests the probe after the directory disappears
func (s *DiskTestSuite) TestIsConfigured() {
	s.True(s.provider.IsConfigured())
	s.Require().NoError(os.RemoveAll(filepath.Join(s.tempDir, "data")))
	s.False(s.provider.IsConfigured())
}

// TestDiskUsage tests filesystem statistics
func (s *DiskTestSuite) TestDiskUsage() {
	usage, err := s.provider.DiskUsage()
	s.Require().NoError(err)
	s.Positive(usage.TotalSpace)
	s.GreaterOrEqual(usage.TotalSpace, usage.SpaceAvailable)
}

func TestDiskTestSuite(t *testing.T) {
	suite.Run(t, new(DiskTestSuite))
}
