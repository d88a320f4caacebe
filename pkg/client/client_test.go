package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"replicafs/pkg/crypto"
	"replicafs/pkg/provider"
	"replicafs/pkg/provider/memory"
	"replicafs/pkg/redundancy"
	"replicafs/pkg/registry"
	"replicafs/pkg/server/gateway"
)

// ClientTestSuite tests the client against a real gateway
type ClientTestSuite struct {
	suite.Suite
	ctx      context.Context
	registry *registry.Registry
	server   *httptest.Server
	client   *Client
}

// SetupTest serves a gateway over two sealed memory providers
func (s *ClientTestSuite) SetupTest() {
	s.ctx = context.Background()

	var err error
	s.registry, err = registry.New(registry.Config{
		Level:               redundancy.Dual,
		CallTimeout:         time.Second,
		DisableHealthChecks: true,
	})
	s.Require().NoError(err)
	for _, key := range []string{"A", "B"} {
		s.Require().NoError(s.registry.Register(key, provider.Seal(memory.New(key), crypto.NewXChaCha())))
	}
	s.Require().NoError(s.registry.InitializeAll(s.ctx))

	s.server = httptest.NewServer(gateway.New(gateway.Config{Registry: s.registry}).Handler())
	s.client = New(s.server.URL+"/", "pw")
}

// TearDownTest stops the gateway
func (s *ClientTestSuite) TearDownTest() {
	s.server.Close()
	s.NoError(s.registry.Shutdown(s.ctx))
}

// TestRoundTrip tests put, get, exists, list and delete
func (s *ClientTestSuite) TestRoundTrip() {
	report, err := s.client.Put(s.ctx, "a b.txt", []byte("payload"))
	s.Require().NoError(err)
	s.ElementsMatch([]string{"A", "B"}, report.Succeeded)

	data, err := s.client.Get(s.ctx, "a b.txt")
	s.Require().NoError(err)
	s.Equal([]byte("payload"), data)

	ok, err := s.client.Exists(s.ctx, "a b.txt")
	s.Require().NoError(err)
	s.True(ok)

	names, err := s.client.List(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"a b.txt"}, names)

	deleted, err := s.client.Delete(s.ctx, "a b.txt")
	s.Require().NoError(err)
	s.ElementsMatch([]string{"A", "B"}, deleted.Deleted)

	ok, err = s.client.Exists(s.ctx, "a b.txt")
	s.Require().NoError(err)
	s.False(ok)
}

// TestErrors tests API errors
func (s *ClientTestSuite) TestErrors() {
	_, err := s.client.Get(s.ctx, "missing")
	var apiErr *APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(http.StatusNotFound, apiErr.StatusCode)
	s.NotEmpty(apiErr.Message)

	_, err = New(s.server.URL, "").Put(s.ctx, "f", []byte("x"))
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(http.StatusBadRequest, apiErr.StatusCode)
	s.Require().NotNil(apiErr.Report)
	s.Len(apiErr.Report.Failures, 2)
}

// TestRedundancy tests reading and changing the level
func (s *ClientTestSuite) TestRedundancy() {
	resp, err := s.client.Redundancy(s.ctx)
	s.Require().NoError(err)
	s.Equal("dual", resp.Level)

	resp, err = s.client.SetRedundancy(s.ctx, "single")
	s.Require().NoError(err)
	s.Equal(1, resp.Attempt)

	resp, err = s.client.SetRedundancy(s.ctx, "")
	s.Require().NoError(err)
	s.Equal("single", resp.Level)

	statuses, err := s.client.Providers(s.ctx)
	s.Require().NoError(err)
	s.Len(statuses, 2)
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}
