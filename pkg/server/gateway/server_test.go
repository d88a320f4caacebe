package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/suite"

	"replicafs/pkg/crypto"
	"replicafs/pkg/metrics"
	"replicafs/pkg/models"
	"replicafs/pkg/provider"
	"replicafs/pkg/provider/memory"
	"replicafs/pkg/provider/providertest"
	"replicafs/pkg/redundancy"
	"replicafs/pkg/registry"
)

// GatewayTestSuite tests the gateway HTTP API over in-memory providers
type GatewayTestSuite struct {
	suite.Suite
	ctx       context.Context
	providers map[string]*memory.Provider
	registry  *registry.Registry
	server    *Server
}

func (s *GatewayTestSuite) newGateway(level redundancy.Level, providers map[string]provider.Provider, keys ...string) {
	r, err := registry.New(registry.Config{
		Level:               level,
		CallTimeout:         time.Second,
		DisableHealthChecks: true,
		Metrics:             metrics.NewRecorder(),
	})
	s.Require().NoError(err)
	for _, key := range keys {
		s.Require().NoError(r.Register(key, providers[key]))
	}
	s.Require().NoError(r.InitializeAll(s.ctx))
	s.registry = r
	s.server = New(Config{Registry: r, Metrics: metrics.NewRecorder(), Version: "test"})
}

// SetupTest serves three memory providers at level triple
func (s *GatewayTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.providers = map[string]*memory.Provider{
		"A": memory.New("A"),
		"B": memory.New("B"),
		"C": memory.New("C"),
	}
	providers := make(map[string]provider.Provider)
	for key, p := range s.providers {
		providers[key] = p
	}
	s.newGateway(redundancy.Triple, providers, "A", "B", "C")
}

// TearDownTest shuts the registry down
func (s *GatewayTestSuite) TearDownTest() {
	s.NoError(s.registry.Shutdown(s.ctx))
}

func (s *GatewayTestSuite) do(method, target string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (s *GatewayTestSuite) decode(rec *httptest.ResponseRecorder, out any) {
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), out))
}

// TestUploadAndDownload tests a replicated write and a read back
func (s *GatewayTestSuite) TestUploadAndDownload() {
	rec := s.do(http.MethodPut, "/files/notes%20v1.txt", []byte("replicated"), nil)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var report models.WriteReport
	s.decode(rec, &report)
	s.Equal("notes v1.txt", report.Filename)
	s.Equal("triple", report.Level)
	s.Equal(2, report.Required)
	s.ElementsMatch([]string{"A", "B", "C"}, report.Succeeded)
	for key, p := range s.providers {
		s.True(p.Exists(s.ctx, "notes v1.txt"), key)
	}

	rec = s.do(http.MethodGet, "/files/notes%20v1.txt", nil, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("replicated", rec.Body.String())

	s.Equal(http.StatusOK, s.do(http.MethodHead, "/files/notes%20v1.txt", nil, nil).Code)
	s.NotEmpty(rec.Header().Get(echo.HeaderXRequestID))
}

// TestMultipartUpload tests POST /files with a form file
func (s *GatewayTestSuite) TestMultipartUpload() {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "form.bin")
	s.Require().NoError(err)
	_, err = part.Write([]byte("form data"))
	s.Require().NoError(err)
	s.Require().NoError(writer.Close())

	rec := s.do(http.MethodPost, "/files", body.Bytes(), map[string]string{"Content-Type": writer.FormDataContentType()})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	s.True(s.providers["B"].Exists(s.ctx, "form.bin"))

	rec = s.do(http.MethodPost, "/files", nil, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

// TestInvalidFilename tests rejected names
func (s *GatewayTestSuite) TestInvalidFilename() {
	rec := s.do(http.MethodPut, "/files/a%2Fb", []byte("x"), nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

// TestNotFound tests reads of missing objects
func (s *GatewayTestSuite) TestNotFound() {
	rec := s.do(http.MethodGet, "/files/missing", nil, nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Contains(rec.Body.String(), "error")
	s.Equal(http.StatusNotFound, s.do(http.MethodHead, "/files/missing", nil, nil).Code)
}

// TestDeleteAndList tests DELETE and the merged listing
func (s *GatewayTestSuite) TestDeleteAndList() {
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPut, "/files/b", []byte("2"), nil).Code)
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPut, "/files/a", []byte("1"), nil).Code)
	_, err := s.providers["C"].Store(s.ctx, []byte("only C"), "c", "")
	s.Require().NoError(err)

	var listing models.ListResponse
	rec := s.do(http.MethodGet, "/files", nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.decode(rec, &listing)
	s.Equal([]string{"a", "b", "c"}, listing.Files)

	rec = s.do(http.MethodDelete, "/files/c", nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var report models.DeleteReport
	s.decode(rec, &report)
	s.Equal([]string{"C"}, report.Deleted)
	s.ElementsMatch([]string{"A", "B"}, report.Absent)
	s.False(s.providers["C"].Exists(s.ctx, "c"))
}

// TestRedundancyNotMet tests the report returned with a failed write
func (s *GatewayTestSuite) TestRedundancyNotMet() {
	calls := providertest.NewCallLog()
	boom := errors.New("disk on fire")
	providers := map[string]provider.Provider{
		"A": providertest.NewFake("A", calls),
		"B": providertest.NewFake("B", calls).Fail(providertest.OpStore, boom),
		"C": providertest.NewFake("C", calls).Fail(providertest.OpStore, boom),
	}
	s.NoError(s.registry.Shutdown(s.ctx))
	s.newGateway(redundancy.Triple, providers, "A", "B", "C")

	rec := s.do(http.MethodPut, "/files/f", []byte("x"), nil)
	s.Require().Equal(http.StatusBadGateway, rec.Code)

	var resp WriteErrorResponse
	s.decode(rec, &resp)
	s.Contains(resp.Error, "redundancy not met")
	s.Require().NotNil(resp.Report)
	s.Equal([]string{"A"}, resp.Report.Succeeded)
	s.Len(resp.Report.Failures, 2)
}

// TestInsufficientProviders tests the pre-flight rejection
func (s *GatewayTestSuite) TestInsufficientProviders() {
	s.NoError(s.registry.Shutdown(s.ctx))
	s.newGateway(redundancy.Triple, map[string]provider.Provider{"A": memory.New("A")}, "A")

	rec := s.do(http.MethodPut, "/files/f", []byte("x"), nil)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Contains(rec.Body.String(), "insufficient healthy providers")
}

// TestEncryptedProviders tests credential handling with sealed providers
func (s *GatewayTestSuite) TestEncryptedProviders() {
	inner := memory.New("A")
	s.NoError(s.registry.Shutdown(s.ctx))
	s.newGateway(redundancy.Single, map[string]provider.Provider{
		"A": provider.Seal(inner, crypto.NewXChaCha()),
	}, "A")

	withCredential := map[string]string{CredentialHeader: "open sesame"}
	s.Equal(http.StatusBadRequest, s.do(http.MethodPut, "/files/secret", []byte("x"), nil).Code)
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPut, "/files/secret", []byte("classified"), withCredential).Code)

	raw, err := inner.Retrieve(s.ctx, "secret", "")
	s.Require().NoError(err)
	s.NotContains(string(raw), "classified")

	rec := s.do(http.MethodGet, "/files/secret", nil, withCredential)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("classified", rec.Body.String())

	rec = s.do(http.MethodGet, "/files/secret", nil, map[string]string{CredentialHeader: "wrong"})
	s.Equal(http.StatusForbidden, rec.Code)
}

// TestRedundancyEndpoints tests reading and changing the level
func (s *GatewayTestSuite) TestRedundancyEndpoints() {
	var resp models.RedundancyResponse
	rec := s.do(http.MethodGet, "/redundancy", nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.decode(rec, &resp)
	s.Equal(models.RedundancyResponse{Level: "triple", Attempt: 3, Minimum: 2}, resp)

	jsonHeader := map[string]string{"Content-Type": "application/json"}
	rec = s.do(http.MethodPut, "/redundancy", []byte(`{"level":"single","preferred":"B"}`), jsonHeader)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.decode(rec, &resp)
	s.Equal(models.RedundancyResponse{Level: "single", Attempt: 1, Minimum: 1, Preferred: "B"}, resp)
	s.Equal(redundancy.Single, s.registry.RedundancyLevel())

	rec = s.do(http.MethodPut, "/redundancy", []byte(`{"level":"quintuple"}`), jsonHeader)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPut, "/redundancy", []byte(`{"preferred":"Z"}`), jsonHeader)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("B", s.registry.Preferred())
}

// TestCustomRedundancyLevel tests selecting a level from a custom policy
func (s *GatewayTestSuite) TestCustomRedundancyLevel() {
	s.NoError(s.registry.Shutdown(s.ctx))

	policy, err := redundancy.NewPolicy(map[redundancy.Level]redundancy.Requirement{
		redundancy.Single: {Attempt: 1, Minimum: 1},
		"mirror":          {Attempt: 3, Minimum: 3},
	})
	s.Require().NoError(err)
	r, err := registry.New(registry.Config{Level: redundancy.Single, Policy: &policy, DisableHealthChecks: true})
	s.Require().NoError(err)
	for _, key := range []string{"A", "B", "C"} {
		s.Require().NoError(r.Register(key, memory.New(key)))
	}
	s.Require().NoError(r.InitializeAll(s.ctx))
	s.registry = r
	s.server = New(Config{Registry: r, Version: "test"})

	jsonHeader := map[string]string{"Content-Type": "application/json"}
	rec := s.do(http.MethodPut, "/redundancy", []byte(`{"level":"Mirror"}`), jsonHeader)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp models.RedundancyResponse
	s.decode(rec, &resp)
	s.Equal(models.RedundancyResponse{Level: "mirror", Attempt: 3, Minimum: 3}, resp)
	s.Equal(redundancy.Level("mirror"), r.RedundancyLevel())

	rec = s.do(http.MethodPut, "/redundancy", []byte(`{"level":"dual"}`), jsonHeader)
	s.Equal(http.StatusBadRequest, rec.Code)
}

// TestProviderEndpoints tests status listing and on-demand checks
func (s *GatewayTestSuite) TestProviderEndpoints() {
	var statuses []models.ProviderStatus
	rec := s.do(http.MethodGet, "/providers", nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.decode(rec, &statuses)
	s.Len(statuses, 3)

	var status models.ProviderStatus
	rec = s.do(http.MethodGet, "/providers/B", nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.decode(rec, &status)
	s.Equal("B", status.Key)
	s.True(status.Healthy)

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/providers/Z", nil, nil).Code)

	rec = s.do(http.MethodPost, "/providers/check", nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.decode(rec, &statuses)
	s.Len(statuses, 3)
}

// TestHealthz tests readiness reporting
func (s *GatewayTestSuite) TestHealthz() {
	var health HealthResponse
	rec := s.do(http.MethodGet, "/healthz", nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.decode(rec, &health)
	s.Equal(HealthResponse{Status: "ok", Healthy: 3, Required: 2, Providers: 3}, health)

	s.NoError(s.registry.Shutdown(s.ctx))
	rec = s.do(http.MethodGet, "/healthz", nil, nil)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}

// TestMetrics tests the Prometheus endpoint
func (s *GatewayTestSuite) TestMetrics() {
	rec := s.do(http.MethodGet, "/metrics", nil, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.True(strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
}

// TestStartStops tests that Start initializes the registry and returns once its context is done
func (s *GatewayTestSuite) TestStartStops() {
	r, err := registry.New(registry.Config{DisableHealthChecks: true})
	s.Require().NoError(err)
	s.Require().NoError(r.Register("A", memory.New("A")))
	srv := New(Config{Registry: r})

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() {
		done <- srv.Start(ctx, "127.0.0.1:0")
	}()

	s.Eventually(r.IsInitialized, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.Fail("gateway did not stop")
	}
	s.False(r.IsInitialized())
}

func TestGatewayTestSuite(t *testing.T) {
	suite.Run(t, new(GatewayTestSuite))
}
