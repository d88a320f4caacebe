package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replicafs/pkg/config"
	"replicafs/pkg/provider/memory"
	"replicafs/pkg/registry"
	"replicafs/pkg/server/gateway"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	root := newRootCmd()
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "replicafs v"+Version+"\n", out)
	assert.NotEmpty(t, Version)
}

func TestServeWithoutProviders(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := execute(t, "serve", "--no-health-checks")
	assert.ErrorIs(t, err, config.ErrNoProviders)
}

func TestServeRejectsBadConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	file := filepath.Join(t.TempDir(), "replicafs.yaml")
	require.NoError(t, os.WriteFile(file, []byte("providers:\n  - {name: a, type: tape}\n"), 0600))

	_, err := execute(t, "serve", "--config", file)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRegisterProviders(t *testing.T) {
	reg, err := registry.New(registry.Config{DisableHealthChecks: true})
	require.NoError(t, err)

	err = registerProviders(reg, []config.ProviderConfig{
		{Name: "mem", Type: config.TypeMemory},
		{Name: "disk", Type: config.TypeDisk, Path: t.TempDir(), Encrypt: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"mem", "disk"}, reg.Keys())
}

func TestBench(t *testing.T) {
	reg, err := registry.New(registry.Config{Level: "single", DisableHealthChecks: true, CallTimeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, reg.Register("A", memory.New("A")))
	require.NoError(t, reg.InitializeAll(context.Background()))
	defer func() { _ = reg.Shutdown(context.Background()) }()

	srv := httptest.NewServer(gateway.New(gateway.Config{Registry: reg}).Handler())
	defer srv.Close()

	out, err := execute(t, "bench", "--url", srv.URL, "--count", "5", "--size", "2KiB", "--parallel", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "5 files of 2.0 KiB")
	assert.Contains(t, out, "put      n=5")
	assert.Contains(t, out, "delete   n=5")

	names, err := reg.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestBenchRejectsBadSize(t *testing.T) {
	_, err := execute(t, "bench", "--size", "lots")
	assert.Error(t, err)
}

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(samples, 50))
	assert.Equal(t, time.Duration(9), percentile(samples, 95))
	assert.Equal(t, time.Duration(1), percentile(samples[:1], 95))
}
