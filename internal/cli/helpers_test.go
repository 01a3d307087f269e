package cli

import (
	"bytes"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/kiosksync/internal/backend"
	"github.com/roach88/kiosksync/internal/config"
	"github.com/roach88/kiosksync/internal/remote"
)

// clearEnv keeps the developer's environment out of config loading.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{config.EnvBackendURL, config.EnvBackendKey, config.EnvDB, config.EnvKafkaBrokers} {
		t.Setenv(k, "")
	}
}

// kiosk is one kiosk's config file and database.
type kiosk struct {
	configPath string
	dbPath     string
}

func newKiosk(t *testing.T, yaml string) kiosk {
	t.Helper()
	clearEnv(t)
	dir := t.TempDir()
	k := kiosk{
		configPath: filepath.Join(dir, "kiosk.yaml"),
		dbPath:     filepath.Join(dir, "kiosk.db"),
	}
	require.NoError(t, os.WriteFile(k.configPath, []byte(yaml), 0o644))
	return k
}

func newSimulatedKiosk(t *testing.T) kiosk {
	return newKiosk(t, "simulated:\n  sample_data: true\n")
}

// newConnectedKiosk starts a reference backend and points a kiosk at it.
func newConnectedKiosk(t *testing.T, policy backend.Policy) (kiosk, *remote.Simulated) {
	t.Helper()
	sim := remote.NewSimulated(remote.WithOrders(remote.SampleOrders(testNow)...))
	if policy.APIKey == "" {
		policy.APIKey = "test-key"
	}
	srv := httptest.NewServer(backend.NewServer(sim, backend.WithPolicy(policy)))
	t.Cleanup(srv.Close)

	k := newKiosk(t, fmt.Sprintf("backend:\n  url: %s\n  api_key: %s\n  timeout: 2s\n", srv.URL, policy.APIKey))
	return k, sim
}

// run executes one CLI invocation against k and returns stdout.
func (k kiosk) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	opts := &RootOptions{LogWriter: io.Discard}
	cmd := newRootCommand(opts)

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", k.configPath, "--db", k.dbPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}
