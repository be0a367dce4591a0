package probe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsight/maintkit/internal/assistant"
	"github.com/fieldsight/maintkit/internal/awsx"
	"github.com/fieldsight/maintkit/internal/config"
)

func writeSuite(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSuite(t *testing.T) {
	path := writeSuite(t, `
cases:
  - name: bearing question
    query: What does a bearing fault look like?
    expect: vibration
  - query: What maintenance is due this week?
`)

	suite, err := LoadSuite(path)
	require.NoError(t, err)
	require.Len(t, suite.Cases, 2)
	assert.Equal(t, "bearing question", suite.Cases[0].Name)
	assert.Equal(t, "vibration", suite.Cases[0].Expect)
	assert.Equal(t, "case 2", suite.Cases[1].Name)
}

func TestLoadSuiteErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSuite(filepath.Join(t.TempDir(), "absent.yaml"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "read smoke suite")
	})

	t.Run("no cases", func(t *testing.T) {
		_, err := LoadSuite(writeSuite(t, "cases: []\n"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "no cases")
	})

	t.Run("case without query", func(t *testing.T) {
		_, err := LoadSuite(writeSuite(t, "cases:\n  - name: empty\n"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "has no query")
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := LoadSuite(writeSuite(t, "cases: [unterminated"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse smoke suite")
	})
}

func TestDefaultSuite(t *testing.T) {
	suite := DefaultSuite()

	require.Len(t, suite.Cases, 4)
	for _, tc := range suite.Cases {
		assert.NotEmpty(t, tc.Name)
		assert.NotEmpty(t, tc.Query)
	}
}

func TestSmoke(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req assistant.QueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var response string
		switch req.Query {
		case "short":
			response = "ok"
		default:
			response = "The drive-side bearing shows critical vibration levels and should be replaced."
		}
		json.NewEncoder(w).Encode(assistant.QueryResponse{Response: response, SessionID: req.SessionID})
	}))
	defer ts.Close()

	p := New(&awsx.Clients{Region: "us-west-2"}, &config.Config{}, silentLog())
	ep := assistant.NewEndpoint(ts.URL)

	suite := &SmokeSuite{Cases: []SmokeCase{
		{Name: "passes", Query: "What is wrong with the conveyor?"},
		{Name: "expect match", Query: "Which part fails?", Expect: "BEARING"},
		{Name: "expect miss", Query: "Which part fails?", Expect: "gearbox"},
		{Name: "too short", Query: "short"},
	}}

	results := p.Smoke(context.Background(), ep, suite)
	require.Len(t, results, 4)

	assert.True(t, results[0].Passed)
	assert.True(t, results[1].Passed)
	assert.False(t, results[2].Passed)
	assert.Contains(t, results[2].Detail, `"gearbox"`)
	assert.False(t, results[3].Passed)
	assert.Contains(t, results[3].Detail, "too short")

	assert.False(t, SmokePassed(results))
	assert.True(t, SmokePassed(results[:2]))
	assert.False(t, SmokePassed(nil))
}
