package probe

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fieldsight/maintkit/internal/assistant"
)

// minSmokeResponseChars rejects replies too short to be a real answer.
const minSmokeResponseChars = 10

// SmokeCase is one query in a smoke suite.
type SmokeCase struct {
	Name   string `yaml:"name"`
	Query  string `yaml:"query"`
	Expect string `yaml:"expect,omitempty"`
}

// SmokeSuite is a set of queries to run against the deployed endpoint.
type SmokeSuite struct {
	Cases []SmokeCase `yaml:"cases"`
}

// LoadSuite reads a smoke suite from a YAML file. Cases without a name
// get one from their position.
func LoadSuite(path string) (*SmokeSuite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read smoke suite: %w", err)
	}
	var suite SmokeSuite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("parse smoke suite %s: %w", path, err)
	}
	if len(suite.Cases) == 0 {
		return nil, fmt.Errorf("smoke suite %s has no cases", path)
	}
	for i := range suite.Cases {
		if strings.TrimSpace(suite.Cases[i].Query) == "" {
			return nil, fmt.Errorf("smoke suite %s: case %d has no query", path, i+1)
		}
		if suite.Cases[i].Name == "" {
			suite.Cases[i].Name = fmt.Sprintf("case %d", i+1)
		}
	}
	return &suite, nil
}

// DefaultSuite returns the built-in deployment checks used when no
// suite file is given.
func DefaultSuite() *SmokeSuite {
	return &SmokeSuite{Cases: []SmokeCase{
		{Name: "conveyor status", Query: "What is the current status of the industrial conveyor?"},
		{Name: "recent faults", Query: "Show me recent fault predictions"},
		{Name: "recommended maintenance", Query: "What maintenance is recommended?"},
		{Name: "health check", Query: "System health check"},
	}}
}

// SmokeResult is one case's outcome.
type SmokeResult struct {
	Case     SmokeCase
	Passed   bool
	Response string
	Detail   string
	Elapsed  time.Duration
}

// Smoke posts every case in the suite to the endpoint. A case passes
// when the call succeeds, the reply is longer than a brush-off, and
// any expected substring is present (matched case-insensitively).
func (p *Probe) Smoke(ctx context.Context, ep *assistant.Endpoint, suite *SmokeSuite) []SmokeResult {
	results := make([]SmokeResult, 0, len(suite.Cases))
	for i, tc := range suite.Cases {
		start := time.Now()
		sessionID := fmt.Sprintf("smoke-%d-%d", i+1, start.Unix())
		resp, err := ep.Ask(ctx, tc.Query, sessionID)

		result := SmokeResult{Case: tc, Elapsed: time.Since(start)}
		switch {
		case err != nil:
			result.Detail = err.Error()
		case len(resp.Response) <= minSmokeResponseChars:
			result.Response = resp.Response
			result.Detail = "response too short to be an answer"
		case tc.Expect != "" && !strings.Contains(strings.ToLower(resp.Response), strings.ToLower(tc.Expect)):
			result.Response = resp.Response
			result.Detail = fmt.Sprintf("expected substring %q not found", tc.Expect)
		default:
			result.Passed = true
			result.Response = resp.Response
		}

		p.log.Info().
			Str("case", tc.Name).
			Bool("passed", result.Passed).
			Dur("elapsed", result.Elapsed).
			Msg("smoke case finished")
		results = append(results, result)
	}
	return results
}

// SmokePassed reports whether results is non-empty and every case
// passed.
func SmokePassed(results []SmokeResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return len(results) > 0
}
