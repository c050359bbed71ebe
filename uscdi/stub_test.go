package uscdi

import (
	"text2phenotype.com/notex/prompt"
	"text2phenotype.com/notex/types"
	"context"
	"errors"
	"github.com/stretchr/testify/require"
	"strings"
	"sync"
	"testing"
)

type gatewayCall struct {
	model  string
	system string
	user   string
}

// gatewayStub answers group prompts from groups and concept prompts from cuis.
// Anything it has no answer for fails like an upstream error.
type gatewayStub struct {
	mu     sync.Mutex
	calls  []gatewayCall
	groups map[string]map[string]interface{}
	cuis   map[string]interface{}
	fail   bool
	panics bool
}

func (s *gatewayStub) Call(_ context.Context, model, system, user string) (map[string]interface{}, error) {
	s.mu.Lock()
	s.calls = append(s.calls, gatewayCall{model: model, system: system, user: user})
	s.mu.Unlock()
	if s.panics {
		panic("stub exploded")
	}
	if s.fail {
		return nil, &types.ModelCallError{Model: model, Cause: errors.New("stub failure")}
	}
	if system == prompt.ConceptSystemPrompt {
		for term, cui := range s.cuis {
			if strings.Contains(user, "\""+term+"\"") {
				return map[string]interface{}{"cui": cui}, nil
			}
		}
		return nil, &types.ModelCallError{Model: model, Cause: errors.New("unknown term")}
	}
	for first, answer := range s.groups {
		if strings.Contains(system, "Return valid JSON with these keys: "+first) {
			return answer, nil
		}
	}
	return nil, &types.ModelCallError{Model: model, Cause: errors.New("no answer")}
}

func (s *gatewayStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *gatewayStub) conceptCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.system == prompt.ConceptSystemPrompt {
			n++
		}
	}
	return n
}

func loadSchema(t *testing.T) *types.Schema {
	t.Helper()
	schema, err := types.LoadSchema("../resources/uscdi_v6.yaml")
	require.NoError(t, err)
	return schema
}

func newTestExtractor(t *testing.T, stub *gatewayStub) *Extractor {
	t.Helper()
	return NewExtractor(loadSchema(t), stub, nil, DefaultConfig())
}

// record builds a JSON-decoded style record.
func record(kv ...interface{}) map[string]interface{} {
	r := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		r[kv[i].(string)] = kv[i+1]
	}
	return r
}
