package pipeline

import (
	"text2phenotype.com/notex/entities"
	"text2phenotype.com/notex/gateway"
	"text2phenotype.com/notex/prompt"
	"text2phenotype.com/notex/types"
	"text2phenotype.com/notex/uscdi"
	"context"
	"errors"
	"github.com/stretchr/testify/require"
	"strings"
	"sync"
	"testing"
)

type recorder struct {
	mu     sync.Mutex
	models []string
}

func (r *recorder) gateway() gateway.Func {
	return func(_ context.Context, model, system, user string) (map[string]interface{}, error) {
		r.mu.Lock()
		r.models = append(r.models, model)
		r.mu.Unlock()
		switch {
		case system == prompt.EntitySystemPrompt:
			return map[string]interface{}{"medications": []interface{}{map[string]interface{}{"text": "lisinopril"}}}, nil
		case system == prompt.ConceptSystemPrompt:
			return map[string]interface{}{"cui": "C0065374"}, nil
		case strings.Contains(system, "these keys: problems"):
			return map[string]interface{}{"medications": []interface{}{map[string]interface{}{"name": "Lisinopril"}}}, nil
		case strings.Contains(system, "Extract medications from clinical notes"):
			return map[string]interface{}{"medications": []interface{}{}}, nil
		}
		return map[string]interface{}{}, nil
	}
}

func (r *recorder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.models)
}

func newTestService(t *testing.T, gw gateway.Gateway) *Service {
	t.Helper()
	schema, err := types.LoadSchema("../resources/uscdi_v6.yaml")
	require.NoError(t, err)
	return New(schema, gw, nil, uscdi.DefaultConfig(), "gpt-4o")
}

func TestRunDispatch(t *testing.T) {
	rec := &recorder{}
	svc := newTestService(t, rec.gateway())
	ctx := context.Background()
	note := "Patient on lisinopril 20mg daily for hypertension."

	out, err := svc.Run(ctx, Request{Tid: "t1", Text: note, Operation: OperationEntities})
	require.NoError(t, err)
	require.Equal(t, 1, out.(entities.Result).Total())

	out, err = svc.Run(ctx, Request{Tid: "t2", Text: note, Operation: OperationUSCDI, Enrich: true})
	require.NoError(t, err)
	result := out.(types.Result)
	med := result["medications"].([]interface{})[0].(map[string]interface{})
	require.Equal(t, "C0065374", med[types.CUIField])

	out, err = svc.Run(ctx, Request{Tid: "t3", Text: note, Operation: OperationUSCDISingle, Model: "gpt-4o-mini"})
	require.NoError(t, err)
	md, ok := out.(types.Result).Metadata()
	require.True(t, ok)
	require.Equal(t, types.MethodSingle, md.ExtractionMethod)
	require.Equal(t, "gpt-4o-mini", md.ExtractionModel)

	_, err = svc.Run(ctx, Request{Tid: "t4", Text: note, Operation: OperationUSCDIClass, DataClass: "medications"})
	require.NoError(t, err)

	_, err = svc.Run(ctx, Request{Tid: "t5", Text: note, Operation: "translate"})
	require.Error(t, err)
}

func TestDefaultModel(t *testing.T) {
	rec := &recorder{}
	svc := newTestService(t, rec.gateway())
	_, err := svc.ExtractEntities(context.Background(), "note text", "")
	require.NoError(t, err)
	require.Equal(t, []string{"gpt-4o"}, rec.models)
}

func TestEmptyNoteMakesNoCalls(t *testing.T) {
	rec := &recorder{}
	svc := newTestService(t, rec.gateway())
	ctx := context.Background()

	_, err := svc.ExtractUSCDI(ctx, " ", "gpt-4o", true)
	require.True(t, types.IsClientError(err))
	_, err = svc.ExtractUSCDISingle(ctx, "", "gpt-4o")
	require.True(t, types.IsClientError(err))
	_, err = svc.ExtractClass(ctx, "\n", "medications", "gpt-4o")
	require.True(t, types.IsClientError(err))
	_, err = svc.ExtractEntities(ctx, "\t", "gpt-4o")
	require.True(t, types.IsClientError(err))
	require.Zero(t, rec.calls())
}

func TestUnknownClass(t *testing.T) {
	rec := &recorder{}
	svc := newTestService(t, rec.gateway())
	_, err := svc.ExtractClass(context.Background(), "note", "not_a_real_class", "gpt-4o")
	var unknown *types.UnknownDataClassError
	require.True(t, errors.As(err, &unknown))
	require.Zero(t, rec.calls())
}

func TestServiceWithoutGateway(t *testing.T) {
	svc := newTestService(t, nil)
	require.False(t, svc.Ready())
	require.Len(t, svc.ListDataClasses(), 22)
	require.Equal(t, "USCDI v6", svc.SchemaVersion())

	_, err := svc.ExtractUSCDI(context.Background(), "note", "gpt-4o", false)
	require.True(t, types.IsConfigurationError(err))
	_, err = svc.ExtractEntities(context.Background(), "note", "gpt-4o")
	require.True(t, types.IsConfigurationError(err))
}

func TestFormat(t *testing.T) {
	require.Contains(t, Format(entities.Result{}), "MEDICAL ENTITY EXTRACTION RESULTS")
	require.Contains(t, Format(types.Result{}), "DATA EXTRACTION")
	require.Contains(t, Format(map[string]interface{}{"medications": []interface{}{map[string]interface{}{"name": "x"}}}), "MEDICATIONS")
}
