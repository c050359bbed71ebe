package uscdi

import (
	"text2phenotype.com/notex/prompt"
	"text2phenotype.com/notex/types"
	"context"
)

// ExtractClass extracts exactly one data class with one model call. Model
// failures are returned to the caller.
func (e *Extractor) ExtractClass(ctx context.Context, note, className, model string) (map[string]interface{}, error) {
	class, ok := e.schema.Class(className)
	if !ok {
		return nil, &types.UnknownDataClassError{Name: className, Valid: e.schema.ClassNames()}
	}
	if err := types.CheckNote(note); err != nil {
		return nil, err
	}
	system, user := prompt.BuildClassPrompts(e.schema, class, note)
	obj, err := e.gw.Call(ctx, model, system, user)
	if err != nil {
		e.exLogger.Error().Err(err).Str("data_class", className).Str("model", model).Msg("Class extraction failed")
		return nil, err
	}
	return obj, nil
}

// ExtractSingle sends the whole schema in one prompt. There is no batching and
// no enrichment.
func (e *Extractor) ExtractSingle(ctx context.Context, note, model string) (types.Result, error) {
	if err := types.CheckNote(note); err != nil {
		return nil, err
	}
	obj, err := e.gw.Call(ctx, model, prompt.BuildSystemPrompt(e.schema), prompt.BuildUserPrompt(e.schema, note))
	if err != nil {
		e.exLogger.Error().Err(err).Str("model", model).Msg("Single-call extraction failed")
		return nil, err
	}
	result := mergeSlots([]map[string]interface{}{obj})
	result.Seal(e.schema.Version, model, types.MethodSingle, false)
	return result, nil
}
