package orchestratornode

import (
	"errors"

	"frontdesk/agent/extract"
)

// ExtractEntities merges this turn's extracted entities into the state.
// Corrections may overwrite confirmed slots; ordinary candidates may not.
func ExtractEntities(in *GraphState, extractor *extract.Extractor) (*GraphState, error) {
	if in == nil || in.Conv == nil {
		return nil, errors.New("graph state is nil")
	}
	if in.ShortCircuit {
		return in, nil
	}

	res := extractor.Extract(in.Utterance, in.Now)
	if err := in.Conv.MergeEntities(res.Entities, res.IsCorrection); err != nil {
		return nil, err
	}
	return in, nil
}
