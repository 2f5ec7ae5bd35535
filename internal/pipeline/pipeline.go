// Package pipeline chains reshaping, merging and derivation into one pure
// refresh step producing an immutable dataset.
package pipeline

import (
	"fmt"

	"covidlens/internal/derive"
	"covidlens/internal/merge"
	"covidlens/internal/model"
	"covidlens/internal/population"
	"covidlens/internal/reshape"
)

// Inputs are the in-memory tables a refresh runs on.
type Inputs struct {
	Confirmed  reshape.WideTable
	Deaths     reshape.WideTable
	Recovered  reshape.WideTable
	Population *population.Table
}

// Run builds the enriched dataset. Any reshape failure aborts the run.
func Run(in Inputs) (model.Dataset, error) {
	confirmed, err := reshape.Reshape(in.Confirmed, model.Confirmed)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("pipeline: %w", err)
	}
	deaths, err := reshape.Reshape(in.Deaths, model.Deaths)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("pipeline: %w", err)
	}
	recovered, err := reshape.Reshape(in.Recovered, model.Recovered)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("pipeline: %w", err)
	}
	merged := merge.Merge(confirmed, deaths, recovered)
	return model.Dataset{Records: derive.Derive(merged, in.Population)}, nil
}
