package cli

import (
	"fmt"

	"github.com/roach88/gridsync/internal/engine"
	"github.com/roach88/gridsync/internal/schema"
)

// loadGrid reads the grid definition at path, if any, and applies the
// dataset and id field overrides. Without a definition the grid has no
// columns, the "id" id field and the default autosave window.
func loadGrid(path, dataset, idField string) (*schema.Grid, error) {
	grid := &schema.Grid{IDField: "id", Autosave: engine.DefaultAutosaveDelay}
	if path != "" {
		g, err := schema.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load grid: %w", err)
		}
		grid = g
	}
	if dataset != "" {
		grid.Name = dataset
	}
	if idField != "" {
		grid.IDField = idField
	}
	if grid.Name == "" {
		return nil, fmt.Errorf("a dataset is required (--grid or --dataset)")
	}
	return grid, nil
}
