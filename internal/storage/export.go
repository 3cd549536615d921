package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/diffdrive/internal/mission"
)

type ExportData struct {
	Run    RunMetadata     `json:"run"`
	Steps  int             `json:"steps"`
	Cycles []mission.Cycle `json:"cycles"`
}

// ExportJSON writes a run and its trajectory as one JSON document.
func ExportJSON(w io.Writer, meta RunMetadata, cycles []mission.Cycle) error {
	data := ExportData{
		Run:    meta,
		Steps:  len(cycles),
		Cycles: cycles,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
