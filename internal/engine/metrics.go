package engine

import (
	"github.com/uber-go/tally/v4"
)

// Metrics tracks the counters of the save and load paths.
type Metrics struct {
	SaveUnits    tally.Counter
	SaveEntities tally.Counter
	SaveRows     tally.Counter
	SaveFail     tally.Counter
	SaveDuration tally.Timer

	LoadEntities tally.Counter
	LoadSkipped  tally.Counter
	LoadFail     tally.Counter
	LoadDuration tally.Timer

	DeleteRevisions tally.Counter
	DeleteFail      tally.Counter

	ReportRows tally.Counter
}

// NewMetrics returns a new Metrics struct, with all metrics initialized
// and rooted at the given tally.Scope
func NewMetrics(scope tally.Scope) *Metrics {
	saveScope := scope.SubScope("save")
	loadScope := scope.SubScope("load")
	deleteScope := scope.SubScope("delete")
	reportScope := scope.SubScope("report")

	return &Metrics{
		SaveUnits:    saveScope.Counter("units"),
		SaveEntities: saveScope.Counter("entities"),
		SaveRows:     saveScope.Counter("rows"),
		SaveFail:     saveScope.Counter("fail"),
		SaveDuration: saveScope.Timer("duration"),

		LoadEntities: loadScope.Counter("entities"),
		LoadSkipped:  loadScope.Counter("skipped"),
		LoadFail:     loadScope.Counter("fail"),
		LoadDuration: loadScope.Timer("duration"),

		DeleteRevisions: deleteScope.Counter("revisions"),
		DeleteFail:      deleteScope.Counter("fail"),

		ReportRows: reportScope.Counter("rows"),
	}
}
