package fswatch

import (
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rjeczalik/notify"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/events"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/policy"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/workspace"
)

// outputExts are the output/ file types the browser previews.
var outputExts = mapset.NewSet(".png", ".jpg", ".jpeg", ".gif", ".webp", ".csv", ".xlsx", ".xls")

// Classify maps one raw filesystem event to a typed change event. Returns
// false for paths outside the watched subtrees or ignored by policy.
func Classify(root, absPath string, ev notify.Event) (events.Event, bool) {
	rel, err := filepath.Rel(root, absPath)
	if err != nil {
		return events.Event{}, false
	}
	rel = filepath.ToSlash(rel)

	if policy.Ignored(rel) {
		return events.Event{}, false
	}

	created := ev&(notify.Create|notify.Write|notify.Rename) != 0
	ext := strings.ToLower(filepath.Ext(rel))

	switch {
	case under(rel, workspace.InputDirName):
		// any event counts: deletes change the data story too
		return events.Event{Type: events.DataChange, Path: rel}, true

	case under(rel, workspace.AppDirName+"/"+workspace.ScriptsDirName) && created:
		return events.Event{Type: events.ScriptChange, Path: rel}, true

	case under(rel, workspace.AppDirName) && ext == ".py" && created:
		return events.Event{Type: events.ScriptChange, Path: rel}, true

	case under(rel, workspace.OutputDirName) && created && outputExts.Contains(ext):
		return events.Event{Type: events.OutputFileChange, Path: rel}, true
	}

	return events.Event{}, false
}

func under(rel, prefix string) bool {
	return rel == prefix || strings.HasPrefix(rel, prefix+"/")
}
