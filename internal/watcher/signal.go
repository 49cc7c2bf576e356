package watcher

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"voxd/internal/types"
)

// SignalFileName is the completion-signal file the dictation tool
// writes into each session folder.
const SignalFileName = "meta.json"

// signalFile is the on-disk shape of the completion signal. The tool
// writes the file incrementally, so every field except result is
// optional and result itself may be absent, null, or empty until the
// transcription finishes.
type signalFile struct {
	Result        *string `json:"result"`
	RefinedResult string  `json:"refinedResult"`
	ModeName      string  `json:"modeName"`
	StartedAt     float64 `json:"startedAt"`  // unix seconds
	FinishedAt    float64 `json:"finishedAt"` // unix seconds
}

// ReadSignal parses the completion signal in a session folder. The
// boolean reports validity: the file exists, parses, and carries a
// non-empty result. An invalid signal is not an error; the caller keeps
// watching.
func ReadSignal(sessionPath string) (types.CompletionRecord, bool) {
	data, err := os.ReadFile(filepath.Join(sessionPath, SignalFileName))
	if err != nil {
		return types.CompletionRecord{}, false
	}

	var sf signalFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return types.CompletionRecord{}, false
	}
	if sf.Result == nil || *sf.Result == "" {
		return types.CompletionRecord{}, false
	}

	rec := types.CompletionRecord{
		Result:        *sf.Result,
		RefinedResult: sf.RefinedResult,
		ModeName:      sf.ModeName,
	}
	if sf.StartedAt > 0 {
		rec.StartedAt = time.Unix(0, int64(sf.StartedAt*float64(time.Second)))
	}
	if sf.FinishedAt > 0 {
		rec.FinishedAt = time.Unix(0, int64(sf.FinishedAt*float64(time.Second)))
	}
	return rec, true
}

// SignalExists reports whether the completion file is still present.
// The selector re-checks this immediately before executing: a deleted
// signal file cancels the pending action.
func SignalExists(sessionPath string) bool {
	_, err := os.Stat(filepath.Join(sessionPath, SignalFileName))
	return err == nil
}
