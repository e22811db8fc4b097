package core_test

import (
	"sync"

	"mcmm/internal/core"
	"mcmm/internal/domain"
)

// recordingObserver keeps every event it receives
type recordingObserver struct {
	core.NopObserver

	mu        sync.Mutex
	outcomes  []core.Outcome
	started   []string
	finished  map[string]error
	installed []string
	warnings  []string
}

func (o *recordingObserver) Resolved(outcome core.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) DownloadStarted(data *domain.DownloadData) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, data.Output)
}

func (o *recordingObserver) DownloadFinished(data *domain.DownloadData, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.finished == nil {
		o.finished = make(map[string]error)
	}
	o.finished[data.Output] = err
}

func (o *recordingObserver) Installed(inst *domain.InstallData, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err == nil {
		o.installed = append(o.installed, inst.Dest)
	}
}

func (o *recordingObserver) Warn(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.warnings = append(o.warnings, msg)
}

func (o *recordingObserver) resolved() []core.Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]core.Outcome(nil), o.outcomes...)
}
