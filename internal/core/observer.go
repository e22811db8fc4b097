package core

import "mcmm/internal/domain"

// Observer receives progress from the resolver and executor. Methods may be
// called from several goroutines at once.
type Observer interface {
	// Resolved is called once per resolution outcome, success or failure
	Resolved(outcome Outcome)

	// DownloadStarted is called when a download task begins
	DownloadStarted(data *domain.DownloadData)

	// DownloadProgress reports bytes received so far for one download
	DownloadProgress(data *domain.DownloadData, downloaded, total int64)

	// DownloadFinished is called when a download task ends; err is nil on success
	DownloadFinished(data *domain.DownloadData, err error)

	// Installed is called after each install; err is nil on success
	Installed(inst *domain.InstallData, err error)

	// Warn reports a non-fatal condition the user should see
	Warn(msg string)
}

// NopObserver ignores every event
type NopObserver struct{}

func (NopObserver) Resolved(Outcome) {}
func (NopObserver) DownloadStarted(*domain.DownloadData) {}
func (NopObserver) DownloadProgress(*domain.DownloadData, int64, int64) {}
func (NopObserver) DownloadFinished(*domain.DownloadData, error) {}
func (NopObserver) Installed(*domain.InstallData, error) {}
func (NopObserver) Warn(string) {}
