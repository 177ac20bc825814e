package models

// SyncPhase names one stage of the sync pipeline. Phases always run in the
// order listed here; a consumer can rely on never seeing an earlier phase
// after a later one within a single run.
type SyncPhase string

const (
	PhasePull                SyncPhase = "pull"
	PhasePush                SyncPhase = "push"
	PhaseAttachmentsDownload SyncPhase = "attachments_download"
	PhaseAttachmentsUpload   SyncPhase = "attachments_upload"
)

// Progress is one progress update delivered to subscribers. Current is
// monotonic within a sync run; Total may be zero when the size of a phase is
// unknown up front.
type Progress struct {
	Current int
	Total   int
	Phase   SyncPhase
	Details string
}

// PendingCounts summarizes unsynced local state, shown to the user before a
// destructive server switch.
type PendingCounts struct {
	Observations int
	Attachments  int
}
