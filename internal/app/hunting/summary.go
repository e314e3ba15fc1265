package hunting

// Summary aggregates what one invocation did. Every invocation produces a
// summary, even on partial failure.
type Summary struct {
	RunID           string `json:"run_id"`
	Status          string `json:"status"`
	FilesScanned    int    `json:"files_scanned"`
	CandidatesFound int    `json:"candidates_found"`
	ConfirmedLeaks  int    `json:"confirmed_leaks"`
	Errors          int    `json:"errors"`
	DurationMs      int64  `json:"duration_ms"`
}
