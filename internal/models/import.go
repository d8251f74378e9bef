package models

// ImportReport is the outcome of one membership import invocation. Errors are
// ordered, human-readable strings; no machine-readable codes are defined for
// them.
type ImportReport struct {
	Success      bool     `json:"success"`
	Errors       []string `json:"errors"`
	RecordsAdded int      `json:"records_added"`
}
