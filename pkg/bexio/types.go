package bexio

// Contact is a bexio contact as consumed by the client. Only the fields the
// application uses are decoded; the boundary validation rejects payloads
// missing the required ones.
type Contact struct {
	ID        int    `json:"id"`
	Name1     string `json:"name_1"`
	Name2     string `json:"name_2,omitempty"`
	Mail      string `json:"mail,omitempty"`
	ContactTypeID int `json:"contact_type_id,omitempty"`
}

// Project is a bexio project.
type Project struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ContactID int    `json:"contact_id,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// TimeEntry is a bexio monitoring (timesheet) entry.
type TimeEntry struct {
	ID         int    `json:"id,omitempty"`
	UserID     int    `json:"user_id"`
	ClientServiceID int `json:"client_service_id"`
	ContactID  int    `json:"contact_id,omitempty"`
	ProjectID  int    `json:"pr_project_id,omitempty"`
	Text       string `json:"text,omitempty"`
	AllowableBill bool `json:"allowable_bill"`
	// Tracking carries the date and duration in the provider's format.
	Tracking TimeTracking `json:"tracking"`
}

// TimeTracking is the duration portion of a time entry.
type TimeTracking struct {
	Type     string `json:"type"`
	Date     string `json:"date"`
	Duration string `json:"duration"`
}

// BatchResult reports the per-entry outcome of a bulk creation. Failures
// are collected, never fail-fast.
type BatchResult struct {
	Succeeded []TimeEntry
	Failed    []BatchFailure
}

// BatchFailure pairs a rejected entry with the error that exhausted its
// retry budget.
type BatchFailure struct {
	Entry TimeEntry
	Err   error
}
