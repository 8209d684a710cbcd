package retrieval

// Case is the stored record for one support case. The base fields come from
// the Support API at retrieval time; the pointer fields are filled in by the
// enrichment steps and stay null until then. JSON names match the stored
// document format shared with the reporting tooling.
type Case struct {
	CaseID        string `json:"caseId"`
	DisplayID     string `json:"displayId"`
	Subject       string `json:"subject"`
	ServiceCode   string `json:"serviceCode"`
	CategoryCode  string `json:"categoryCode"`
	SeverityCode  string `json:"severityCode"`
	SubmittedBy   string `json:"submittedBy"`
	TimeCreated   string `json:"timeCreated"`
	Status        string `json:"status"`
	RetrievalDate string `json:"Case_Retrieval_Date"`

	Summary           *string `json:"Case_Summary"`
	RCACategory       *string `json:"RCA_Category"`
	RCAReason         *string `json:"RCA_Reason"`
	RCADate           *string `json:"RCA_Retrieval_Date"`
	LifecycleCategory *string `json:"Lifecycle_Category"`
	LifecycleReason   *string `json:"Lifecycle_Reason"`
	LifecycleDate     *string `json:"Lifecycle_Retrieval_Date"`
}

// Message is sent to the annotation queue for every newly stored case.
type Message struct {
	AccountID string `json:"accountId"`
	DisplayID string `json:"displayId"`
	CaseID    string `json:"caseId"`
}
