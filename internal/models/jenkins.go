package models

// Agent is a node of the mock CI server.
type Agent struct {
	Name               string   `json:"name"`
	Executors          int      `json:"executors"`
	Connected          bool     `json:"connected"`
	TemporarilyOffline bool     `json:"temporarily_offline"`
	OfflineMessage     string   `json:"offline_message,omitempty"`
	Log                []string `json:"log"`
	Builds             []Build  `json:"builds"`
}

// Offline is true when the agent cannot take builds.
func (a Agent) Offline() bool {
	return !a.Connected || a.TemporarilyOffline
}

type Build struct {
	Job    string `json:"job"`
	Number int    `json:"number"`
}

// View groups jobs on the dashboard.
type View struct {
	Name         string `json:"name"`
	Mode         string `json:"mode"`
	UseRegex     bool   `json:"use_regex"`
	IncludeRegex string `json:"include_regex,omitempty"`
}

// CreateAgentRequest is the request body for seeding an agent
type CreateAgentRequest struct {
	Name      string `json:"name" validate:"required,excludesall=/?#"`
	Executors int    `json:"executors" validate:"min=0,max=64"`
	Connected bool   `json:"connected"`
	Log       string `json:"log"`
}

// RecordBuildRequest is the request body for adding a build to an agent's history
type RecordBuildRequest struct {
	Job string `json:"job" validate:"required"`
}

// AppendLogRequest is the request body for adding a line to an agent's log
type AppendLogRequest struct {
	Line string `json:"line" validate:"required"`
}

// CreateJobRequest is the request body for seeding a job
type CreateJobRequest struct {
	Name string `json:"name" validate:"required,excludesall=/?#"`
}
