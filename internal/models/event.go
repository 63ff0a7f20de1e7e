package models

// EventKind is a webhook event type this service renders
type EventKind string

const (
	EventIssues      EventKind = "issues"
	EventPullRequest EventKind = "pull_request"
	EventPush        EventKind = "push"
)

// KnownEventKinds lists every event type with a view model
var KnownEventKinds = []EventKind{EventIssues, EventPullRequest, EventPush}

// IsKnown reports whether the event type has a view model
func (k EventKind) IsKnown() bool {
	for _, known := range KnownEventKinds {
		if k == known {
			return true
		}
	}
	return false
}

// View is a view model prepared for exactly one template
type View interface {
	// Template returns the template path relative to the render namespace
	Template() string
}

// RepoContext holds the fields shared by every view
type RepoContext struct {
	RepoAvatar  string `json:"repoAvatar"`
	RepoName    string `json:"repoName"`
	Description string `json:"description"`
	Time        string `json:"time"`
}

// IssueView is the data for the issues template
type IssueView struct {
	RepoContext
	Action     string `json:"action"`
	IssueURL   string `json:"issueUrl"`
	User       string `json:"user"`
	UserAvatar string `json:"userAvatar"`
	Title      string `json:"title"`
	Body       string `json:"body"`

	// Only set when the issue was closed
	StateReason string `json:"stateReason,omitempty"`
}

// Template implements View
func (IssueView) Template() string { return "github/issues/index" }

// PullRequestView is the data for the pull request template
type PullRequestView struct {
	RepoContext
	Action     string `json:"action"`
	PRURL      string `json:"prUrl"`
	User       string `json:"user"`
	UserAvatar string `json:"userAvatar"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
	ClosedAt   string `json:"closed_at"`

	// "merged by <login> at <time>", only for closed and merged pull requests
	Merged string `json:"merged,omitempty"`
}

// Template implements View
func (PullRequestView) Template() string { return "github/pr/index" }

// CommitView is one pushed commit
type CommitView struct {
	Message string `json:"message"`
	Author  string `json:"author"`
}

// PushView is the data for the push template
type PushView struct {
	RepoContext
	PusherName string       `json:"pusherName"`
	Commits    []CommitView `json:"commits"`
}

// Template implements View
func (PushView) Template() string { return "github/push/index" }
