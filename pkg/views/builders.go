// Package views maps typed GitHub webhook payloads to the flat view models
// consumed by the notification templates.
package views

import (
	"fmt"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/tidwall/gjson"

	"github.com/ghnotify/github-render-webhook/internal/models"
)

const actionClosed = "closed"

// Envelope holds the repository fields every supported event carries
type Envelope struct {
	FullName    string
	OwnerAvatar string
	Description string
}

// ReadEnvelope reads the repository descriptor from a raw payload without a typed decode
func ReadEnvelope(body []byte) Envelope {
	repo := gjson.GetBytes(body, "repository")
	return Envelope{
		FullName:    repo.Get("full_name").String(),
		OwnerAvatar: repo.Get("owner.avatar_url").String(),
		Description: repo.Get("description").String(),
	}
}

// FormatTime formats t as "<year>年<month>月<day>日 <hour>:<minute>" without zero padding
func FormatTime(t time.Time) string {
	return fmt.Sprintf("%d年%d月%d日 %d:%d", t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute())
}

// BuildContext builds the fields shared by every view
func BuildContext(env Envelope, now time.Time) models.RepoContext {
	return models.RepoContext{
		RepoAvatar:  env.OwnerAvatar,
		RepoName:    env.FullName,
		Description: env.Description,
		Time:        FormatTime(now.Local()),
	}
}

// BuildIssue builds the issues view
func BuildIssue(ctx models.RepoContext, ev *github.IssuesEvent) models.IssueView {
	issue := ev.GetIssue()
	user := issue.GetUser()

	view := models.IssueView{
		RepoContext: ctx,
		Action:      ev.GetAction(),
		IssueURL:    issue.GetHTMLURL(),
		User:        user.GetLogin(),
		UserAvatar:  user.GetAvatarURL(),
		Title:       issue.GetTitle(),
		Body:        issue.GetBody(),
	}

	switch view.Action {
	case actionClosed:
		view.StateReason = issue.GetStateReason()
	}

	return view
}

// BuildPullRequest builds the pull request view
func BuildPullRequest(ctx models.RepoContext, ev *github.PullRequestEvent) models.PullRequestView {
	pr := ev.GetPullRequest()
	user := pr.GetUser()

	view := models.PullRequestView{
		RepoContext: ctx,
		Action:      ev.GetAction(),
		PRURL:       pr.GetURL(),
		User:        user.GetLogin(),
		UserAvatar:  user.GetAvatarURL(),
		Title:       pr.GetTitle(),
		Body:        pr.GetBody(),
		CreatedAt:   formatTimestamp(pr.CreatedAt),
		UpdatedAt:   formatTimestamp(pr.UpdatedAt),
		ClosedAt:    formatTimestamp(pr.ClosedAt),
	}

	switch view.Action {
	case actionClosed:
		if pr.GetMerged() {
			view.Merged = fmt.Sprintf("merged by %s at %s",
				pr.GetMergedBy().GetLogin(), formatTimestamp(pr.MergedAt))
		}
	}

	return view
}

// BuildPush builds the push view, keeping commit order
func BuildPush(ctx models.RepoContext, ev *github.PushEvent) models.PushView {
	commits := make([]models.CommitView, 0, len(ev.Commits))
	for _, commit := range ev.Commits {
		commits = append(commits, models.CommitView{
			Message: commit.GetMessage(),
			Author:  commit.GetAuthor().GetName(),
		})
	}

	return models.PushView{
		RepoContext: ctx,
		PusherName:  ev.GetPusher().GetName(),
		Commits:     commits,
	}
}

// Build builds the view for a typed event returned by github.ParseWebHook.
// ok is false for event types without a template.
func Build(ctx models.RepoContext, event interface{}) (view models.View, ok bool) {
	switch ev := event.(type) {
	case *github.IssuesEvent:
		return BuildIssue(ctx, ev), true
	case *github.PullRequestEvent:
		return BuildPullRequest(ctx, ev), true
	case *github.PushEvent:
		return BuildPush(ctx, ev), true
	default:
		return nil, false
	}
}

// formatTimestamp keeps the offset the payload was sent with
func formatTimestamp(ts *github.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return ""
	}
	return ts.Format(time.RFC3339)
}
