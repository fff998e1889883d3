// Package github reads repository and commit metadata from the GitHub
// REST API. It never writes.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	gh "github.com/google/go-github/v75/github"
)

// MaxMessageRunes bounds the commit subject returned to callers.
const MaxMessageRunes = 240

// Repo is lightweight repository metadata.
type Repo struct {
	Name          string     `json:"name"`
	FullName      string     `json:"full_name"`
	Private       bool       `json:"private"`
	DefaultBranch string     `json:"default_branch"`
	PushedAt      *time.Time `json:"pushed_at"`
	UpdatedAt     *time.Time `json:"updated_at"`
	HTMLURL       string     `json:"html_url"`
}

// Owner splits FullName into owner and repository name.
func (r Repo) Owner() (owner, name string, ok bool) {
	owner, name, ok = strings.Cut(r.FullName, "/")
	return owner, name, ok && owner != "" && name != ""
}

// Commit is a summarized commit.
type Commit struct {
	Repo      string     `json:"repo,omitempty"`
	Branch    string     `json:"branch,omitempty"`
	SHA       string     `json:"sha"`
	Message   string     `json:"message"`
	Date      *time.Time `json:"date"`
	Author    string     `json:"author,omitempty"`
	Committer string     `json:"committer,omitempty"`
	HTMLURL   string     `json:"html_url"`
}

// Backend is the read surface the tool handlers depend on.
type Backend interface {
	ListRepos(ctx context.Context, owner string) ([]Repo, error)
	LatestCommit(ctx context.Context, owner, repo, branch string) (*Commit, error)
	LatestCommits(ctx context.Context, owner, repo, branch string, limit int) ([]Commit, error)
}

// Options configures Client.
type Options struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration
}

// Client implements Backend with go-github.
type Client struct {
	gh *gh.Client
}

// NewClient builds a client. An empty token makes unauthenticated calls,
// which GitHub rate-limits heavily.
func NewClient(opts Options) (*Client, error) {
	c := gh.NewClient(&http.Client{Timeout: opts.Timeout})
	if opts.Token != "" {
		c = c.WithAuthToken(opts.Token)
	}
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse GitHub base URL: %w", err)
		}
		c.BaseURL = u
	}
	if opts.UserAgent != "" {
		c.UserAgent = opts.UserAgent
	}
	return &Client{gh: c}, nil
}

// ListRepos lists up to 100 repositories for a user or organization,
// most recently pushed first. The owner type is detected automatically.
func (c *Client) ListRepos(ctx context.Context, owner string) ([]Repo, error) {
	user, _, err := c.gh.Users.Get(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("resolve owner %s: %w", owner, err)
	}
	login := user.GetLogin()
	if login == "" {
		login = owner
	}

	page := gh.ListOptions{PerPage: 100, Page: 1}
	var repos []*gh.Repository
	if user.GetType() == "Organization" {
		repos, _, err = c.gh.Repositories.ListByOrg(ctx, login, &gh.RepositoryListByOrgOptions{
			Sort: "pushed", Direction: "desc", ListOptions: page,
		})
	} else {
		repos, _, err = c.gh.Repositories.ListByUser(ctx, login, &gh.RepositoryListByUserOptions{
			Sort: "pushed", Direction: "desc", ListOptions: page,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("list repos for %s: %w", login, err)
	}

	out := make([]Repo, 0, len(repos))
	for _, r := range repos {
		out = append(out, Repo{
			Name:          r.GetName(),
			FullName:      r.GetFullName(),
			Private:       r.GetPrivate(),
			DefaultBranch: r.GetDefaultBranch(),
			PushedAt:      timePtr(r.GetPushedAt()),
			UpdatedAt:     timePtr(r.GetUpdatedAt()),
			HTMLURL:       r.GetHTMLURL(),
		})
	}
	return out, nil
}

func (c *Client) defaultBranch(ctx context.Context, owner, repo string) (string, error) {
	r, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", fmt.Errorf("get %s/%s: %w", owner, repo, err)
	}
	if b := r.GetDefaultBranch(); b != "" {
		return b, nil
	}
	return "main", nil
}

// LatestCommit returns the head commit of branch, or of the default
// branch when branch is empty.
func (c *Client) LatestCommit(ctx context.Context, owner, repo, branch string) (*Commit, error) {
	if branch == "" {
		var err error
		if branch, err = c.defaultBranch(ctx, owner, repo); err != nil {
			return nil, err
		}
	}
	rc, _, err := c.gh.Repositories.GetCommit(ctx, owner, repo, branch, nil)
	if err != nil {
		return nil, fmt.Errorf("get commit %s/%s@%s: %w", owner, repo, branch, err)
	}
	commit := summarize(rc)
	commit.Branch = branch
	return &commit, nil
}

// LatestCommits returns up to limit commits from branch, newest first.
func (c *Client) LatestCommits(ctx context.Context, owner, repo, branch string, limit int) ([]Commit, error) {
	if branch == "" {
		var err error
		if branch, err = c.defaultBranch(ctx, owner, repo); err != nil {
			return nil, err
		}
	}
	rcs, _, err := c.gh.Repositories.ListCommits(ctx, owner, repo, &gh.CommitsListOptions{
		SHA:         branch,
		ListOptions: gh.ListOptions{PerPage: min(limit, 100), Page: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("list commits %s/%s@%s: %w", owner, repo, branch, err)
	}
	if len(rcs) > limit {
		rcs = rcs[:limit]
	}
	out := make([]Commit, 0, len(rcs))
	for _, rc := range rcs {
		out = append(out, summarize(rc))
	}
	return out, nil
}

func summarize(rc *gh.RepositoryCommit) Commit {
	c := rc.GetCommit()
	date := timePtr(c.GetCommitter().GetDate())
	if date == nil {
		date = timePtr(c.GetAuthor().GetDate())
	}
	return Commit{
		SHA:       rc.GetSHA(),
		Message:   Subject(c.GetMessage()),
		Date:      date,
		Author:    rc.GetAuthor().GetLogin(),
		Committer: rc.GetCommitter().GetLogin(),
		HTMLURL:   rc.GetHTMLURL(),
	}
}

// Subject returns the first line of a commit message, cut to MaxMessageRunes.
func Subject(msg string) string {
	line, _, _ := strings.Cut(msg, "\n")
	line = strings.TrimRight(line, "\r")
	if utf8.RuneCountInString(line) <= MaxMessageRunes {
		return line
	}
	return string([]rune(line)[:MaxMessageRunes])
}

func timePtr(ts gh.Timestamp) *time.Time {
	if ts.IsZero() {
		return nil
	}
	t := ts.UTC()
	return &t
}

// Inaccessible reports whether err is a GitHub API error response, such
// as a private, empty or deleted repository.
func Inaccessible(err error) bool {
	var er *gh.ErrorResponse
	return errors.As(err, &er)
}
