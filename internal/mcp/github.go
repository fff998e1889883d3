package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/toolgate/internal/config"
	"github.com/ppiankov/toolgate/internal/github"
	"github.com/ppiankov/toolgate/internal/guardrail"
)

const defaultCommitLimit = 5

// ListReposInput defines parameters for the github_list_repos tool.
type ListReposInput struct {
	Owner string `json:"owner" jsonschema:"GitHub user or organization"`
}

// ListReposOutput lists repositories the allowlist permits.
type ListReposOutput struct {
	OK        bool          `json:"ok"`
	Owner     string        `json:"owner"`
	RepoCount int           `json:"repo_count"`
	Repos     []github.Repo `json:"repos"`
}

// CommitInput defines parameters for the github_latest_commit tool.
type CommitInput struct {
	Owner  string `json:"owner" jsonschema:"repository owner"`
	Repo   string `json:"repo" jsonschema:"repository name"`
	Branch string `json:"branch,omitempty" jsonschema:"branch name, defaults to the repository's default branch"`
}

// CommitOutput carries the head commit of a branch.
type CommitOutput struct {
	OK     bool           `json:"ok"`
	Owner  string         `json:"owner"`
	Repo   string         `json:"repo"`
	Branch string         `json:"branch"`
	Commit *github.Commit `json:"commit"`
}

// CommitsInput defines parameters for the github_latest_commits tool.
type CommitsInput struct {
	Owner  string `json:"owner" jsonschema:"repository owner"`
	Repo   string `json:"repo" jsonschema:"repository name"`
	Limit  *int   `json:"limit,omitempty" jsonschema:"number of commits, default 5"`
	Branch string `json:"branch,omitempty" jsonschema:"branch name, defaults to the repository's default branch"`
}

// CommitsOutput carries the newest commits of a branch.
type CommitsOutput struct {
	OK      bool            `json:"ok"`
	Owner   string          `json:"owner"`
	Repo    string          `json:"repo"`
	Limit   int             `json:"limit"`
	Commits []github.Commit `json:"commits"`
}

// ScanInput defines parameters for the github_latest_commit_across_repos tool.
type ScanInput struct {
	Owner    string `json:"owner" jsonschema:"GitHub user or organization"`
	MaxRepos *int   `json:"max_repos,omitempty" jsonschema:"how many recently pushed repositories to inspect"`
}

// ScanOutput is the newest commit across an owner's repositories.
type ScanOutput struct {
	OK           bool           `json:"ok"`
	Owner        string         `json:"owner"`
	ScannedRepos int            `json:"scanned_repos"`
	SkippedRepos int            `json:"skipped_repos"`
	Latest       *github.Commit `json:"latest"`
}

type githubTools struct {
	backend   github.Backend
	cfg       *config.GitHub
	allowlist guardrail.Allowlist
}

// NewGitHub returns a server exposing the read-only GitHub tools.
func NewGitHub(cfg *config.GitHub, backend github.Backend, opts Options) *Server {
	s := newServer(config.GitHubService, opts)
	s.github = &githubTools{backend: backend, cfg: cfg, allowlist: cfg.Allowlist()}

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "github_list_repos",
		Description: "List repos for a GitHub user or org (auto-detected). Returns lightweight repo metadata.",
	}, s.handleListRepos)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "github_latest_commit",
		Description: "Get latest commit for a repo (default branch if branch not provided).",
	}, s.handleLatestCommit)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "github_latest_commits",
		Description: "Get latest commits for a repo (default branch if branch not provided).",
	}, s.handleLatestCommits)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "github_latest_commit_across_repos",
		Description: "Find the most recent commit across an owner's recently pushed repos.",
	}, s.handleLatestAcross)
	return s
}

func (s *Server) handleListRepos(ctx context.Context, req *mcpsdk.CallToolRequest, input ListReposInput) (*mcpsdk.CallToolResult, ListReposOutput, error) {
	c := s.begin("github_list_repos")
	out, err := s.listRepos(ctx, c, input)
	if err := s.finish(ctx, c, err); err != nil {
		return nil, ListReposOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) listRepos(ctx context.Context, c *call, input ListReposInput) (ListReposOutput, error) {
	owner, err := guardrail.Required("owner", input.Owner)
	if err != nil {
		return ListReposOutput{}, err
	}
	c.target = owner

	repos, err := s.allowedRepos(ctx, owner)
	if err != nil {
		return ListReposOutput{}, err
	}
	return ListReposOutput{OK: true, Owner: owner, RepoCount: len(repos), Repos: repos}, nil
}

// allowedRepos lists owner's repositories and drops those outside the
// allowlist.
func (s *Server) allowedRepos(ctx context.Context, owner string) ([]github.Repo, error) {
	repos, err := s.github.backend.ListRepos(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list repos for %s: %w", owner, err)
	}
	kept := make([]github.Repo, 0, len(repos))
	for _, r := range repos {
		o, name, ok := r.Owner()
		if !ok {
			o, name = owner, r.Name
		}
		if s.github.allowlist.IsAllowed(o, name) {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

func (s *Server) handleLatestCommit(ctx context.Context, req *mcpsdk.CallToolRequest, input CommitInput) (*mcpsdk.CallToolResult, CommitOutput, error) {
	c := s.begin("github_latest_commit")
	out, err := s.latestCommit(ctx, c, input)
	if err := s.finish(ctx, c, err); err != nil {
		return nil, CommitOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) latestCommit(ctx context.Context, c *call, input CommitInput) (CommitOutput, error) {
	owner, repo, err := s.repoTarget(c, input.Owner, input.Repo)
	if err != nil {
		return CommitOutput{}, err
	}

	commit, err := s.github.backend.LatestCommit(ctx, owner, repo, input.Branch)
	if err != nil {
		return CommitOutput{}, fmt.Errorf("latest commit for %s/%s: %w", owner, repo, err)
	}
	return CommitOutput{OK: true, Owner: owner, Repo: repo, Branch: commit.Branch, Commit: commit}, nil
}

func (s *Server) handleLatestCommits(ctx context.Context, req *mcpsdk.CallToolRequest, input CommitsInput) (*mcpsdk.CallToolResult, CommitsOutput, error) {
	c := s.begin("github_latest_commits")
	out, err := s.latestCommits(ctx, c, input)
	if err := s.finish(ctx, c, err); err != nil {
		return nil, CommitsOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) latestCommits(ctx context.Context, c *call, input CommitsInput) (CommitsOutput, error) {
	owner, repo, err := s.repoTarget(c, input.Owner, input.Repo)
	if err != nil {
		return CommitsOutput{}, err
	}
	limit := guardrail.Clamp(input.Limit, defaultCommitLimit, 1, s.github.cfg.MaxCommitsReturn)

	commits, err := s.github.backend.LatestCommits(ctx, owner, repo, input.Branch, limit)
	if err != nil {
		return CommitsOutput{}, fmt.Errorf("latest commits for %s/%s: %w", owner, repo, err)
	}
	if len(commits) > limit {
		commits = commits[:limit]
	}
	if commits == nil {
		commits = []github.Commit{}
	}
	return CommitsOutput{OK: true, Owner: owner, Repo: repo, Limit: limit, Commits: commits}, nil
}

func (s *Server) handleLatestAcross(ctx context.Context, req *mcpsdk.CallToolRequest, input ScanInput) (*mcpsdk.CallToolResult, ScanOutput, error) {
	c := s.begin("github_latest_commit_across_repos")
	out, err := s.latestAcross(ctx, c, input)
	if err := s.finish(ctx, c, err); err != nil {
		return nil, ScanOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) latestAcross(ctx context.Context, c *call, input ScanInput) (ScanOutput, error) {
	owner, err := guardrail.Required("owner", input.Owner)
	if err != nil {
		return ScanOutput{}, err
	}
	c.target = owner
	scanCap := s.github.cfg.MaxReposScan
	n := guardrail.Clamp(input.MaxRepos, scanCap, 1, scanCap)

	repos, err := s.allowedRepos(ctx, owner)
	if err != nil {
		return ScanOutput{}, err
	}
	if len(repos) > n {
		repos = repos[:n]
	}

	res, err := github.ScanLatest(ctx, s.github.backend, repos)
	if err != nil {
		return ScanOutput{}, fmt.Errorf("scan %s: %w", owner, err)
	}
	return ScanOutput{
		OK:           true,
		Owner:        owner,
		ScannedRepos: res.Scanned,
		SkippedRepos: res.Skipped,
		Latest:       res.Latest,
	}, nil
}

// repoTarget validates an owner/repo pair and checks it against the
// allowlist.
func (s *Server) repoTarget(c *call, owner, repo string) (string, string, error) {
	owner, err := guardrail.Required("owner", owner)
	if err != nil {
		return "", "", err
	}
	repo, err = guardrail.Required("repo", repo)
	if err != nil {
		return "", "", err
	}
	c.target = owner + "/" + repo
	if err := s.github.allowlist.Require(owner, repo); err != nil {
		return "", "", err
	}
	return owner, repo, nil
}
