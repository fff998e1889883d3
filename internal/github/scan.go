package github

import (
	"context"
)

// ScanResult is the newest commit found across a set of repositories.
type ScanResult struct {
	Scanned int     `json:"scanned_repos"`
	Skipped int     `json:"skipped_repos"`
	Latest  *Commit `json:"latest"`
}

// ScanLatest fetches the head commit of each repo's default branch and
// keeps the most recent one. Repositories the API refuses are skipped;
// any other error aborts the scan.
func ScanLatest(ctx context.Context, b Backend, repos []Repo) (*ScanResult, error) {
	res := &ScanResult{Scanned: len(repos)}
	for _, r := range repos {
		owner, name, ok := r.Owner()
		if !ok {
			res.Skipped++
			continue
		}
		c, err := b.LatestCommit(ctx, owner, name, r.DefaultBranch)
		if err != nil {
			if Inaccessible(err) {
				res.Skipped++
				continue
			}
			return nil, err
		}
		if c.Date == nil {
			if res.Latest == nil {
				c.Repo = r.FullName
				res.Latest = c
			}
			continue
		}
		if res.Latest == nil || res.Latest.Date == nil || c.Date.After(*res.Latest.Date) {
			c.Repo = r.FullName
			res.Latest = c
		}
	}
	return res, nil
}
