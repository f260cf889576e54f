// Package deploy publishes the generated output directory as a git
// commit. The output directory itself is the repository; every deploy
// stages the current artifacts, commits them on the configured branch
// and, when a remote is set, pushes.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"git.arenberg.net/steen/sitebuilder/internal/config"
	"git.arenberg.net/steen/sitebuilder/internal/logfields"
	"git.arenberg.net/steen/sitebuilder/internal/retry"
)

// TokenEnv names the environment variable holding a token for pushes
// over HTTP.
const TokenEnv = "SITEBUILDER_DEPLOY_TOKEN"

// ErrNoChanges means the output directory matches the last published
// commit; there is nothing to deploy.
var ErrNoChanges = errors.New("deploy: no changes to publish")

const remoteName = "origin"

// Publisher deploys one output directory.
type Publisher struct {
	outputDir string
	cfg       config.DeployConfig
	logger    *slog.Logger
	retry     retry.Policy
}

// NewPublisher returns a Publisher committing outputDir per cfg.
func NewPublisher(outputDir string, cfg config.DeployConfig) *Publisher {
	return &Publisher{
		outputDir: outputDir,
		cfg:       cfg,
		logger:    slog.Default(),
		retry:     retry.DefaultPolicy(),
	}
}

// WithLogger sets a custom logger.
func (p *Publisher) WithLogger(logger *slog.Logger) *Publisher {
	p.logger = logger
	return p
}

// WithRetry replaces the backoff policy applied to pushes.
func (p *Publisher) WithRetry(policy retry.Policy) *Publisher {
	p.retry = policy
	return p
}

// Publish stages everything under the output directory, commits it
// with message and pushes when a remote is configured. It returns the
// commit hash, or ErrNoChanges when the tree is unchanged.
func (p *Publisher) Publish(ctx context.Context, message string) (string, error) {
	repo, err := p.openOrInit()
	if err != nil {
		return "", err
	}
	if err := p.ensureBranch(repo); err != nil {
		return "", err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", fmt.Errorf("stage output: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("read status: %w", err)
	}
	if status.IsClean() {
		return "", ErrNoChanges
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  p.cfg.AuthorName,
			Email: p.cfg.AuthorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("commit output: %w", err)
	}
	p.logger.Info("committed output",
		slog.String("commit", hash.String()[:8]),
		slog.String("branch", p.cfg.Branch))

	if p.cfg.Remote != "" {
		if err := p.push(ctx, repo); err != nil {
			return hash.String(), err
		}
	}
	return hash.String(), nil
}

// openOrInit opens the repository living in the output directory,
// initializing one on first deploy.
func (p *Publisher) openOrInit() (*git.Repository, error) {
	repo, err := git.PlainOpen(p.outputDir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repository %s: %w", p.outputDir, err)
	}

	repo, err = git.PlainInitWithOptions(p.outputDir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{
			DefaultBranch: plumbing.NewBranchReferenceName(p.cfg.Branch),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init repository %s: %w", p.outputDir, err)
	}
	p.logger.Info("initialized deploy repository", logfields.Path(p.outputDir))
	return repo, nil
}

// ensureBranch points HEAD at the configured branch. A repository
// carried over from an earlier configuration may sit on another one.
func (p *Publisher) ensureBranch(repo *git.Repository) error {
	branchRef := plumbing.NewBranchReferenceName(p.cfg.Branch)

	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			// Unborn repository: the first commit lands on the branch
			// HEAD points to.
			return repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, branchRef))
		}
		return fmt.Errorf("read HEAD: %w", err)
	}
	if head.Name() == branchRef {
		return nil
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	// The worktree holds freshly generated output, so a forced switch
	// loses nothing.
	err = wt.Checkout(&git.CheckoutOptions{Branch: branchRef, Force: true})
	if err != nil {
		err = wt.Checkout(&git.CheckoutOptions{Branch: branchRef, Create: true, Force: true})
	}
	if err != nil {
		return fmt.Errorf("switch to branch %s: %w", p.cfg.Branch, err)
	}
	return nil
}

// push sends the configured branch to origin, retrying transient
// failures per the publisher's policy.
func (p *Publisher) push(ctx context.Context, repo *git.Repository) error {
	if err := p.ensureRemote(repo); err != nil {
		return err
	}

	refSpec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", p.cfg.Branch, p.cfg.Branch))
	opts := &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitconfig.RefSpec{refSpec},
		Auth:       p.auth(),
	}

	var upToDate bool
	attempt := 0
	err := p.retry.Do(ctx, func() error {
		if attempt > 0 {
			p.logger.Warn("retrying push",
				slog.String("remote", p.cfg.Remote),
				slog.Int("attempt", attempt))
		}
		attempt++

		pushErr := repo.PushContext(ctx, opts)
		switch {
		case pushErr == nil:
			return nil
		case errors.Is(pushErr, git.NoErrAlreadyUpToDate):
			upToDate = true
			return nil
		case permanentPushError(pushErr):
			return retry.Permanent(pushErr)
		}
		return pushErr
	})
	if err != nil {
		return fmt.Errorf("push to %s: %w", p.cfg.Remote, err)
	}

	if upToDate {
		p.logger.Info("remote already up to date", slog.String("remote", p.cfg.Remote))
		return nil
	}
	p.logger.Info("pushed output", slog.String("remote", p.cfg.Remote), slog.String("branch", p.cfg.Branch))
	return nil
}

// permanentPushError reports failures another attempt cannot fix, so
// the retry loop gives up on them at once.
func permanentPushError(err error) bool {
	if errors.Is(err, transport.ErrAuthenticationRequired) ||
		errors.Is(err, transport.ErrAuthorizationFailed) ||
		errors.Is(err, transport.ErrRepositoryNotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "denied") || strings.Contains(msg, "unsupported protocol")
}

// ensureRemote makes origin point at the configured URL, replacing a
// stale one.
func (p *Publisher) ensureRemote(repo *git.Repository) error {
	remote, err := repo.Remote(remoteName)
	if err == nil {
		urls := remote.Config().URLs
		if len(urls) > 0 && urls[0] == p.cfg.Remote {
			return nil
		}
		if err := repo.DeleteRemote(remoteName); err != nil {
			return fmt.Errorf("replace remote: %w", err)
		}
	} else if !errors.Is(err, git.ErrRemoteNotFound) {
		return fmt.Errorf("read remote: %w", err)
	}

	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: remoteName,
		URLs: []string{p.cfg.Remote},
	})
	if err != nil {
		return fmt.Errorf("create remote: %w", err)
	}
	return nil
}

// auth returns token credentials for HTTP remotes when the token
// environment variable is set. SSH remotes use the ambient agent.
func (p *Publisher) auth() transport.AuthMethod {
	token := os.Getenv(TokenEnv)
	if token == "" {
		return nil
	}
	if !strings.HasPrefix(p.cfg.Remote, "http://") && !strings.HasPrefix(p.cfg.Remote, "https://") {
		return nil
	}
	return &githttp.BasicAuth{Username: "token", Password: token}
}
