// Package history records every saved journey document as a commit in a local git repository.
package history

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/goccy/go-json"

	"journey/api/internal/docstore"
	"journey/api/internal/journey"
)

const contentFile = "content.json"

var (
	ErrDisabled      = errors.New("history is disabled")
	ErrUnknownCommit = errors.New("unknown history entry")
)

type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Change is one field that differs between two recorded documents.
type Change struct {
	Day    int    `json:"day,omitempty"`
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

type Service struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// New returns a recorder for the repository at dir. An empty dir disables recording.
func New(dir string) *Service {
	return &Service{dir: dir, now: time.Now}
}

func (s *Service) Enabled() bool {
	return s != nil && s.dir != ""
}

// Record commits doc as content.json. Saves of identical content still produce a commit.
func (s *Service) Record(doc docstore.Document, author, message string) (CommitInfo, error) {
	if !s.Enabled() {
		return CommitInfo{}, ErrDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.openOrInit()
	if err != nil {
		return CommitInfo{}, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return CommitInfo{}, fmt.Errorf("marshal content: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, contentFile), append(payload, '\n'), 0o644); err != nil {
		return CommitInfo{}, fmt.Errorf("write content.json: %w", err)
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return CommitInfo{}, fmt.Errorf("git add content: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: authorEmail(author),
			When:  s.now(),
		},
	})
	if err != nil {
		return CommitInfo{}, fmt.Errorf("commit content: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// Log lists recorded saves, newest first.
func (s *Service) Log(limit int) ([]CommitInfo, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []CommitInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []CommitInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0, max(limit, 0))
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Show returns the document recorded at hash and what changed relative to its parent.
func (s *Service) Show(hash string) (docstore.Document, []Change, error) {
	if !s.Enabled() {
		return docstore.Document{}, nil, ErrDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return docstore.Document{}, nil, ErrUnknownCommit
	}
	if err != nil {
		return docstore.Document{}, nil, fmt.Errorf("open repo: %w", err)
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return docstore.Document{}, nil, fmt.Errorf("%w %s: %v", ErrUnknownCommit, hash, err)
	}
	commitObj, err := repo.CommitObject(*resolved)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return docstore.Document{}, nil, fmt.Errorf("%w %s", ErrUnknownCommit, hash)
	}
	if err != nil {
		return docstore.Document{}, nil, fmt.Errorf("read commit %s: %w", hash, err)
	}
	doc, err := readContentFromCommit(commitObj)
	if err != nil {
		return docstore.Document{}, nil, err
	}

	var before docstore.Document
	if commitObj.NumParents() > 0 {
		parent, err := commitObj.Parent(0)
		if err != nil {
			return docstore.Document{}, nil, fmt.Errorf("read parent of %s: %w", hash, err)
		}
		if before, err = readContentFromCommit(parent); err != nil {
			return docstore.Document{}, nil, err
		}
	}
	return doc, Diff(before, doc), nil
}

func (s *Service) openOrInit() (*git.Repository, error) {
	repo, err := git.PlainOpen(s.dir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(s.dir, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

func readContentFromCommit(commitObj *object.Commit) (docstore.Document, error) {
	file, err := commitObj.File(contentFile)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("load content.json from commit: %w", err)
	}
	body, err := file.Contents()
	if err != nil {
		return docstore.Document{}, fmt.Errorf("read content bytes: %w", err)
	}
	return docstore.Decode([]byte(body))
}

// Diff lists the unlock frontier change and every greeting field that differs.
func Diff(from, to docstore.Document) []Change {
	changes := make([]Change, 0)
	if from.UnlockedDays != to.UnlockedDays {
		changes = append(changes, Change{
			Field:  "unlockedDays",
			Before: strconv.Itoa(from.UnlockedDays),
			After:  strconv.Itoa(to.UnlockedDays),
		})
	}

	before := map[int]journey.Greeting{}
	for _, g := range from.Greetings {
		before[g.Day] = g
	}
	for _, g := range to.Greetings {
		prev := before[g.Day]
		pairs := []struct{ field, before, after string }{
			{"emoji", prev.Emoji, g.Emoji},
			{"title", prev.Title, g.Title},
			{"greeting", prev.GreetingLine, g.GreetingLine},
			{"message", prev.BodyMessage, g.BodyMessage},
		}
		for _, p := range pairs {
			if p.before != p.after {
				changes = append(changes, Change{Day: g.Day, Field: p.field, Before: p.before, After: p.after})
			}
		}
	}
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].Day < changes[j].Day
	})
	return changes
}

func toCommitInfo(commitObj *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func authorEmail(author string) string {
	if strings.Contains(author, "@") {
		return author
	}
	return "operator@journey.local"
}
