package changeset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRepo struct {
	t    *testing.T
	dir  string
	repo *git.Repository
}

func initRepo(t *testing.T) *testRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	return &testRepo{t: t, dir: dir, repo: repo}
}

func (r *testRepo) commit(files map[string]string) plumbing.Hash {
	r.t.Helper()
	wt, err := r.repo.Worktree()
	require.NoError(r.t, err)
	for name, content := range files {
		p := filepath.Join(r.dir, filepath.FromSlash(name))
		require.NoError(r.t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(r.t, os.WriteFile(p, []byte(content), 0o644))
		_, err := wt.Add(name)
		require.NoError(r.t, err)
	}
	h, err := wt.Commit("change", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(r.t, err)
	return h
}

func (r *testRepo) branch(name string, h plumbing.Hash) {
	r.t.Helper()
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), h)
	require.NoError(r.t, r.repo.Storer.SetReference(ref))
}

// fakeResolver answers per base; bases not in the map fail.
type fakeResolver struct {
	files map[string][]string
	calls []string
}

func (f *fakeResolver) ChangedFiles(_ context.Context, _, base string) ([]string, error) {
	f.calls = append(f.calls, base)
	if files, ok := f.files[base]; ok {
		return files, nil
	}
	return nil, errors.New("unknown revision " + base)
}

func TestGoGit_ChangedFilesSinceMergeBase(t *testing.T) {
	r := initRepo(t)
	base := r.commit(map[string]string{"README.md": "hello\n"})
	r.branch("main", base)
	r.commit(map[string]string{
		"src/app.go":  "package app\n",
		"README.md":   "hello again\n",
		"docs/new.md": "doc\n",
	})

	files, err := GoGit{}.ChangedFiles(context.Background(), r.dir, "main")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"README.md", "docs/new.md", "src/app.go"}, files)
}

func TestGoGit_UnknownBase(t *testing.T) {
	r := initRepo(t)
	r.commit(map[string]string{"a.txt": "a"})

	_, err := GoGit{}.ChangedFiles(context.Background(), r.dir, "origin/main")
	assert.Error(t, err)
}

func TestGoGit_NotARepository(t *testing.T) {
	_, err := GoGit{}.ChangedFiles(context.Background(), t.TempDir(), "main")
	assert.Error(t, err)
}

func TestCollector_DefaultBasesFallThrough(t *testing.T) {
	r := initRepo(t)
	base := r.commit(map[string]string{"a.txt": "a"})
	r.branch("main", base)
	r.commit(map[string]string{"b.py": "print(1)\n"})

	c := &Collector{}
	files := c.Collect(context.Background(), r.dir)
	assert.Equal(t, []string{"b.py"}, files)
}

func TestCollector_ConfiguredBaseOnly(t *testing.T) {
	fr := &fakeResolver{files: map[string][]string{"main": {"x.go"}}}
	c := &Collector{Resolver: fr, Base: "develop"}

	files := c.Collect(context.Background(), ".")
	assert.Empty(t, files)
	assert.Equal(t, []string{"develop"}, fr.calls)
}

func TestCollector_DegradesToEmpty(t *testing.T) {
	c := &Collector{}
	assert.Empty(t, c.Collect(context.Background(), t.TempDir()))
}

func TestCollector_FiltersAndSorts(t *testing.T) {
	fr := &fakeResolver{files: map[string][]string{
		"origin/main": {"z.go", "node_modules/left/index.js", "web/node_modules/pad/x.js", "a.go", "a.go", ""},
	}}
	c := &Collector{Resolver: fr, Excludes: []string{"*/node_modules/*"}}

	files := c.Collect(context.Background(), ".")
	assert.Equal(t, []string{"a.go", "z.go"}, files)
	assert.Equal(t, []string{"origin/main"}, fr.calls)
}

func TestFilter(t *testing.T) {
	files := []string{
		".venv/lib/site.py",
		"pkg/__pycache__/m.pyc",
		"cmd/main.go",
		"docs/guide.md",
		"build/out.js",
	}
	got, err := Filter(files, []string{"*/.venv/*", "*/__pycache__/*", "*/build/*", "docs/*.md"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cmd/main.go"}, got)
}

func TestFilter_BadPattern(t *testing.T) {
	_, err := Filter([]string{"a"}, []string{"[unclosed"})
	assert.Error(t, err)
}

func TestWriteList(t *testing.T) {
	dir := t.TempDir()

	p, err := WriteList(dir, nil)
	require.NoError(t, err)
	assert.Empty(t, p)

	p1, err := WriteList(dir, []string{"a.go", "b/c.go"})
	require.NoError(t, err)
	p2, err := WriteList(dir, []string{"a.go"})
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)
	assert.True(t, strings.HasPrefix(filepath.Base(p1), "aiq-changed-"))

	data, err := os.ReadFile(p1)
	require.NoError(t, err)
	assert.Equal(t, "a.go\nb/c.go\n", string(data))
}
