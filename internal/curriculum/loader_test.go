package curriculum_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/p-n-ai/pai-mapper/internal/curriculum"
)

func TestLoader_LoadSources(t *testing.T) {
	dir := setupTestCurriculum(t)

	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	sources := loader.AllSources()
	if len(sources) != 2 {
		t.Fatalf("AllSources() = %d sources, want 2", len(sources))
	}
	if sources[0].ID != "a-level-chemistry" || sources[1].ID != "igcse-physics" {
		t.Errorf("AllSources() order = %s, %s", sources[0].ID, sources[1].ID)
	}
}

func TestLoader_GetSource(t *testing.T) {
	dir := setupTestCurriculum(t)

	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	src, found := loader.GetSource("igcse-physics")
	if !found {
		t.Fatal("GetSource(igcse-physics) not found")
	}
	if len(src.Topics) == 0 {
		t.Error("Source.Topics is empty")
	}

	if _, found := loader.GetSource("NONEXISTENT"); found {
		t.Error("GetSource(NONEXISTENT) should not be found")
	}
}

func TestLoader_SourcesInRequestOrder(t *testing.T) {
	dir := setupTestCurriculum(t)

	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	got, err := loader.Sources("igcse-physics", "a-level-chemistry")
	if err != nil {
		t.Fatalf("Sources() error = %v", err)
	}
	if got[0].ID != "igcse-physics" || got[1].ID != "a-level-chemistry" {
		t.Errorf("Sources() = %s, %s", got[0].ID, got[1].ID)
	}

	_, err = loader.Sources("igcse-physics", "missing")
	if !errors.Is(err, curriculum.ErrUnknownSource) {
		t.Errorf("Sources(missing) error = %v, want ErrUnknownSource", err)
	}
}

func TestLoader_SourceIDFromFileName(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "igcse-biology.yaml"), []byte(`
topics:
  - id: B1
    subtopics: []
`), 0o644)

	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	src, found := loader.GetSource("igcse-biology")
	if !found {
		t.Fatal("source id should fall back to the file name")
	}
	if src.Topics[0].SourceID != "igcse-biology" {
		t.Errorf("Topic.SourceID = %q", src.Topics[0].SourceID)
	}
}

func TestLoader_SkipsInvalidAndForeignFiles(t *testing.T) {
	dir := setupTestCurriculum(t)

	os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"topics": [{"name": "no id"}]}`), 0o644)
	os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Curricula"), 0o644)

	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	if got := len(loader.AllSources()); got != 2 {
		t.Errorf("AllSources() = %d, want 2 (invalid payloads should be skipped)", got)
	}
}

func TestLoader_DuplicateSourceID(t *testing.T) {
	dir := setupTestCurriculum(t)

	os.WriteFile(filepath.Join(dir, "physics-copy.json"), []byte(physicsJSON), 0o644)

	if _, err := curriculum.NewLoader(dir); err == nil {
		t.Fatal("NewLoader() should fail when two files declare the same source id")
	}
}

func TestLoader_ReloadKeepsCatalogOnError(t *testing.T) {
	dir := setupTestCurriculum(t)

	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	os.WriteFile(filepath.Join(dir, "physics-copy.json"), []byte(physicsJSON), 0o644)
	if err := loader.Reload(); err == nil {
		t.Fatal("Reload() should fail on duplicate source id")
	}
	if got := len(loader.AllSources()); got != 2 {
		t.Errorf("AllSources() = %d after failed reload, want 2", got)
	}
}

func TestLoader_EmptyDir(t *testing.T) {
	dir := t.TempDir()

	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	if got := len(loader.AllSources()); got != 0 {
		t.Errorf("AllSources() = %d, want 0 for empty dir", got)
	}
}

func TestLoader_SkipsSourceWithDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	dup := `{"sourceId": "dup", "topics": [{"id": "T1", "subtopics": [{"id": "S1", "objectives": [{"id": "O1"}, {"id": "O1"}]}]}]}`
	dupSubtopic := `{"topics": [{"id": "T1", "subtopics": [{"id": "S1"}, {"id": "S1"}]}]}`
	os.WriteFile(filepath.Join(dir, "dup.json"), []byte(dup), 0o644)
	os.WriteFile(filepath.Join(dir, "dup-subtopic.json"), []byte(dupSubtopic), 0o644)
	os.WriteFile(filepath.Join(dir, "physics.json"), []byte(physicsJSON), 0o644)

	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	if _, ok := loader.GetSource("dup"); ok {
		t.Error("source with duplicate objective ids should not be loaded")
	}
	if _, ok := loader.GetSource("dup-subtopic"); ok {
		t.Error("source with duplicate subtopic ids should not be loaded")
	}
	if got := len(loader.AllSources()); got != 1 {
		t.Errorf("AllSources() = %d, want 1", got)
	}
}

func TestLoader_MissingDir(t *testing.T) {
	if _, err := curriculum.NewLoader(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("NewLoader() should fail for a missing directory")
	}
}

func setupTestCurriculum(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	levelDir := filepath.Join(dir, "cambridge", "igcse")
	os.MkdirAll(levelDir, 0o755)
	os.WriteFile(filepath.Join(levelDir, "physics.json"), []byte(physicsJSON), 0o644)

	alevelDir := filepath.Join(dir, "cambridge", "a-level")
	os.MkdirAll(alevelDir, 0o755)
	os.WriteFile(filepath.Join(alevelDir, "chemistry.yml"), []byte(chemistryYAML), 0o644)

	return dir
}
