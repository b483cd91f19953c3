package usecase

import (
	"testing"

	classifydomain "steward-backend/internal/classify/domain"
	"steward-backend/internal/folder/domain"
	messagedomain "steward-backend/internal/message/domain"
)

// fakeHintRepository is an in-memory HintRepository for tests.
type fakeHintRepository struct {
	hints []*domain.FolderHint
}

func (f *fakeHintRepository) FindByHint(hint string) ([]*domain.FolderHint, error) {
	var out []*domain.FolderHint
	for _, h := range f.hints {
		if h.Hint == hint {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeHintRepository) FindByHintAndFolder(hint, folder string) (*domain.FolderHint, error) {
	for _, h := range f.hints {
		if h.Hint == hint && h.Folder == folder {
			return h, nil
		}
	}
	return nil, nil
}

func (f *fakeHintRepository) Save(hint *domain.FolderHint) error {
	for i, h := range f.hints {
		if h.Hint == hint.Hint && h.Folder == hint.Folder {
			f.hints[i] = hint
			return nil
		}
	}
	f.hints = append(f.hints, hint)
	return nil
}

func newTestResolver(repo *fakeHintRepository) *Resolver {
	return NewResolver(repo, 0.85, 0.6, "Misc/Review")
}

func testMessage() *messagedomain.Message {
	return &messagedomain.Message{
		Subject: "Tuition statement March",
		Sender:  "bursar@school.edu",
	}
}

func classification(folder string, confidence float64) *classifydomain.ClassificationResult {
	return &classifydomain.ClassificationResult{
		Lane:       classifydomain.LaneArchiveNow,
		Folder:     folder,
		Confidence: confidence,
	}
}

func TestResolver_SuggestionUsedWhenNoHint(t *testing.T) {
	r := newTestResolver(&fakeHintRepository{})

	res, err := r.Resolve(testMessage(), classification("finance/tuition", 0.9), []string{"Finance/Tuition"})
	if err != nil {
		t.Fatal(err)
	}
	if res.FolderPath != "Finance/Tuition" {
		t.Errorf("FolderPath = %q, want Finance/Tuition", res.FolderPath)
	}
	if res.CreatedNew {
		t.Error("CreatedNew = true for an existing folder")
	}
}

func TestResolver_HintBeatsLowConfidenceSuggestion(t *testing.T) {
	key := domain.HintKey("bursar@school.edu", "Tuition statement March")
	repo := &fakeHintRepository{hints: []*domain.FolderHint{
		{Hint: key, Folder: "Finance/Tuition", Weight: 3.0},
	}}
	r := newTestResolver(repo)

	res, err := r.Resolve(testMessage(), classification("School", 0.7), []string{"Finance/Tuition", "School"})
	if err != nil {
		t.Fatal(err)
	}
	if res.FolderPath != "Finance/Tuition" {
		t.Errorf("FolderPath = %q, want the stored hint Finance/Tuition", res.FolderPath)
	}
}

func TestResolver_ConfidentSuggestionOverridesHint(t *testing.T) {
	key := domain.HintKey("bursar@school.edu", "Tuition statement March")
	repo := &fakeHintRepository{hints: []*domain.FolderHint{
		{Hint: key, Folder: "Finance/Tuition", Weight: 3.0},
	}}
	r := newTestResolver(repo)

	res, err := r.Resolve(testMessage(), classification("School", 0.9), []string{"Finance/Tuition", "School"})
	if err != nil {
		t.Fatal(err)
	}
	if res.FolderPath != "School" {
		t.Errorf("FolderPath = %q, want the override School", res.FolderPath)
	}
}

func TestResolver_HighestWeightHintWins(t *testing.T) {
	key := domain.HintKey("bursar@school.edu", "Tuition statement March")
	repo := &fakeHintRepository{hints: []*domain.FolderHint{
		{Hint: key, Folder: "Finance/Tuition", Weight: 1.0},
		{Hint: key, Folder: "School", Weight: 4.0},
	}}
	r := newTestResolver(repo)

	res, err := r.Resolve(testMessage(), classification("Home", 0.5), []string{"Finance/Tuition", "School", "Home"})
	if err != nil {
		t.Fatal(err)
	}
	if res.FolderPath != "School" {
		t.Errorf("FolderPath = %q, want the heavier hint School", res.FolderPath)
	}
}

func TestResolver_LowConfidenceNewFolderParksInReview(t *testing.T) {
	r := newTestResolver(&fakeHintRepository{})

	res, err := r.Resolve(testMessage(), classification("Finance/Escrow", 0.5), []string{"Finance"})
	if err != nil {
		t.Fatal(err)
	}
	if res.FolderPath != "Misc/Review" {
		t.Errorf("FolderPath = %q, want Misc/Review", res.FolderPath)
	}
}

func TestResolver_ConfidentNewFolderIsCreated(t *testing.T) {
	r := newTestResolver(&fakeHintRepository{})

	res, err := r.Resolve(testMessage(), classification("Finance/Escrow", 0.7), []string{"Finance"})
	if err != nil {
		t.Fatal(err)
	}
	if res.FolderPath != "Finance/Escrow" {
		t.Errorf("FolderPath = %q, want Finance/Escrow", res.FolderPath)
	}
	if !res.CreatedNew {
		t.Error("CreatedNew = false for a folder missing from the live tree")
	}
}

func TestResolver_Deterministic(t *testing.T) {
	key := domain.HintKey("bursar@school.edu", "Tuition statement March")
	repo := &fakeHintRepository{hints: []*domain.FolderHint{
		{Hint: key, Folder: "Finance/Tuition", Weight: 2.0},
	}}
	r := newTestResolver(repo)

	first, err := r.Resolve(testMessage(), classification("School", 0.7), []string{"Finance/Tuition", "School"})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := r.Resolve(testMessage(), classification("School", 0.7), []string{"Finance/Tuition", "School"})
		if err != nil {
			t.Fatal(err)
		}
		if again.FolderPath != first.FolderPath {
			t.Fatalf("resolution changed between identical runs: %q vs %q", again.FolderPath, first.FolderPath)
		}
	}
}

func TestResolver_ReinforceRequiresConfidence(t *testing.T) {
	repo := &fakeHintRepository{}
	r := newTestResolver(repo)

	if err := r.Reinforce(testMessage(), "Finance/Tuition", 0.7); err != nil {
		t.Fatal(err)
	}
	if len(repo.hints) != 0 {
		t.Errorf("low-confidence commit stored a hint: %+v", repo.hints)
	}
}

func TestResolver_ReinforceAccumulatesAndCaps(t *testing.T) {
	repo := &fakeHintRepository{}
	r := newTestResolver(repo)
	msg := testMessage()

	for i := 0; i < 10; i++ {
		if err := r.Reinforce(msg, "Finance/Tuition", 0.9); err != nil {
			t.Fatal(err)
		}
	}
	if len(repo.hints) != 1 {
		t.Fatalf("expected one hint, got %d", len(repo.hints))
	}
	if got := repo.hints[0].Weight; got != domain.MaxHintWeight {
		t.Errorf("Weight = %v, want capped at %v", got, domain.MaxHintWeight)
	}
}
