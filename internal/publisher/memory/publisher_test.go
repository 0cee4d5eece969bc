package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/JakeFAU/steam-vanity-checker/internal/publisher"
)

func TestPublisherStoresNotices(t *testing.T) {
	t.Parallel()

	pub := New()
	runID := uuid.New()
	if err := pub.Publish(context.Background(), publisher.AvailableNotice{RunID: runID, Candidate: "alpha"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := pub.Publish(context.Background(), publisher.AvailableNotice{RunID: runID, Candidate: "bravo"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got := pub.Notices()
	if len(got) != 2 {
		t.Fatalf("expected 2 notices, got %d", len(got))
	}
	if got[0].Candidate != "alpha" || got[1].Candidate != "bravo" {
		t.Fatalf("notices not recorded in order: %+v", got)
	}

	got[0].Candidate = "modified"
	if pub.Notices()[0].Candidate == "modified" {
		t.Fatal("expected Notices() to return a copy")
	}
}

func TestPublisherFailWith(t *testing.T) {
	t.Parallel()

	pub := New()
	boom := errors.New("boom")
	pub.FailWith(boom)
	if err := pub.Publish(context.Background(), publisher.AvailableNotice{Candidate: "alpha"}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(pub.Notices()) != 0 {
		t.Fatal("failed publish must not be recorded")
	}
}
