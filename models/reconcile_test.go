package models_test

import (
	"testing"

	"notesync/models"
	"notesync/syncproto"
)

func doc(id string, modified syncproto.Timestamp, deleted bool) models.NoteDoc {
	return models.NoteDoc{
		Note:       syncproto.Note{ID: id, Title: "title " + id, ChangedDate: modified},
		UserID:     "u1",
		Deleted:    deleted,
		ModifiedAt: modified,
	}
}

func ids(notes []syncproto.Note) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.ID)
	}
	return out
}

func TestReconcileChangedWhenServerNewer(t *testing.T) {
	const t0, t1 = syncproto.Timestamp(1000), syncproto.Timestamp(2000)

	res := models.Reconcile(
		[]models.NoteDoc{doc("a", t1, false)},
		[]syncproto.ManifestItem{{ID: "a", Date: t0}},
	)

	if got := ids(res.Changed); len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected changed=[a], got %v", got)
	}
	if len(res.Added) != 0 || len(res.Deleted) != 0 || len(res.MissingIDs) != 0 {
		t.Errorf("expected other buckets empty, got added=%v deleted=%v missing=%v",
			ids(res.Added), ids(res.Deleted), res.MissingIDs)
	}
	if res.Changed[0].ChangedDate != t1 {
		t.Errorf("expected changed note to carry server instant %d, got %d", t1, res.Changed[0].ChangedDate)
	}
}

func TestReconcileEqualTimestampIsNotChanged(t *testing.T) {
	const t0 = syncproto.Timestamp(1000)
	res := models.Reconcile(
		[]models.NoteDoc{doc("a", t0, false)},
		[]syncproto.ManifestItem{{ID: "a", Date: t0}},
	)
	if !res.IsEmpty() {
		t.Fatalf("expected empty result for equal timestamps, got %+v", res)
	}
}

func TestReconcileMissingWhenServerUnaware(t *testing.T) {
	res := models.Reconcile(nil, []syncproto.ManifestItem{{ID: "a", Date: 1000}})

	if len(res.MissingIDs) != 1 || res.MissingIDs[0] != "a" {
		t.Fatalf("expected missingIds=[a], got %v", res.MissingIDs)
	}
	if len(res.Added) != 0 || len(res.Changed) != 0 || len(res.Deleted) != 0 {
		t.Errorf("expected other buckets empty, got %+v", res)
	}
}

func TestReconcileAddedForUnknownLiveNote(t *testing.T) {
	res := models.Reconcile([]models.NoteDoc{doc("b", 1000, false)}, []syncproto.ManifestItem{})

	if got := ids(res.Added); len(got) != 1 || got[0] != "b" {
		t.Fatalf("expected added=[b], got %v", got)
	}
}

func TestReconcileTombstones(t *testing.T) {
	docs := []models.NoteDoc{
		doc("known-dead", 5000, true),
		doc("unknown-dead", 5000, true),
	}
	res := models.Reconcile(docs, []syncproto.ManifestItem{{ID: "known-dead", Date: 9000}})

	if got := ids(res.Deleted); len(got) != 1 || got[0] != "known-dead" {
		t.Fatalf("expected deleted=[known-dead], got %v", got)
	}
	// A tombstone the client never had is not news to it
	if len(res.Added) != 0 {
		t.Errorf("expected no added notes, got %v", ids(res.Added))
	}
	if len(res.MissingIDs) != 0 {
		t.Errorf("tombstoned id must not be reported missing, got %v", res.MissingIDs)
	}
}

func TestReconcileBucketsAreExclusive(t *testing.T) {
	docs := []models.NoteDoc{
		doc("changed", 3000, false),
		doc("same", 1000, false),
		doc("dead", 3000, true),
		doc("new", 3000, false),
	}
	manifest := []syncproto.ManifestItem{
		{ID: "changed", Date: 1000},
		{ID: "same", Date: 1000},
		{ID: "dead", Date: 1000},
		{ID: "ghost", Date: 1000},
	}

	res := models.Reconcile(docs, manifest)

	seen := map[string]int{}
	for _, id := range ids(res.Added) {
		seen[id]++
	}
	for _, id := range ids(res.Changed) {
		seen[id]++
	}
	for _, id := range ids(res.Deleted) {
		seen[id]++
	}
	for _, id := range res.MissingIDs {
		seen[id]++
	}

	for id, n := range seen {
		if n > 1 {
			t.Errorf("id %q appears in %d buckets", id, n)
		}
	}
	if seen["same"] != 0 {
		t.Errorf("unchanged note should appear in no bucket")
	}
	if len(res.MissingIDs) != 1 || res.MissingIDs[0] != "ghost" {
		t.Errorf("expected missingIds=[ghost], got %v", res.MissingIDs)
	}
}

func TestReconcileIdempotentAfterApplying(t *testing.T) {
	docs := []models.NoteDoc{doc("a", 2000, false), doc("b", 3000, false)}
	manifest := []syncproto.ManifestItem{{ID: "a", Date: 1000}}

	first := models.Reconcile(docs, manifest)
	if first.IsEmpty() {
		t.Fatal("expected first round to report changes")
	}

	// The client applies the result and reports the new versions
	next := []syncproto.ManifestItem{}
	for _, n := range append(first.Changed, first.Added...) {
		next = append(next, syncproto.ManifestItem{ID: n.ID, Date: n.ChangedDate})
	}

	second := models.Reconcile(docs, next)
	if !second.IsEmpty() {
		t.Fatalf("expected empty second round, got %+v", second)
	}
	third := models.Reconcile(docs, next)
	if !third.IsEmpty() {
		t.Fatalf("expected reconcile to stay empty, got %+v", third)
	}
}

func TestReconcileListsNeverNil(t *testing.T) {
	res := models.Reconcile(nil, nil)
	if res.Added == nil || res.Changed == nil || res.Deleted == nil || res.MissingIDs == nil {
		t.Fatalf("expected non-nil empty lists, got %+v", res)
	}
}
