package insight

import (
	"reflect"
	"testing"

	"github.com/avia-insurance/avia/internal/domain"
)

func TestAggregateEmpty(t *testing.T) {
	got := Aggregate(nil)
	if got.DocumentCount != 0 || len(got.Flags) != 0 || len(got.Summaries) != 0 {
		t.Errorf("expected empty insights, got %+v", got)
	}
}

func TestAggregateDedupesFlagsCaseInsensitive(t *testing.T) {
	docs := []domain.Document{
		{
			Filename: "police_report.pdf",
			Summary:  "Report filed two days after incident.",
			Flags:    []string{"Late Filing", "No Witnesses"},
		},
		{
			Filename: "repair_estimate.pdf",
			Flags:    []string{"late filing", "Inflated Estimate"},
		},
	}

	got := Aggregate(docs)

	wantFlags := []string{"Late Filing", "No Witnesses", "Inflated Estimate"}
	if !reflect.DeepEqual(got.Flags, wantFlags) {
		t.Errorf("flags = %v, want %v", got.Flags, wantFlags)
	}
	if got.DocumentCount != 2 {
		t.Errorf("document count = %d, want 2", got.DocumentCount)
	}
}

func TestAggregateSummariesKeepUploadOrder(t *testing.T) {
	docs := []domain.Document{
		{Filename: "a.pdf", Summary: "first"},
		{Filename: "b.pdf", Summary: ""},
		{Filename: "c.pdf", Summary: "third"},
	}

	got := Aggregate(docs)

	want := []string{"a.pdf: first", "c.pdf: third"}
	if !reflect.DeepEqual(got.Summaries, want) {
		t.Errorf("summaries = %v, want %v", got.Summaries, want)
	}
}

func TestAggregateSkipsBlankFlags(t *testing.T) {
	docs := []domain.Document{
		{Filename: "a.pdf", Flags: []string{"  ", "", "Real Flag"}},
	}

	got := Aggregate(docs)
	if !reflect.DeepEqual(got.Flags, []string{"Real Flag"}) {
		t.Errorf("flags = %v", got.Flags)
	}
}

func TestMergeFlags(t *testing.T) {
	got := MergeFlags(
		[]string{"Rule Flag"},
		[]string{"Doc Flag", "rule flag"},
		[]string{"Another", "doc flag"},
	)

	want := []string{"Rule Flag", "Doc Flag", "Another"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("merged = %v, want %v", got, want)
	}
}
