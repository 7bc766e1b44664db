package models

import (
	"errors"
	"reflect"
	"testing"
)

func TestCanTransitionForwardOnly(t *testing.T) {
	order := []JobState{
		JobStatePending,
		JobStateTranscribing,
		JobStateGenerating,
		JobStateWriting,
		JobStateComplete,
	}
	for i := 0; i < len(order)-1; i++ {
		if !CanTransition(order[i], order[i+1]) {
			t.Fatalf("%s -> %s should be allowed", order[i], order[i+1])
		}
		if !CanTransition(order[i], JobStateFailed) {
			t.Fatalf("%s -> FAILED should be allowed", order[i])
		}
		for j := 0; j < i; j++ {
			if CanTransition(order[i], order[j]) {
				t.Fatalf("%s -> %s is a regression", order[i], order[j])
			}
		}
	}
	if CanTransition(JobStatePending, JobStateGenerating) {
		t.Fatal("skipping a step should be rejected")
	}
	if CanTransition(JobStateComplete, JobStateFailed) {
		t.Fatal("terminal states must not transition")
	}
	if CanTransition(JobStateFailed, JobStatePending) {
		t.Fatal("FAILED -> PENDING is only reachable through a new attempt")
	}
	if !CanTransition(JobStateTranscribing, JobStateTranscribing) {
		t.Fatal("metadata self-transition should be allowed")
	}
}

func TestJobIDDistinguishesReuploads(t *testing.T) {
	a := UploadEvent{Bucket: "lectures", Key: "week1.mp4", ETag: "\"e1\""}
	b := UploadEvent{Bucket: "lectures", Key: "week1.mp4", ETag: "e1"}
	c := UploadEvent{Bucket: "lectures", Key: "week1.mp4", ETag: "e2"}

	if a.JobID() != b.JobID() {
		t.Fatalf("quoted and unquoted etag should map to same job: %s vs %s", a.JobID(), b.JobID())
	}
	if a.JobID() == c.JobID() {
		t.Fatal("different content should map to a different job")
	}
	if len(a.JobID()) != 32 {
		t.Fatalf("job id length = %d, want 32", len(a.JobID()))
	}
}

func TestFingerprintFallsBackToVersion(t *testing.T) {
	if got := Fingerprint("", "v7"); got != "v7" {
		t.Fatalf("fingerprint = %q, want v7", got)
	}
	if got := Fingerprint("\"abc\"", "v7"); got != "abc" {
		t.Fatalf("fingerprint = %q, want abc", got)
	}
}

func TestUploadEventHasSuffix(t *testing.T) {
	allowed := []string{".mp4", ".MOV"}
	cases := map[string]bool{
		"week1.mp4":       true,
		"dir/Week2.MP4":   true,
		"clip.mov":        true,
		"notes.txt":       false,
		"noext":           false,
		"archive.mp4.zip": false,
	}
	for key, want := range cases {
		ev := UploadEvent{Bucket: "b", Key: key}
		if got := ev.HasSuffix(allowed); got != want {
			t.Fatalf("HasSuffix(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestQuizValidate(t *testing.T) {
	good := Quiz{Questions: []Question{{
		Prompt: "2+2?",
		Options: []AnswerOption{
			{Text: "3"},
			{Text: "4", IsCorrect: true},
		},
	}}}
	if err := good.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	bad := []Quiz{
		{},
		{Questions: []Question{{Prompt: "x", Options: []AnswerOption{{Text: "a", IsCorrect: true}}}}},
		{Questions: []Question{{Prompt: "x", Options: []AnswerOption{{Text: "a"}, {Text: "b"}}}}},
		{Questions: []Question{{Prompt: "x", Options: []AnswerOption{{Text: "a", IsCorrect: true}, {Text: "b", IsCorrect: true}}}}},
		{Questions: []Question{{Prompt: " ", Options: []AnswerOption{{Text: "a", IsCorrect: true}, {Text: "b"}}}}},
	}
	for i, q := range bad {
		if err := q.Validate(); !errors.Is(err, ErrInvalidQuiz) {
			t.Fatalf("case %d: Validate() = %v, want ErrInvalidQuiz", i, err)
		}
	}
}

func TestQuizEncodingIsLossless(t *testing.T) {
	want := Quiz{
		JobID:        "j1",
		Source:       QuizSource{Bucket: "lectures", Key: "week1.mp4"},
		LanguageCode: "en-US",
		GeneratedAt:  1700000000000,
		Questions: []Question{{
			Prompt:  "Which is prime?",
			Options: []AnswerOption{{Text: "4"}, {Text: "7", IsCorrect: true}, {Text: "9"}},
		}},
	}
	b, err := EncodeQuiz(want)
	if err != nil {
		t.Fatalf("EncodeQuiz() = %v", err)
	}
	got, err := DecodeQuiz(b)
	if err != nil {
		t.Fatalf("DecodeQuiz() = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("quiz = %+v, want %+v", got, want)
	}
}
