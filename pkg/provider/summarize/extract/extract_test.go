package extract_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/meetscribe/meetscribe/pkg/provider/summarize"
	"github.com/meetscribe/meetscribe/pkg/provider/summarize/extract"
)

func TestSplitSentences(t *testing.T) {
	text := "This is the first sentence. Short! And here is another one? Done now..."
	got := extract.SplitSentences(text)
	want := []string{"This is the first sentence", "And here is another one"}
	if len(got) != len(want) {
		t.Fatalf("sentence count: got %d (%q), want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitSentences_DropsShortFragments(t *testing.T) {
	// "Ten chars" is 9 characters; the splitter keeps only > 10.
	got := extract.SplitSentences("Ten chars!. A sentence long enough to keep.")
	if len(got) != 1 {
		t.Fatalf("got %d sentences (%q), want 1", len(got), got)
	}
}

func TestSummarize_AlwaysProducesSummary(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "Sentence number %d with plenty of words in it. ", i)
	}

	res, err := extract.New().Summarize(context.Background(), summarize.Request{
		Text:     b.String(),
		Language: "vi",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Summary == "" {
		t.Errorf("summary is empty")
	}
	if res.Source != "custom" {
		t.Errorf("source: got %q, want %q", res.Source, "custom")
	}
}

func TestSummarize_HeadAndTailSelection(t *testing.T) {
	// 20 sentences → head = ceil(20*0.3/2) = 3, tail = floor(20*0.3/2) = 3.
	var sentences []string
	for i := 0; i < 20; i++ {
		sentences = append(sentences, fmt.Sprintf("Sentence number %02d in the running order", i))
	}
	res, err := extract.New().Summarize(context.Background(), summarize.Request{
		Text: strings.Join(sentences, ". ") + ".",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"number 00", "number 01", "number 02", "number 17", "number 18", "number 19"} {
		if !strings.Contains(res.Summary, want) {
			t.Errorf("summary missing %q: %q", want, res.Summary)
		}
	}
	if strings.Contains(res.Summary, "number 09") {
		t.Errorf("summary should not contain middle sentences: %q", res.Summary)
	}
}

func TestSummarize_CategoriesAndCaps(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "This is an important point about the budget number %d. ", i)
	}
	b.WriteString("We decided to ship on Friday regardless of remaining polish. ")
	b.WriteString("Alice will need to update the roadmap document tomorrow. ")

	res, err := extract.New().Summarize(context.Background(), summarize.Request{Text: b.String(), Language: "en"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.KeyPoints) != 5 {
		t.Errorf("keyPoints capped at 5, got %d", len(res.KeyPoints))
	}
	if len(res.Decisions) == 0 {
		t.Errorf("expected at least one decision")
	}
	if len(res.ActionItems) == 0 {
		t.Errorf("expected at least one action item")
	}
	if len(res.Topics) > 5 {
		t.Errorf("topics capped at 5, got %d", len(res.Topics))
	}
}

func TestSummarize_VietnameseKeywords(t *testing.T) {
	text := "Chúng ta đã quyết định triển khai vào tuần sau cho toàn bộ nhóm. " +
		"Anh Minh sẽ cần chuẩn bị tài liệu hướng dẫn trước cuộc họp. " +
		"Đây là điểm quan trọng nhất của buổi thảo luận hôm nay."

	res, err := extract.New().Summarize(context.Background(), summarize.Request{Text: text, Language: "vi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Decisions) == 0 {
		t.Errorf("expected a Vietnamese decision match")
	}
	if len(res.ActionItems) == 0 {
		t.Errorf("expected a Vietnamese action item match")
	}
	if len(res.KeyPoints) == 0 {
		t.Errorf("expected a Vietnamese key point match")
	}
}

func TestSummarize_EmptyTranscript(t *testing.T) {
	_, err := extract.New().Summarize(context.Background(), summarize.Request{Text: "   "})
	if !errors.Is(err, summarize.ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}
}

func TestSummarize_UnknownLanguageFallsBackToEnglish(t *testing.T) {
	text := "We agreed on the important rollout plan for the quarter ahead."
	res, err := extract.New().Summarize(context.Background(), summarize.Request{Text: text, Language: "xx-XX"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Decisions) == 0 && len(res.KeyPoints) == 0 {
		t.Errorf("English keyword fallback did not match")
	}
}
