package domain

import "testing"

func TestAggregateDocumentStatus(t *testing.T) {
	tests := []struct {
		name                   string
		indexed, failed, total int
		want                   DocumentStatus
	}{
		{"all indexed", 3, 0, 3, DocumentStatusCompleted},
		{"all failed", 0, 3, 3, DocumentStatusFailed},
		{"mixed", 2, 1, 3, DocumentStatusPartiallyFailed},
		{"single page success", 1, 0, 1, DocumentStatusCompleted},
		{"single page failure", 0, 1, 1, DocumentStatusFailed},
		{"still in flight", 1, 1, 3, DocumentStatusProcessing},
		{"no pages", 0, 0, 0, DocumentStatusProcessing},
	}
	for _, tt := range tests {
		if got := AggregateDocumentStatus(tt.indexed, tt.failed, tt.total); got != tt.want {
			t.Errorf("%s: AggregateDocumentStatus(%d,%d,%d) = %s, want %s",
				tt.name, tt.indexed, tt.failed, tt.total, got, tt.want)
		}
	}
}

func TestPageStatusTerminal(t *testing.T) {
	terminal := map[PageStatus]bool{
		PageStatusPending:        false,
		PageStatusRendering:      false,
		PageStatusExtractingText: false,
		PageStatusIndexed:        true,
		PageStatusFailed:         true,
	}
	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(NewRenderError(ErrInvalidFile, true)) {
		t.Error("transient worker error should be retryable")
	}
	if IsTransient(NewIndexBuildError(ErrInvalidFile)) {
		t.Error("index build errors are permanent")
	}
	if IsTransient(ErrCancelled) {
		t.Error("cancellation is never retryable")
	}
	if IsTransient(&WorkerError{Stage: StageRender, Transient: true, Err: ErrCancelled}) {
		t.Error("wrapped cancellation is never retryable")
	}
	if IsTransient(nil) {
		t.Error("nil error is not retryable")
	}
}

func TestFailureDetail(t *testing.T) {
	d := FailureDetail(NewExtractionError(ErrInvalidFile, false))
	if d == nil || d.Code != StageExtract {
		t.Fatalf("expected extract detail, got %+v", d)
	}

	d = FailureDetail(&DispatchError{Reason: "document has no pages"})
	if d == nil || d.Code != "dispatch" {
		t.Fatalf("expected dispatch detail, got %+v", d)
	}

	d = FailureDetail(ErrCancelled)
	if d == nil || d.Code != "cancelled" {
		t.Fatalf("expected cancelled detail, got %+v", d)
	}

	if FailureDetail(nil) != nil {
		t.Error("nil error should yield nil detail")
	}
}
