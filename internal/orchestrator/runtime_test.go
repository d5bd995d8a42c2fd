package orchestrator

import "testing"

func TestEstimateUsageByCharCountCountsInputAcrossAllMessages(t *testing.T) {
	messages := []chatMessage{
		{Role: "system", Content: "0123"},
		{Role: "user", Content: "01234567"},
	}
	usage := estimateUsageByCharCount(messages, "01")

	if usage.InputTokens != int64(len("0123")+len("01234567"))/4+1 {
		t.Errorf("input tokens = %d", usage.InputTokens)
	}
	if usage.OutputTokens != int64(len("01"))/4+1 {
		t.Errorf("output tokens = %d", usage.OutputTokens)
	}
}

func TestEstimateUsageByCharCountNeverReturnsZero(t *testing.T) {
	usage := estimateUsageByCharCount(nil, "")
	if usage.InputTokens == 0 || usage.OutputTokens == 0 {
		t.Errorf("got %+v, want a non-zero floor on both counts", usage)
	}
}

func TestRuntimeEstimateUsageMatchesCharCountEstimate(t *testing.T) {
	messages := []chatMessage{{Role: "user", Content: "01234567"}}
	r := &HTTPRuntime{}

	got := r.estimateUsage(messages, "01")
	want := estimateUsageByCharCount(messages, "01")
	if got != want {
		t.Errorf("estimateUsage() = %+v, want the char-count estimate %+v", got, want)
	}
}
