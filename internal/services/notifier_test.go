package services

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestReportError_GoesToOperatorAndUser(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, 999)

	n.ReportError(context.Background(), 42, errors.New("boom"))

	op := sender.sentTo(999)
	if len(op) != 1 || !strings.Contains(op[0].text, "boom") || !strings.Contains(op[0].text, "42") {
		t.Errorf("operator report = %+v", op)
	}
	if got := sender.lastText(42); got != msgUserApology {
		t.Errorf("user message = %q, want %q", got, msgUserApology)
	}
}

func TestReportError_NoOperatorConfigured(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, 0)

	n.ReportError(context.Background(), 42, errors.New("boom"))

	if got := len(sender.sentTo(0)); got != 0 {
		t.Errorf("sent %d messages to chat 0", got)
	}
	if got := sender.lastText(42); got != msgUserApology {
		t.Errorf("user message = %q, want %q", got, msgUserApology)
	}
}
