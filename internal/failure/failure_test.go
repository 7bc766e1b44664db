package failure

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/sashabaranov/go-openai"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("generate: %w", Transient("bedrock.Converse", errors.New("boom")))
	if got := KindOf(err); got != KindTransient {
		t.Fatalf("KindOf = %s, want %s", got, KindTransient)
	}
	if KindOf(nil) != "" {
		t.Fatal("nil error should have no kind")
	}
}

func TestKindOfUnclassifiedIsPermanent(t *testing.T) {
	if got := KindOf(errors.New("weird")); got != KindPermanent {
		t.Fatalf("KindOf = %s, want %s", got, KindPermanent)
	}
	if got := KindOf(context.Canceled); got != KindDeadlineExceeded {
		t.Fatalf("KindOf(canceled) = %s, want %s", got, KindDeadlineExceeded)
	}
}

func TestFromAWS(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"throttled", &smithy.GenericAPIError{Code: "ThrottlingException", Fault: smithy.FaultClient}, KindTransient},
		{"server fault", &smithy.GenericAPIError{Code: "Whatever", Fault: smithy.FaultServer}, KindTransient},
		{"bad request", &smithy.GenericAPIError{Code: "BadRequestException", Fault: smithy.FaultClient}, KindPermanent},
		{"per-call timeout", context.DeadlineExceeded, KindTransient},
		{"unknown", errors.New("what"), KindPermanent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(FromAWS(ctx, "op", tc.err)); got != tc.want {
				t.Fatalf("kind = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestFromAWSParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := FromAWS(ctx, "op", context.Canceled)
	if got := KindOf(err); got != KindDeadlineExceeded {
		t.Fatalf("kind = %s, want %s", got, KindDeadlineExceeded)
	}
}

func TestFromOpenAI(t *testing.T) {
	ctx := context.Background()
	if got := KindOf(FromOpenAI(ctx, "op", &openai.APIError{HTTPStatusCode: 429})); got != KindTransient {
		t.Fatalf("429 kind = %s", got)
	}
	if got := KindOf(FromOpenAI(ctx, "op", &openai.APIError{HTTPStatusCode: 400})); got != KindPermanent {
		t.Fatalf("400 kind = %s", got)
	}
	if got := KindOf(FromOpenAI(ctx, "op", &openai.RequestError{HTTPStatusCode: 503})); got != KindTransient {
		t.Fatalf("503 kind = %s", got)
	}
}

func TestErrorMessage(t *testing.T) {
	err := Permanent("s3.PutObject", errors.New("denied"))
	if err.Error() != "s3.PutObject: PermanentProviderError: denied" {
		t.Fatalf("Error() = %q", err.Error())
	}
}
