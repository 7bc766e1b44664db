package email

import (
	"context"
	"fmt"
	"strings"

	"lecture-quiz/internal/failure"
	"lecture-quiz/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

type Sender interface {
	Send(ctx context.Context, to string, subject string, body string) error
}

type sendEmailAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type SESSender struct {
	client    sendEmailAPI
	fromEmail string
}

func NewSESSender(cfg aws.Config, from string) (*SESSender, error) {
	if from == "" {
		return nil, fmt.Errorf("SES_FROM_EMAIL is not set")
	}
	return &SESSender{
		client:    sesv2.NewFromConfig(cfg),
		fromEmail: from,
	}, nil
}

func (s *SESSender) Send(ctx context.Context, to, subject, body string) error {
	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.fromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body)},
				},
			},
		},
	})
	if err != nil {
		return failure.FromAWS(ctx, "ses.SendEmail", err)
	}
	return nil
}

// Notifier emails one recipient when a job finishes.
type Notifier struct {
	sender Sender
	to     string
}

func NewNotifier(sender Sender, to string) *Notifier {
	return &Notifier{sender: sender, to: to}
}

func (n *Notifier) Notify(ctx context.Context, out models.Outcome) error {
	subject, body := render(out)
	return n.sender.Send(ctx, n.to, subject, body)
}

func render(out models.Outcome) (string, string) {
	source := "s3://" + out.Bucket + "/" + out.Key

	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", source)
	fmt.Fprintf(&b, "Job: %s\n", out.JobID)
	fmt.Fprintf(&b, "Status: %s\n", out.Kind)

	switch out.Kind {
	case models.OutcomeComplete:
		if out.OutputBucket != "" {
			fmt.Fprintf(&b, "Quiz: s3://%s/%s\n", out.OutputBucket, out.OutputKey)
		} else {
			fmt.Fprintf(&b, "Quiz: %s\n", out.OutputKey)
		}
		return "Quiz ready: " + out.Key, b.String()
	default:
		if out.Reason != "" {
			fmt.Fprintf(&b, "Reason: %s\n", out.Reason)
		}
		return "Quiz failed: " + out.Key, b.String()
	}
}
