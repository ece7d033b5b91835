package batch

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"inclusion-scoring/internal/common/aws"
)

// Notifier announces a completed run.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, s *Summary) error
}

// SNSNotifier publishes the summary to a topic.
type SNSNotifier struct {
	client   *aws.SNSClient
	topicARN string
}

func NewSNSNotifier(client *aws.SNSClient, topicARN string) *SNSNotifier {
	return &SNSNotifier{client: client, topicARN: topicARN}
}

func (n *SNSNotifier) Name() string { return "sns" }

func (n *SNSNotifier) Notify(ctx context.Context, s *Summary) error {
	_, err := n.client.PublishMessage(ctx, n.topicARN, subject(s), message(s))
	return err
}

// SESNotifier e-mails the summary.
type SESNotifier struct {
	client     *aws.SESClient
	from       string
	recipients []string
}

func NewSESNotifier(client *aws.SESClient, from string, recipients []string) *SESNotifier {
	return &SESNotifier{client: client, from: from, recipients: recipients}
}

func (n *SESNotifier) Name() string { return "ses" }

func (n *SESNotifier) Notify(ctx context.Context, s *Summary) error {
	_, err := n.client.SendText(ctx, n.from, n.recipients, subject(s), message(s))
	return err
}

func subject(s *Summary) string {
	return fmt.Sprintf("Batch scoring finished: %d rows", s.Rows)
}

func message(s *Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run:      %s\n", s.RunID)
	fmt.Fprintf(&b, "Model:    %s %s\n", s.ModelName, s.ModelVersion)
	fmt.Fprintf(&b, "Input:    %s\n", s.InputPath)
	fmt.Fprintf(&b, "Output:   %s\n", s.OutputPath)
	fmt.Fprintf(&b, "Rows:     %d\n", s.Rows)
	fmt.Fprintf(&b, "Duration: %dms\n", s.DurationMs)
	if s.Accuracy != nil {
		fmt.Fprintf(&b, "Accuracy: %.4f\n", *s.Accuracy)
	}

	labels := make([]string, 0, len(s.LabelCounts))
	for l := range s.LabelCounts {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		fmt.Fprintf(&b, "Label %s: %d\n", l, s.LabelCounts[l])
	}
	return b.String()
}
