package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/ttd-workflows/pkg/config"
)

func TestNewClientRequiresProjectAndTopic(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.GCPConfig{}, config.PubSubConfig{DeltaTopic: "ttd-delta"}, nil); err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "ttd-sync"}, config.PubSubConfig{}, nil); err != errTopicRequired {
		t.Fatalf("expected topic error, got %v", err)
	}
}

func TestTopicResourceName(t *testing.T) {
	c := &Client{projectID: "ttd-sync"}

	tests := map[string]string{
		"ttd-delta":                       "projects/ttd-sync/topics/ttd-delta",
		" ttd-delta ":                     "projects/ttd-sync/topics/ttd-delta",
		"projects/other/topics/ttd-delta": "projects/other/topics/ttd-delta",
		"":                                "",
	}
	for in, want := range tests {
		if got := c.topicResourceName(in); got != want {
			t.Fatalf("topicResourceName(%q) = %q, want %q", in, got, want)
		}
	}

	if got := (&Client{}).topicResourceName("ttd-delta"); got != "" {
		t.Fatalf("expected empty name without a project, got %q", got)
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if c.DeltaPublisher() != nil {
		t.Fatal("expected nil publisher")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping on nil client to fail")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}
