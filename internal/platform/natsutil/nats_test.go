package natsutil

import (
	"context"
	"testing"
)

func TestDurableName(t *testing.T) {
	if got := DurableName("search-svc", "bid-placed"); got != "search-svc-bid-placed" {
		t.Fatalf("DurableName = %q", got)
	}
}

func TestClientReady_NilConnection(t *testing.T) {
	var c *Client
	if err := c.Ready(context.Background()); err == nil {
		t.Fatal("expected nil client to be not ready")
	}
	if err := (&Client{}).Ready(context.Background()); err == nil {
		t.Fatal("expected client without connection to be not ready")
	}
}

func TestClientClose_Nil(t *testing.T) {
	var c *Client
	c.Close()
}
