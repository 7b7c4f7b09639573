package mdcd

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/strongdm/mdc/internal/catalog"
	"github.com/strongdm/mdc/internal/messages"
	"github.com/strongdm/mdc/internal/schema"
	"github.com/strongdm/mdc/internal/session"
)

type captureSender struct {
	mu   sync.Mutex
	sent []*messages.Envelope
}

func (c *captureSender) SendJSONToClient(clientID string, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, v.(*messages.Envelope))
	return nil
}

func (c *captureSender) last(t *testing.T) *messages.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		t.Fatal("nothing sent")
	}
	return c.sent[len(c.sent)-1]
}

func envelope(t *testing.T, typ, requestID string, payload any) []byte {
	t.Helper()
	env, err := messages.WrapPayload(typ, requestID, payload)
	if err != nil {
		t.Fatalf("WrapPayload: %v", err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func ackOf(t *testing.T, env *messages.Envelope) messages.AckPayload {
	t.Helper()
	if env.Type != messages.TypeAck {
		t.Fatalf("expected ack, got %s", env.Type)
	}
	var ack messages.AckPayload
	if err := messages.UnmarshalPayload(env, &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	return ack
}

func TestClientHandlerDocumentSyncAndCompletion(t *testing.T) {
	t.Parallel()
	rt, _ := newTestRuntime(t, testCatalogJSON)
	sender := &captureSender{}
	h := newClientHandler(rt.session, rt.catalog, nil, sender)

	h.handleClientMessage("c1", envelope(t, messages.TypeDocumentOpen, "1", messages.DocumentPayload{
		URI:  "file:///page.mdc",
		Text: "::alert\n---\n\n---\n::",
	}))
	if ack := ackOf(t, sender.last(t)); ack.Status != "ok" || ack.Cmd != messages.TypeDocumentOpen {
		t.Fatalf("unexpected ack %+v", ack)
	}

	h.handleClientMessage("c1", envelope(t, messages.TypeCompletion, "2", messages.CompletionPayload{
		URI:     "file:///page.mdc",
		Line:    2,
		Trigger: "\n",
	}))
	reply := sender.last(t)
	if reply.Type != messages.TypeCompletionItems || reply.RequestID != "2" {
		t.Fatalf("unexpected reply %+v", reply)
	}
	var result messages.CompletionResultPayload
	if err := messages.UnmarshalPayload(reply, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Items) != 2 || result.Items[0].Label != "icon" || result.Items[1].Label != "closable" {
		t.Fatalf("unexpected items %+v", result.Items)
	}

	h.handleClientMessage("c1", envelope(t, messages.TypeDocumentChange, "3", messages.DocumentPayload{
		URI:  "file:///page.mdc",
		Text: "::alert\n---\nicon: x\n\n---\n::",
	}))
	h.handleClientMessage("c1", envelope(t, messages.TypeCompletion, "4", messages.CompletionPayload{
		URI: "file:///page.mdc", Line: 3, Trigger: "\n",
	}))
	if err := messages.UnmarshalPayload(sender.last(t), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].Label != "closable" {
		t.Fatalf("unexpected items after change %+v", result.Items)
	}
}

func TestClientHandlerFoldCloseAndErrors(t *testing.T) {
	t.Parallel()
	rt, _ := newTestRuntime(t, testCatalogJSON)
	sender := &captureSender{}
	h := newClientHandler(rt.session, rt.catalog, nil, sender)

	batch := append(envelope(t, messages.TypeDocumentOpen, "1", messages.DocumentPayload{
		URI: "file:///f.md", Text: "::card\n::",
	}), '\n')
	batch = append(batch, envelope(t, messages.TypeFold, "2", messages.FoldPayload{URI: "file:///f.md"})...)
	h.handleClientMessage("c1", batch)

	reply := sender.last(t)
	if reply.Type != messages.TypeFoldRanges || reply.RequestID != "2" {
		t.Fatalf("unexpected reply %+v", reply)
	}
	var folded messages.FoldResultPayload
	if err := messages.UnmarshalPayload(reply, &folded); err != nil {
		t.Fatalf("decode fold: %v", err)
	}
	if len(folded.Ranges) != 1 || folded.Ranges[0].End != 1 {
		t.Fatalf("unexpected ranges %+v", folded.Ranges)
	}

	h.handleClientMessage("c1", envelope(t, messages.TypeDocumentClose, "3", messages.DocumentClosePayload{URI: "file:///f.md"}))
	if ack := ackOf(t, sender.last(t)); ack.Status != "ok" {
		t.Fatalf("close ack %+v", ack)
	}

	h.handleClientMessage("c1", envelope(t, messages.TypeFold, "4", messages.FoldPayload{URI: "file:///f.md"}))
	if ack := ackOf(t, sender.last(t)); ack.Status != "error" {
		t.Fatalf("expected error for closed document, got %+v", ack)
	}

	h.handleClientMessage("c1", envelope(t, messages.TypeDocumentOpen, "5", messages.DocumentPayload{URI: "main.go"}))
	if ack := ackOf(t, sender.last(t)); ack.Status != "ignored" {
		t.Fatalf("expected ignored ack, got %+v", ack)
	}

	h.handleClientMessage("c1", []byte("{broken"))
	if ack := ackOf(t, sender.last(t)); ack.Status != "error" || ack.Message != "invalid envelope" {
		t.Fatalf("unexpected ack %+v", ack)
	}

	h.handleClientMessage("c1", envelope(t, "bogus", "6", nil))
	if ack := ackOf(t, sender.last(t)); ack.Message != "unknown message type" {
		t.Fatalf("unexpected ack %+v", ack)
	}

	h.handleClientMessage("c1", envelope(t, messages.TypeCatalogRefresh, "7", nil))
	h.refreshes.Wait()
	if ack := ackOf(t, sender.last(t)); ack.Status != "ok" || ack.Cmd != messages.TypeCatalogRefresh {
		t.Fatalf("unexpected refresh ack %+v", ack)
	}
}

// gatedSource blocks every load until release is closed.
type gatedSource struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedSource) Load(ctx context.Context) (schema.Catalog, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return schema.Catalog{{Name: "card"}}, nil
}

func (g *gatedSource) String() string { return "gated" }

func TestClientHandlerRefreshDoesNotBlockDispatch(t *testing.T) {
	t.Parallel()
	src := &gatedSource{started: make(chan struct{}), release: make(chan struct{})}
	sess := session.New(schema.Catalog{{Name: "card"}}, session.Options{})
	sender := &captureSender{}
	h := newClientHandler(sess, catalog.NewManager(src, catalog.Options{}), nil, sender)

	h.handleClientMessage("c1", envelope(t, messages.TypeCatalogRefresh, "1", nil))
	<-src.started

	h.handleClientMessage("c1", envelope(t, messages.TypeDocumentOpen, "2", messages.DocumentPayload{
		URI: "file:///r.md", Text: "::",
	}))
	h.handleClientMessage("c1", envelope(t, messages.TypeCompletion, "3", messages.CompletionPayload{
		URI: "file:///r.md", Line: 0, Character: 2, Trigger: ":",
	}))
	if reply := sender.last(t); reply.Type != messages.TypeCompletionItems || reply.RequestID != "3" {
		t.Fatalf("completion should be answered while the refresh is loading, got %+v", reply)
	}

	close(src.release)
	h.refreshes.Wait()
	reply := sender.last(t)
	if reply.RequestID != "1" {
		t.Fatalf("expected refresh ack last, got %+v", reply)
	}
	if ack := ackOf(t, reply); ack.Status != "ok" || ack.Cmd != messages.TypeCatalogRefresh {
		t.Fatalf("unexpected refresh ack %+v", ack)
	}
}
