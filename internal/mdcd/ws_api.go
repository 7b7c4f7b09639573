package mdcd

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/strongdm/mdc/internal/catalog"
	"github.com/strongdm/mdc/internal/document"
	"github.com/strongdm/mdc/internal/messages"
	"github.com/strongdm/mdc/internal/session"
	"github.com/strongdm/mdc/internal/telemetry/otel"
	websockethub "github.com/strongdm/mdc/internal/websocket"
)

type clientSender interface {
	SendJSONToClient(clientID string, v any) error
}

// clientHandler answers envelopes sent by websocket clients.
type clientHandler struct {
	session     *session.Session
	catalog     *catalog.Manager
	instruments *otel.Instruments
	sender      clientSender

	// refreshes tracks catalog reloads running off the dispatch goroutine.
	refreshes sync.WaitGroup
}

func newClientHandler(sess *session.Session, mgr *catalog.Manager, inst *otel.Instruments, sender clientSender) *clientHandler {
	return &clientHandler{session: sess, catalog: mgr, instruments: inst, sender: sender}
}

func (c *clientHandler) serve(in <-chan websockethub.ClientMessage) {
	for msg := range in {
		c.handleClientMessage(msg.ClientID, msg.Payload)
	}
	c.refreshes.Wait()
}

// handleClientMessage accepts one envelope or several newline-separated ones.
func (c *clientHandler) handleClientMessage(clientID string, payload []byte) {
	for _, raw := range bytes.Split(payload, []byte{'\n'}) {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}
		var env messages.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("event=ws.invalid_envelope client=%s error=%q", clientID, err.Error())
			c.sendAck(clientID, nil, "error", "invalid envelope")
			continue
		}
		c.dispatch(clientID, &env)
	}
}

func (c *clientHandler) dispatch(clientID string, env *messages.Envelope) {
	switch env.Type {
	case messages.TypeDocumentOpen, messages.TypeDocumentChange:
		var doc messages.DocumentPayload
		if err := messages.UnmarshalPayload(env, &doc); err != nil || doc.URI == "" {
			c.sendAck(clientID, env, "error", "invalid document payload")
			return
		}
		text := document.Text{ID: doc.URI, Content: doc.Text, LanguageID: doc.LanguageID}
		var tracked bool
		if env.Type == messages.TypeDocumentOpen {
			tracked = c.session.Open(text)
		} else {
			tracked = c.session.Change(text)
		}
		if !tracked {
			c.sendAck(clientID, env, "ignored", "not an mdc document")
			return
		}
		c.sendAck(clientID, env, "ok", "")

	case messages.TypeDocumentClose:
		var doc messages.DocumentClosePayload
		if err := messages.UnmarshalPayload(env, &doc); err != nil || doc.URI == "" {
			c.sendAck(clientID, env, "error", "invalid close payload")
			return
		}
		c.session.Close(doc.URI)
		c.sendAck(clientID, env, "ok", "")

	case messages.TypeCompletion:
		var req messages.CompletionPayload
		if err := messages.UnmarshalPayload(env, &req); err != nil {
			c.sendAck(clientID, env, "error", "invalid completion payload")
			return
		}
		items, err := complete(context.Background(), c.session, c.instruments, "ws", completeRequest{
			URI:       req.URI,
			Line:      req.Line,
			Character: req.Character,
			Trigger:   req.Trigger,
		})
		if err != nil {
			c.sendAck(clientID, env, "error", err.Error())
			return
		}
		c.reply(clientID, env, messages.TypeCompletionItems, messages.CompletionResultPayload{URI: req.URI, Items: items})

	case messages.TypeFold:
		var req messages.FoldPayload
		if err := messages.UnmarshalPayload(env, &req); err != nil {
			c.sendAck(clientID, env, "error", "invalid fold payload")
			return
		}
		ranges, err := fold(context.Background(), c.session, c.instruments, "ws", foldRequest{URI: req.URI})
		if err != nil {
			c.sendAck(clientID, env, "error", err.Error())
			return
		}
		c.reply(clientID, env, messages.TypeFoldRanges, messages.FoldResultPayload{URI: req.URI, Ranges: ranges})

	case messages.TypeCatalogRefresh:
		// A slow catalog URL must not stall completions; the ack is sent
		// once the reload finishes.
		c.refreshes.Add(1)
		go func() {
			defer c.refreshes.Done()
			if _, err := c.catalog.Get(context.Background(), true); err != nil {
				c.sendAck(clientID, env, "error", err.Error())
				return
			}
			c.sendAck(clientID, env, "ok", "")
		}()

	default:
		c.sendAck(clientID, env, "error", "unknown message type")
	}
}

func (c *clientHandler) reply(clientID string, req *messages.Envelope, typ string, payload any) {
	requestID := ""
	if req != nil {
		requestID = req.RequestID
	}
	env, err := messages.WrapPayload(typ, requestID, payload)
	if err != nil {
		log.Printf("event=ws.reply_error type=%s error=%q", typ, err.Error())
		return
	}
	if err := c.sender.SendJSONToClient(clientID, env); err != nil {
		log.Printf("event=ws.reply_error client=%s type=%s error=%q", clientID, typ, err.Error())
	}
}

func (c *clientHandler) sendAck(clientID string, req *messages.Envelope, status, message string) {
	cmd := ""
	if req != nil {
		cmd = req.Type
	}
	c.reply(clientID, req, messages.TypeAck, messages.AckPayload{Cmd: cmd, Status: status, Message: message})
}
