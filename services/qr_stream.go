package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/juju/errors"
)

// qrRotation is how often a fresh token is pushed; half the TTL so a
// displayed code never expires before the next one arrives.
func (s *CheckInService) qrRotation() time.Duration {
	d := s.cfg.QRTTL / 2
	if d < time.Second {
		d = time.Second
	}
	return d
}

// StreamQRTokensSSE pushes a fresh QR token for the session on every rotation
// until the client disconnects. Authorization and session lookup happen
// before the stream opens so failures get a normal error response.
func (s *CheckInService) StreamQRTokensSSE(c *fiber.Ctx, id Identity, tripID, sessionID string) error {
	first, err := s.IssueQRToken(c.UserContext(), id, tripID, sessionID)
	if err != nil {
		return errors.Trace(err)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	rotation := s.qrRotation()
	done := c.Context().Done()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(rotation)
		defer ticker.Stop()

		if err := writeQREvent(w, first); err != nil {
			return
		}
		for {
			select {
			case <-ticker.C:
				token, err := s.signQRToken(tripID, sessionID)
				if err != nil {
					log.Printf("❌ [QR_STREAM] Failed to sign token for session %s: %v", sessionID, err)
					continue
				}
				if err := writeQREvent(w, token); err != nil {
					// client went away
					return
				}
			case <-done:
				return
			}
		}
	})
	return nil
}

func writeQREvent(w *bufio.Writer, token *QRToken) error {
	payload, err := json.Marshal(token)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: qr\ndata: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}
