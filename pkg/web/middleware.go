package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-persona/pkg/session"
)

// Locals keys.
const (
	localRequestID = "request_id"
	localSession   = "session"
)

// requestID stamps every request with an id, reusing the client's when sent.
func requestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(HeaderRequestID, id)
		c.Locals(localRequestID, id)
		return c.Next()
	}
}

func requestIDOf(c *fiber.Ctx) string {
	id, _ := c.Locals(localRequestID).(string)
	return id
}

// withSession resolves the caller's session and echoes its id.
func (s *Server) withSession(c *fiber.Ctx) error {
	sess := s.sessions.Get(c.Get(HeaderSessionID))
	c.Set(HeaderSessionID, sess.ID)
	c.Locals(localSession, sess)
	return c.Next()
}

func sessionOf(c *fiber.Ctx) *session.Session {
	sess, _ := c.Locals(localSession).(*session.Session)
	return sess
}
