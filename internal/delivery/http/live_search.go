package http

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/realitycheck/backend/internal/domain"
	"github.com/realitycheck/backend/internal/usecase"
	"github.com/sirupsen/logrus"
)

const (
	liveWriteWait      = 10 * time.Second
	liveMaxMessageSize = 4096
)

type liveSearchResult struct {
	Token    uint64           `json:"token"`
	Query    string           `json:"query"`
	Products []domain.Product `json:"products"`
}

type liveSearchError struct {
	Token uint64 `json:"token"`
	Error string `json:"error"`
}

// LiveSearch handles GET /api/products/live. Each frame the client sends
// starts a new search and supersedes the previous one; only results for the
// newest query are written back.
func (h *Handler) LiveSearch(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already replied
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	session := &liveSession{
		conn:     conn,
		products: h.products,
		seq:      usecase.NewRequestSequencer(),
		log:      h.log.WithField("remote", c.ClientIP()),
	}
	session.run(c.Request.Context())
}

// liveSession serves one WebSocket connection
type liveSession struct {
	conn     *websocket.Conn
	products *usecase.ProductService
	seq      *usecase.RequestSequencer
	log      logrus.FieldLogger

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

func (s *liveSession) run(ctx context.Context) {
	s.conn.SetReadLimit(liveMaxMessageSize)
	s.log.Debug("live search connected")

	defer func() {
		s.seq.Stop()
		s.wg.Wait()
		s.log.Debug("live search disconnected")
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.WithError(err).Warn("live search read failed")
			}
			return
		}

		var query domain.SearchQuery
		if err := json.Unmarshal(data, &query); err != nil {
			s.write(liveSearchError{Error: "Invalid search message"})
			continue
		}

		ticket, searchCtx := s.seq.Begin(ctx)
		s.wg.Add(1)
		go s.search(searchCtx, ticket, query)
	}
}

func (s *liveSession) search(ctx context.Context, ticket usecase.Ticket, query domain.SearchQuery) {
	defer s.wg.Done()

	products, err := s.products.Search(ctx, query)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}
		s.log.WithError(err).WithField("query", query.Query).Warn("live search failed")
		s.writeLatest(ticket, liveSearchError{Token: ticket.Token(), Error: searchErrorMessage(err)})
		return
	}

	if products == nil {
		products = []domain.Product{}
	}
	s.writeLatest(ticket, liveSearchResult{Token: ticket.Token(), Query: query.Query, Products: products})
}

// writeLatest writes msg unless a newer search has started since ticket was issued
func (s *liveSession) writeLatest(ticket usecase.Ticket, msg interface{}) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !ticket.IsLatest() {
		return
	}
	s.writeLocked(msg)
}

func (s *liveSession) write(msg interface{}) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.writeLocked(msg)
}

func (s *liveSession) writeLocked(msg interface{}) {
	_ = s.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	if err := s.conn.WriteJSON(msg); err != nil {
		s.log.WithError(err).Debug("live search write failed")
	}
}

func searchErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrBackendFailure):
		return "Product service unavailable"
	case errors.Is(err, domain.ErrInvalidRequest):
		return "Invalid search"
	default:
		return "Search failed"
	}
}
