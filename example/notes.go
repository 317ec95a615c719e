// Package example is a small demo application built on the framework: an
// in-memory notes store, a keyword search and a metrics endpoint.
package example

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/freekieb7/bytegate/http"
)

const name = "github.com/freekieb7/bytegate/example"

var (
	tracer = otel.Tracer(name)
	meter  = otel.Meter(name)
)

// NoteService keeps notes in memory. Saving is deliberately slow so that a
// burst of writes saturates the worker pool.
type NoteService struct {
	saveDelay time.Duration
	created   metric.Int64Counter

	mu     sync.RWMutex
	notes  map[int]string
	nextID int
}

func NewNoteService(saveDelay time.Duration) *NoteService {
	created, err := meter.Int64Counter("bytegate.example.notes.created",
		metric.WithDescription("The number of notes saved"),
		metric.WithUnit("{note}"))
	if err != nil {
		panic(err)
	}

	return &NoteService{
		saveDelay: saveDelay,
		created:   created,
		notes:     make(map[int]string),
		nextID:    1,
	}
}

// Save stores content after the configured delay and returns its id.
func (s *NoteService) Save(ctx context.Context, content string) (int, error) {
	ctx, span := tracer.Start(ctx, "notes.save")
	defer span.End()

	if s.saveDelay > 0 {
		timer := time.NewTimer(s.saveDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.notes[id] = content
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("note.id", id))
	s.created.Add(ctx, 1)
	return id, nil
}

func (s *NoteService) FindByID(id int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	note, ok := s.notes[id]
	return note, ok
}

// NoteController exposes NoteService over HTTP.
type NoteController struct {
	notes *NoteService
}

func NewNoteController(notes *NoteService) *NoteController {
	return &NoteController{notes: notes}
}

func (c *NoteController) Routes() []http.Endpoint {
	return []http.Endpoint{
		{Method: "GET", Path: "/api/notes/{id}", Handler: c.Get},
		{Method: "POST", Path: "/api/notes", Handler: c.Create},
	}
}

func (c *NoteController) Get(req *http.Request) *http.Response {
	raw, _ := req.PathParam("id")

	id, err := strconv.Atoi(raw)
	if err != nil {
		return http.BadRequest("Invalid note id: " + raw)
	}

	note, ok := c.notes.FindByID(id)
	if !ok {
		return http.NotFound("Note not found with id: " + strconv.Itoa(id))
	}
	return http.OK(note)
}

func (c *NoteController) Create(req *http.Request) *http.Response {
	content := string(req.Body())
	if strings.TrimSpace(content) == "" {
		return http.BadRequest("Note content cannot be empty")
	}

	id, err := c.notes.Save(req.Context(), content)
	if err != nil {
		return http.InternalServerError()
	}
	return http.OK("Note created with id: " + strconv.Itoa(id))
}
