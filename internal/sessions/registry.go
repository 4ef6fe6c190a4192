// Package sessions owns the live authoring sessions of the service: creation,
// ownership, per-command draft persistence, resume and idle eviction.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-authoring/internal/drafts"
	"github.com/mind-engage/mindengage-authoring/internal/eventlog"
	"github.com/mind-engage/mindengage-authoring/internal/wizard"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrForbidden = errors.New("session belongs to another user")
)

// Caller is the authenticated user acting on a session. Admin callers may act
// on any session.
type Caller struct {
	Subject string
	Admin   bool
}

func (c Caller) owns(owner string) bool { return c.Admin || c.Subject == owner }

// EventSink records submission outcomes. *eventlog.Repo satisfies it.
type EventSink interface {
	Append(ctx context.Context, typ, key string, data any) error
}

// Hub receives notices and is told when a session goes away.
type Hub interface {
	wizard.Notifier
	CloseSession(sessionID string)
}

// Defaults are applied to every session the registry creates.
type Defaults struct {
	SearchDebounce time.Duration
	RedirectDelay  time.Duration
	EditPolicy     wizard.EditPolicy
	// ListingURL builds the post-submit redirect for a course when the
	// request does not name one.
	ListingURL func(courseID int) string
}

// CreateRequest opens a session. InstanceID non-zero opens an existing
// activity for editing.
type CreateRequest struct {
	Activity   wizard.ActivityType `json:"activity" validate:"omitempty,oneof=assign quiz codeeditor"`
	CourseID   int                 `json:"courseId" validate:"gte=0"`
	InstanceID int                 `json:"instanceId" validate:"gte=0"`
	SessKey    string              `json:"sesskey" validate:"required"`
	ListingURL string              `json:"listingUrl,omitempty" validate:"omitempty,uri"`
}

type entry struct {
	ss       *wizard.Session
	owner    string
	lastUsed time.Time
}

type Registry struct {
	backend  wizard.Backend
	drafts   drafts.Store
	events   EventSink
	hub      Hub
	log      *zap.Logger
	defaults Defaults
	now      func() time.Time

	mu   sync.Mutex
	live map[string]*entry
}

type Config struct {
	Backend  wizard.Backend
	Drafts   drafts.Store
	Events   EventSink
	Hub      Hub
	Logger   *zap.Logger
	Defaults Defaults
}

func NewRegistry(cfg Config) *Registry {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Drafts == nil {
		cfg.Drafts = drafts.NewMemoryStore(0)
	}
	return &Registry{
		backend:  cfg.Backend,
		drafts:   cfg.Drafts,
		events:   cfg.Events,
		hub:      cfg.Hub,
		log:      log,
		defaults: cfg.Defaults,
		now:      time.Now,
		live:     map[string]*entry{},
	}
}

func (r *Registry) options(id, sesskey string, activity wizard.ActivityType, instanceID, courseID int, listing string) wizard.Options {
	if listing == "" && r.defaults.ListingURL != nil && courseID > 0 {
		listing = r.defaults.ListingURL(courseID)
	}
	opts := wizard.Options{
		ID:             id,
		Activity:       activity,
		InstanceID:     instanceID,
		CourseID:       courseID,
		SessKey:        sesskey,
		EditPolicy:     r.defaults.EditPolicy,
		SearchDebounce: r.defaults.SearchDebounce,
		RedirectDelay:  r.defaults.RedirectDelay,
		ListingURL:     listing,
		Logger:         r.log,
	}
	if r.hub != nil {
		opts.Notifier = r.hub
	}
	return opts
}

// Create opens a new session for caller and saves its first draft.
func (r *Registry) Create(ctx context.Context, caller Caller, req CreateRequest) (*wizard.Session, error) {
	if err := wizard.Validate(req); err != nil {
		return nil, err
	}
	ss, err := wizard.New(r.backend, r.options("", req.SessKey, req.Activity, req.InstanceID, req.CourseID, req.ListingURL))
	if err != nil {
		return nil, err
	}
	if err := ss.Open(ctx); err != nil {
		// edit mode could not load the activity's items; the session stays
		// usable and the failure is already in its notices
		r.log.Warn("session opened with errors", zap.String("session", ss.ID()), zap.Error(err))
	}
	r.mu.Lock()
	r.live[ss.ID()] = &entry{ss: ss, owner: caller.Subject, lastUsed: r.now()}
	r.mu.Unlock()
	r.persist(ctx, caller.Subject, ss)
	r.log.Info("session created", zap.String("session", ss.ID()), zap.String("owner", caller.Subject),
		zap.Int("course", req.CourseID), zap.Int("instance", req.InstanceID))
	return ss, nil
}

// Get returns a live session.
func (r *Registry) Get(caller Caller, id string) (*wizard.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.live[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !caller.owns(e.owner) {
		return nil, ErrForbidden
	}
	e.lastUsed = r.now()
	return e.ss, nil
}

func (r *Registry) owner(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.live[id]; ok {
		return e.owner
	}
	return ""
}

// Dispatch applies cmd to session id and saves a draft afterwards. The view
// is returned even when the command fails.
func (r *Registry) Dispatch(ctx context.Context, caller Caller, id string, cmd wizard.Command) (wizard.View, error) {
	ss, err := r.Get(caller, id)
	if err != nil {
		return wizard.View{}, err
	}
	v, cmdErr := ss.Dispatch(ctx, cmd)
	owner := r.owner(id)

	if cmd.Name() == (wizard.Submit{}).Name() {
		r.recordSubmit(ctx, ss, v, cmdErr)
		if cmdErr == nil {
			// the activity now lives in the LMS; nothing left to resume
			if err := r.drafts.Delete(ctx, id); err != nil {
				r.log.Warn("delete draft", zap.String("session", id), zap.Error(err))
			}
			return v, nil
		}
	}
	r.persist(ctx, owner, ss)
	return v, cmdErr
}

func (r *Registry) recordSubmit(ctx context.Context, ss *wizard.Session, v wizard.View, err error) {
	if r.events == nil {
		return
	}
	var br *wizard.BackendRejected
	switch {
	case err == nil:
		data := map[string]any{
			"activity": v.Activity, "instanceId": v.InstanceID, "courseId": v.General.CourseID,
			"name": v.General.Name, "items": len(v.Items),
		}
		if v.LastSubmit != nil {
			data["message"] = v.LastSubmit.Message
			data["redirectTarget"] = v.LastSubmit.RedirectTarget
		}
		if e := r.events.Append(ctx, eventlog.TypeActivitySubmitted, ss.ID(), data); e != nil {
			r.log.Warn("record submit", zap.Error(e))
		}
	case errors.As(err, &br):
		if e := r.events.Append(ctx, eventlog.TypeSubmitRejected, ss.ID(), map[string]any{"message": br.Message}); e != nil {
			r.log.Warn("record rejection", zap.Error(e))
		}
	}
}

func (r *Registry) persist(ctx context.Context, owner string, ss *wizard.Session) {
	d := drafts.Draft{Owner: owner, Snapshot: ss.Snapshot(), UpdatedAt: r.now()}
	if err := r.drafts.Save(ctx, d); err != nil {
		r.log.Warn("save draft", zap.String("session", ss.ID()), zap.Error(err))
	}
}

// Resume brings a saved draft back as a live session. The LMS session key is
// not part of a draft and must be supplied again. A session that is still
// live is returned as is.
func (r *Registry) Resume(ctx context.Context, caller Caller, id, sesskey string) (*wizard.Session, error) {
	if ss, err := r.Get(caller, id); err == nil {
		return ss, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	d, err := r.drafts.Load(ctx, id)
	if errors.Is(err, drafts.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if !caller.owns(d.Owner) {
		return nil, ErrForbidden
	}
	snap := d.Snapshot
	ss, err := wizard.New(r.backend, r.options(snap.SessionID, sesskey, snap.Activity, snap.InstanceID, snap.General.CourseID, ""))
	if err != nil {
		return nil, err
	}
	ss.Restore(ctx, snap)

	r.mu.Lock()
	if e, ok := r.live[id]; ok {
		// lost a race with a concurrent resume
		r.mu.Unlock()
		ss.Close()
		return e.ss, nil
	}
	r.live[id] = &entry{ss: ss, owner: d.Owner, lastUsed: r.now()}
	r.mu.Unlock()
	r.log.Info("session resumed", zap.String("session", id), zap.String("owner", d.Owner))
	return ss, nil
}

// Close ends a session and discards its draft.
func (r *Registry) Close(ctx context.Context, caller Caller, id string) error {
	r.mu.Lock()
	e, ok := r.live[id]
	if ok && !caller.owns(e.owner) {
		r.mu.Unlock()
		return ErrForbidden
	}
	delete(r.live, id)
	r.mu.Unlock()

	if ok {
		e.ss.Close()
		if r.hub != nil {
			r.hub.CloseSession(id)
		}
	} else {
		d, err := r.drafts.Load(ctx, id)
		if errors.Is(err, drafts.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !caller.owns(d.Owner) {
			return ErrForbidden
		}
	}
	return r.drafts.Delete(ctx, id)
}

// Drafts lists the caller's saved sessions.
func (r *Registry) Drafts(ctx context.Context, caller Caller) ([]drafts.Summary, error) {
	return r.drafts.List(ctx, caller.Subject)
}

// Sweep closes sessions unused for longer than idle. Their drafts are kept,
// so they can be resumed. It returns how many were evicted.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)
	r.mu.Lock()
	var evicted []*entry
	for id, e := range r.live {
		if e.lastUsed.Before(cutoff) {
			evicted = append(evicted, e)
			delete(r.live, id)
		}
	}
	r.mu.Unlock()
	for _, e := range evicted {
		e.ss.Close()
		if r.hub != nil {
			r.hub.CloseSession(e.ss.ID())
		}
	}
	if len(evicted) > 0 {
		r.log.Info("idle sessions evicted", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}

// Live reports the number of sessions held in memory.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}
