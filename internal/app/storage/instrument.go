package storage

import (
	"context"
	"time"
)

// CommitHook observes the outcome of every Save on an instrumented engine.
type CommitHook func(backend string, duration time.Duration, err error)

// Instrument wraps engine so that hook is called after every session Save.
func Instrument(engine Engine, hook CommitHook) Engine {
	if hook == nil {
		return engine
	}
	return &instrumented{Engine: engine, hook: hook}
}

type instrumented struct {
	Engine
	hook CommitHook
}

func (i *instrumented) Open(ctx context.Context) (Session, error) {
	sess, err := i.Engine.Open(ctx)
	if err != nil {
		return nil, err
	}
	return &instrumentedSession{Session: sess, backend: i.Name(), hook: i.hook}, nil
}

type instrumentedSession struct {
	Session
	backend string
	hook    CommitHook
}

func (s *instrumentedSession) Save(ctx context.Context) error {
	start := time.Now()
	err := s.Session.Save(ctx)
	s.hook(s.backend, time.Since(start), err)
	return err
}
