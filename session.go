package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tonimelisma/classroom-go/internal/auth"
	"github.com/tonimelisma/classroom-go/internal/classroom"
	"github.com/tonimelisma/classroom-go/internal/content"
	"github.com/tonimelisma/classroom-go/internal/course"
)

// errNoCourse is returned by commands that act on a course when none was
// selected by flag, environment, or config.
var errNoCourse = errors.New("no course selected: pass --course, set CLASSROOM_GO_COURSE, or set [classroom] default_course")

// openBrowser launches the consent page. Tests replace it.
var openBrowser = auth.OpenBrowser

// Session holds an authenticated Classroom client and the course resolver
// built on it. A session is bound to one credential; it is built once per
// command.
type Session struct {
	Store   *auth.Store
	Client  *classroom.Client
	Courses *course.Resolver

	cc *CLIContext
}

// authStore returns the token store described by the config.
func (cc *CLIContext) authStore() *auth.Store {
	return auth.NewStore(auth.Options{
		TokenPath:  cc.Cfg.Auth.TokenPath,
		SecretPath: cc.Cfg.Auth.SecretPath,
		Margin:     cc.Cfg.Auth.MarginDuration(),
		OpenURL:    openBrowser,
		Prompt:     cc.Err,
		Logger:     cc.Logger,
	})
}

// session acquires a credential and builds the Classroom client from it.
// Acquiring may refresh the token or run the browser flow.
func (cc *CLIContext) session(ctx context.Context) (*Session, error) {
	store := cc.authStore()

	cred, err := store.Acquire(ctx)
	if err != nil {
		return nil, authError(err)
	}

	return cc.sessionFor(store, cred), nil
}

func (cc *CLIContext) sessionFor(store *auth.Store, cred *auth.Credential) *Session {
	httpClient := &http.Client{Timeout: cc.Cfg.Network.TimeoutDuration()}
	client := classroom.NewClient(cc.Cfg.Classroom.BaseURL, httpClient, cred, cc.Logger, cc.Cfg.Network.UserAgent)

	return &Session{
		Store:   store,
		Client:  client,
		Courses: course.NewResolver(client, cc.Logger),
		cc:      cc,
	}
}

// currentCourse lists courses and resolves the selected course reference.
func (s *Session) currentCourse(ctx context.Context) (classroom.Course, error) {
	ref := s.cc.Cfg.Course
	if ref == "" {
		return classroom.Course{}, errNoCourse
	}

	if err := s.Courses.Load(ctx); err != nil {
		return classroom.Course{}, err
	}

	return s.Courses.Require(ref)
}

// content returns a content manager on the session's client.
func (s *Session) content() *content.Manager {
	return content.NewManager(s.Client, s.cc.Logger)
}

// authError turns auth failures into messages that say what to do.
func authError(err error) error {
	if errors.Is(err, auth.ErrAuthConfig) {
		return fmt.Errorf("%w (download an OAuth client secret and set [auth] secret_path)", err)
	}

	return err
}
