// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

// Package remotes provides support code for publishing and testing remote
// objects over HTTP.
//
// A [Server] publishes each registered [Object] at a path. A GET of the path
// returns the instance descriptor of the object, including its prototype. A
// GET carrying an If-None-Match header that matches the current version of the
// object is held open for the time requested by a "Prefer: wait=N" header,
// and returns the descriptor as soon as the object changes, or 304 Not
// Modified if it does not. A POST to the path of the object with a method name
// appended calls that method with the arguments in the {"args": [...]} body
// of the request.
package remotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/creachadair/taskgroup"
	"github.com/sendanor/cloudclient"
	"go.uber.org/zap"
)

// MaxWait is the longest time a Server holds a long poll request, regardless
// of the wait the client prefers.
const MaxWait = 60 * time.Second

// A Server is an http.Handler that publishes remote objects.
type Server struct {
	log *zap.Logger

	μ       sync.RWMutex
	objects map[string]*Object // path → object

	done chan struct{}
	once sync.Once
}

// NewServer constructs a new server with no objects. If log == nil, the
// server does not log.
func NewServer(log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		log:     log,
		objects: make(map[string]*Object),
		done:    make(chan struct{}),
	}
}

// Register publishes obj at the given path and returns s to permit chaining.
// It panics if path is not absolute or is already in use.
func (s *Server) Register(path string, obj *Object) *Server {
	if !strings.HasPrefix(path, "/") {
		panic("path must begin with /: " + path)
	}
	s.μ.Lock()
	defer s.μ.Unlock()
	if _, ok := s.objects[path]; ok {
		panic("duplicate path: " + path)
	}
	s.objects[path] = obj
	return s
}

// Close releases all pending long poll requests, which respond 304 Not
// Modified, and causes later ones to respond without waiting. It does not
// otherwise affect s.
func (s *Server) Close() { s.once.Do(func() { close(s.done) }) }

func (s *Server) object(path string) *Object {
	s.μ.RLock()
	defer s.μ.RUnlock()
	return s.objects[path]
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := path.Clean(r.URL.Path)
	if obj := s.object(p); obj != nil {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			writeError(w, cloudclient.NewHTTPError(http.StatusMethodNotAllowed))
			return
		}
		s.serveObject(w, r, obj, p)
		return
	}

	dir, name := path.Split(p)
	if obj := s.object(path.Clean(dir)); obj != nil {
		m := obj.lookup(name)
		if m == nil {
			writeError(w, cloudclient.NewHTTPError(http.StatusNotFound, "no method "+strconv.Quote(name)))
			return
		} else if r.Method != http.MethodPost {
			writeError(w, cloudclient.NewHTTPError(http.StatusMethodNotAllowed))
			return
		}
		s.serveCall(w, r, obj, name, m)
		return
	}
	writeError(w, cloudclient.NewHTTPError(http.StatusNotFound))
}

func (s *Server) serveObject(w http.ResponseWriter, r *http.Request, obj *Object, p string) {
	hash, changed := obj.watch()
	if inm := etagValue(r.Header.Get("If-None-Match")); inm != "" && inm == hash {
		wait := min(preferWait(r.Header.Get("Prefer")), MaxWait)
		if wait <= 0 {
			notModified(w, hash)
			return
		}
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-changed:
			// fall through and serve the new state
		case <-t.C:
			notModified(w, hash)
			return
		case <-s.done:
			notModified(w, hash)
			return
		case <-r.Context().Done():
			return
		}
	}

	desc := obj.descriptor(requestRef(r, p))
	w.Header().Set("ETag", strconv.Quote(desc.String(cloudclient.KeyHash)))
	writeJSON(w, http.StatusOK, desc)
}

func (s *Server) serveCall(w http.ResponseWriter, r *http.Request, obj *Object, name string, m *method) {
	var body struct {
		Args []json.RawMessage `json:"args"`
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, cloudclient.NewHTTPError(http.StatusBadRequest, err.Error()))
		return
	}
	if len(strings.TrimSpace(string(data))) != 0 {
		if err := json.Unmarshal(data, &body); err != nil {
			writeError(w, cloudclient.NewHTTPError(http.StatusBadRequest, "invalid request: "+err.Error()))
			return
		}
	}

	req := &Request{Object: obj, Method: name, Args: body.Args, HTTP: r}
	result, err := m.fn(r.Context(), req)
	if err != nil {
		s.log.Debug("method failed", zap.String("method", name), zap.Error(err))
		var he *cloudclient.HTTPError
		if !errors.As(err, &he) {
			he = cloudclient.NewHTTPError(err.Error())
		}
		writeError(w, he)
		return
	}

	rsp := cloudclient.NewObject()
	if t, ok := result.(time.Time); ok {
		rsp.Set(cloudclient.KeyType, cloudclient.DateType)
		rsp.Set(cloudclient.KeyPath, "payload")
		rsp.Set("payload", t.UnixMilli())
	} else {
		rsp.Set(cloudclient.KeyPath, "payload")
		rsp.Set("payload", result)
	}
	writeJSON(w, http.StatusOK, rsp)
}

// requestRef returns the absolute URL of path p on the host addressed by r.
func requestRef(r *http.Request, p string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + p
}

// etagValue strips the quotes and weak marker from an entity tag.
func etagValue(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "W/")
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	return s
}

// preferWait parses the wait preference from a Prefer header, or returns 0.
func preferWait(h string) time.Duration {
	for _, pref := range strings.Split(h, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(pref), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "wait") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil || n < 0 {
			return 0
		}
		return time.Duration(n) * time.Second
	}
	return 0
}

func notModified(w http.ResponseWriter, hash string) {
	w.Header().Set("ETag", strconv.Quote(hash))
	w.WriteHeader(http.StatusNotModified)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		code = http.StatusInternalServerError
		data = fmt.Appendf(nil, `{"message":%q}`, "encode response: "+err.Error())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

func writeError(w http.ResponseWriter, e *cloudclient.HTTPError) {
	writeJSON(w, e.Code, map[string]string{"message": e.Message})
}

// Serve runs an HTTP server for h on lst until ctx ends, then shuts it down
// gracefully and returns. Pending long polls of a *Server are released when
// ctx ends.
func Serve(ctx context.Context, lst net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, BaseContext: func(net.Listener) context.Context { return ctx }}

	// An http.Server does not obey a context, so simulate it by shutting the
	// server down if ctx ends. The ok channel allows the context watcher to
	// clean up when we return before ctx ends.
	ok := make(chan struct{})
	defer close(ok)
	stopped := taskgroup.Go(func() error {
		select {
		case <-ctx.Done():
			if s, isServer := h.(*Server); isServer {
				s.Close()
			}
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		case <-ok:
			return nil // release the waiter
		}
	})

	err := srv.Serve(lst)
	if errors.Is(err, http.ErrServerClosed) {
		return stopped.Wait()
	}
	return err
}
