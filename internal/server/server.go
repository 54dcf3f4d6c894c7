// Package server exposes the completion sources to a host editor over
// Content-Length framed JSON-RPC 2.0.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/woxQAQ/completion-bridge/internal/completion"
	"github.com/woxQAQ/completion-bridge/internal/provider"
	"github.com/woxQAQ/completion-bridge/internal/workspace"
)

// Options wires the server to its collaborators.
type Options struct {
	Registry  *provider.Registry
	Documents *workspace.Store
	Editor    *Editor
}

type Server struct {
	registry *provider.Registry
	docs     *workspace.Store
	editor   *Editor
	logger   *zap.Logger

	mu       sync.Mutex
	inflight map[string]*inflightRequest
	wg       sync.WaitGroup

	shutdown atomic.Bool
}

type inflightRequest struct {
	cancel    context.CancelFunc
	cancelled atomic.Bool
}

// New creates a server. The Editor in opts must be the one the registry's
// sources were built with.
func New(opts Options, logger *zap.Logger) *Server {
	return &Server{
		registry: opts.Registry,
		docs:     opts.Documents,
		editor:   opts.Editor,
		logger:   logger.With(zap.String("component", "server")),
		inflight: make(map[string]*inflightRequest),
	}
}

// ServeStdio serves the host on stdin and stdout.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// ServeTCP accepts host connections on 127.0.0.1:port, serving one at a
// time, until ctx ends or a host sends exit.
func (s *Server) ServeTCP(ctx context.Context, port int) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves connections accepted from ln, one at a time.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.logger.Info("Listening for host connections", zap.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.logger.Info("Host connected", zap.String("remote", conn.RemoteAddr().String()))
		err = s.Serve(ctx, conn, conn)
		conn.Close()
		if err != nil {
			return err
		}
		if s.shutdown.Load() || ctx.Err() != nil {
			return nil
		}
	}
}

// Serve handles one host session on r and w until the host sends exit,
// the input ends or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn := NewConn(r, w)
	s.editor.attach(conn)
	defer func() {
		s.editor.detach(conn)
		cancel()
		s.wg.Wait()
		conn.Close()
	}()

	if c, ok := r.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { c.Close() })
		defer stop()
	}

	for {
		msg, err := conn.Read()
		if err != nil {
			var rpcErr *RPCError
			switch {
			case errors.As(err, &rpcErr):
				s.logger.Warn("Dropping malformed message", zap.Error(err))
				_ = conn.ReplyError(nil, rpcErr)
				continue
			case errors.Is(err, io.EOF), ctx.Err() != nil:
				s.logger.Info("Host disconnected")
				return nil
			default:
				return fmt.Errorf("read message: %w", err)
			}
		}

		if s.handle(ctx, conn, msg) {
			s.logger.Info("Host requested exit")
			return nil
		}
	}
}

// handle dispatches one message and reports whether the session ends.
// Messages are handled in arrival order; only completion requests and
// resolves, which wait on providers, run in the background.
func (s *Server) handle(ctx context.Context, conn *Conn, msg *Message) bool {
	if msg.Method == "" {
		// Responses are not expected from the host.
		return false
	}

	if msg.IsRequest() {
		s.handleRequest(ctx, conn, msg)
		return false
	}

	switch msg.Method {
	case MethodExit:
		return true
	case MethodCancelRequest:
		var params CancelParams
		if s.decode(msg, &params) {
			s.cancelRequest(params.ID)
		}
	case MethodResolve:
		var params ItemParams
		if s.decode(msg, &params) {
			// Selections are recorded here so a later resolve always wins
			// over an earlier one; only the provider calls run detached.
			var jobs []func(context.Context)
			for _, source := range s.registry.Sources() {
				if run := source.SelectForResolve(params.Item); run != nil {
					jobs = append(jobs, run)
				}
			}
			if len(jobs) > 0 {
				s.wg.Add(1)
				go func() {
					defer s.wg.Done()
					for _, run := range jobs {
						run(ctx)
					}
				}()
			}
		}
	case MethodDone:
		var params ItemParams
		if s.decode(msg, &params) {
			for _, source := range s.registry.Sources() {
				source.OnCompleteDone(ctx, params.Item)
			}
		}
	case MethodMenuVisible:
		var params MenuVisibleParams
		if s.decode(msg, &params) {
			s.editor.SetMenuVisible(params.Visible)
		}
	case MethodDidOpen:
		var params DidOpenParams
		if s.decode(msg, &params) {
			s.docs.Open(params.Bufnr, params.TextDocument)
		}
	case MethodDidChange:
		var params DidChangeParams
		if s.decode(msg, &params) {
			if err := s.docs.Change(params.Bufnr, params.Version, params.Text); err != nil {
				s.logger.Warn("Failed to apply document change", zap.Int("bufnr", params.Bufnr), zap.Error(err))
			}
		}
	case MethodDidClose:
		var params DidCloseParams
		if s.decode(msg, &params) {
			s.docs.Close(params.Bufnr)
		}
	default:
		s.logger.Debug("Ignoring notification", zap.String("method", msg.Method))
	}
	return false
}

func (s *Server) handleRequest(ctx context.Context, conn *Conn, msg *Message) {
	if s.shutdown.Load() {
		s.replyError(conn, msg, CodeInvalidRequest, "server is shutting down")
		return
	}

	switch msg.Method {
	case MethodShutdown:
		s.shutdown.Store(true)
		s.reply(conn, msg, nil)

	case MethodShouldTrigger:
		var params ShouldTriggerParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			s.replyError(conn, msg, CodeInvalidParams, err.Error())
			return
		}
		trigger := false
		if source, ok := s.registry.Lookup(params.LanguageID); ok {
			trigger = source.ShouldTrigger(params.Character, params.LanguageID)
		}
		s.reply(conn, msg, trigger)

	case MethodDoComplete:
		var params DoCompleteParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			s.replyError(conn, msg, CodeInvalidParams, err.Error())
			return
		}
		reqCtx, req := s.track(ctx, msg.ID)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(msg.ID)

			result := s.doComplete(reqCtx, params)
			if req.cancelled.Load() {
				s.replyError(conn, msg, CodeRequestCancelled, "request cancelled")
				return
			}
			s.reply(conn, msg, result)
		}()

	default:
		s.replyError(conn, msg, CodeMethodNotFound, fmt.Sprintf("method not found: %s", msg.Method))
	}
}

// doComplete never fails: an unknown language or a failed provider call
// yields an empty result.
func (s *Server) doComplete(ctx context.Context, params DoCompleteParams) *completion.Result {
	empty := &completion.Result{Items: []completion.VimItem{}}

	source, ok := s.registry.Lookup(params.LanguageID)
	if !ok {
		s.logger.Debug("No provider for language", zap.String("language_id", params.LanguageID))
		return empty
	}

	result, err := source.DoComplete(ctx, params.Request)
	if err != nil {
		s.logger.Debug("Completion returned no items",
			zap.String("source", source.Name()),
			zap.Error(err),
		)
		return empty
	}
	if result.Items == nil {
		result.Items = []completion.VimItem{}
	}
	return result
}

func (s *Server) track(ctx context.Context, id json.RawMessage) (context.Context, *inflightRequest) {
	reqCtx, cancel := context.WithCancel(ctx)
	req := &inflightRequest{cancel: cancel}

	s.mu.Lock()
	s.inflight[string(id)] = req
	s.mu.Unlock()

	return reqCtx, req
}

func (s *Server) untrack(id json.RawMessage) {
	s.mu.Lock()
	req, ok := s.inflight[string(id)]
	delete(s.inflight, string(id))
	s.mu.Unlock()

	if ok {
		req.cancel()
	}
}

func (s *Server) cancelRequest(id json.RawMessage) {
	s.mu.Lock()
	req, ok := s.inflight[string(id)]
	s.mu.Unlock()

	if ok {
		req.cancelled.Store(true)
		req.cancel()
	}
}

func (s *Server) decode(msg *Message, v any) bool {
	if err := json.Unmarshal(msg.Params, v); err != nil {
		s.logger.Warn("Invalid notification params",
			zap.String("method", msg.Method),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (s *Server) reply(conn *Conn, msg *Message, result any) {
	if err := conn.Reply(msg.ID, result); err != nil {
		s.logger.Warn("Failed to send response", zap.String("method", msg.Method), zap.Error(err))
	}
}

func (s *Server) replyError(conn *Conn, msg *Message, code int, message string) {
	if err := conn.ReplyError(msg.ID, &RPCError{Code: code, Message: message}); err != nil {
		s.logger.Warn("Failed to send error response", zap.String("method", msg.Method), zap.Error(err))
	}
}
