package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dshills/docqa/internal/generator"
	"github.com/dshills/docqa/internal/metrics"
	"github.com/dshills/docqa/internal/reranker"
	"github.com/dshills/docqa/internal/searcher"
	"github.com/dshills/docqa/internal/session"
	"github.com/dshills/docqa/pkg/types"
)

// Defaults for Config
const (
	DefaultTopK             = 6
	DefaultRerankCandidates = 20
	DefaultRerankTopN       = 5
	DefaultMaxHistory       = 50
)

// ErrEmptyMessage is returned for a blank user message
var ErrEmptyMessage = errors.New("empty message")

// Searcher runs hybrid retrieval
type Searcher interface {
	Search(ctx context.Context, req searcher.SearchRequest) (*searcher.SearchResponse, error)
}

// Reranker reorders candidates
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []types.SearchResult, n int) (*reranker.Result, error)
}

// Config tunes retrieval and history
type Config struct {
	Scope            string // collection scope searched by every reply
	Organization     string
	Mode             searcher.Mode
	TopK             int
	RerankCandidates int
	RerankTopN       int
	MaxHistory       int
}

func (c *Config) applyDefaults() {
	if c.Organization == "" {
		c.Organization = DefaultOrganization
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.RerankCandidates <= 0 {
		c.RerankCandidates = DefaultRerankCandidates
	}
	if c.RerankTopN <= 0 {
		c.RerankTopN = DefaultRerankTopN
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = DefaultMaxHistory
	}
}

// Service answers chat messages from the indexed documents
type Service struct {
	sessions  session.Store
	searcher  Searcher
	reranker  Reranker
	generator generator.Generator
	cfg       Config
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithReranker enables reranking of retrieved candidates
func WithReranker(r Reranker) Option {
	return func(s *Service) { s.reranker = r }
}

// WithMetrics records reply counts
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Service. gen may be nil, in which case answers are
// extractive.
func New(sessions session.Store, srch Searcher, gen generator.Generator, cfg Config, opts ...Option) *Service {
	cfg.applyDefaults()
	if gen == nil {
		gen = generator.Disabled{}
	}
	s := &Service{
		sessions:  sessions,
		searcher:  srch,
		generator: gen,
		cfg:       cfg,
		logger:    slog.Default().With("component", "chat"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReplyRequest is one user message
type ReplyRequest struct {
	SessionID string
	Message   string
	Document  string // explicitly selected document, optional
}

// Reply is the bot's answer and the session state after it
type Reply struct {
	SessionID    string
	SessionName  string
	Answer       string
	Focus        string
	Intent       Intent
	Sources      []types.SearchResult
	Degradations []string
}

// RetrieveRequest asks for context without generating an answer
type RetrieveRequest struct {
	Query    string
	Document string
	Focus    string
}

// Retrieval is the ranked context for a question
type Retrieval struct {
	Results      []types.SearchResult
	Filters      types.Filters
	Focus        string
	Degradations []string
}

// Reply answers a message within its session, creating the session if
// needed. Only an exhausted retrieval or an unreachable session store is an
// error.
func (s *Service) Reply(ctx context.Context, req ReplyRequest) (*Reply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	sess, _, err := session.GetOrCreate(ctx, s.sessions, req.SessionID)
	if err != nil {
		return nil, err
	}

	reply := &Reply{SessionID: sess.ID, SessionName: sess.Name}

	if intent, ok := DetectTrivial(message); ok {
		reply.Intent = intent
		if intent == IntentGreeting {
			reply.Answer = greetingAnswer(s.cfg.Organization)
		} else {
			reply.Answer = identityAnswer(s.cfg.Organization)
		}
	} else {
		retrieval, err := s.Retrieve(ctx, RetrieveRequest{Query: message, Document: req.Document, Focus: sess.CurrentFocus})
		if err != nil {
			return nil, err
		}
		sess.CurrentFocus = retrieval.Focus
		reply.Sources = retrieval.Results
		reply.Degradations = retrieval.Degradations
		s.answer(ctx, message, reply)
	}

	sess.Append(s.cfg.MaxHistory,
		session.Turn{Role: session.RoleUser, Message: message, At: time.Now()},
		session.Turn{Role: session.RoleBot, Message: reply.Answer, At: time.Now()},
	)
	if err := s.sessions.Put(ctx, sess); err != nil {
		s.logger.Error("failed to save session", "session", sess.ID, "err", err)
		reply.Degradations = append(reply.Degradations, "session: not saved")
	}

	reply.Focus = sess.CurrentFocus
	s.metrics.ChatReply(string(reply.Intent))
	return reply, nil
}

// answer fills reply.Answer from its sources
func (s *Service) answer(ctx context.Context, question string, reply *Reply) {
	if len(reply.Sources) == 0 {
		reply.Intent = IntentNoResults
		reply.Answer = NoInformationAnswer
		return
	}

	out, err := s.generator.Complete(ctx, generator.Request{
		System:      systemPrompt(s.cfg.Organization),
		Prompt:      answerPrompt(s.cfg.Organization, question, BuildContext(reply.Sources)),
		MaxTokens:   answerMaxTokens,
		Temperature: answerTemperature,
	})
	switch {
	case err == nil:
		reply.Intent = IntentAnswer
		reply.Answer = out
		return
	case errors.Is(err, generator.ErrDisabled):
	default:
		s.logger.Warn("answer generation failed, replying with fragments", "err", err)
		s.metrics.Degradation("generate")
		reply.Degradations = append(reply.Degradations, "generate: "+err.Error())
	}
	reply.Intent = IntentExtractive
	reply.Answer = extractiveAnswer(reply.Sources)
}

// Retrieve runs search and the optional rerank, and computes the focus the
// session should carry afterwards
func (s *Service) Retrieve(ctx context.Context, req RetrieveRequest) (*Retrieval, error) {
	topK := s.cfg.TopK
	if s.reranker != nil {
		topK = s.cfg.RerankCandidates
	}

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Scope:    s.cfg.Scope,
		Query:    req.Query,
		TopK:     topK,
		Document: req.Document,
		Focus:    req.Focus,
		Mode:     s.cfg.Mode,
		UseCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	out := &Retrieval{
		Results:      resp.Results,
		Filters:      resp.Filters,
		Focus:        req.Focus,
		Degradations: append([]string(nil), resp.Degradations...),
	}

	if s.reranker != nil && len(out.Results) > 0 {
		reranked, err := s.reranker.Rerank(ctx, req.Query, out.Results, s.cfg.RerankTopN)
		switch {
		case err != nil:
			s.logger.Warn("rerank failed, keeping retrieval order", "err", err)
			out.Degradations = append(out.Degradations, "rerank: "+err.Error())
			out.Results = truncate(out.Results, s.cfg.RerankTopN)
		case reranked.Degraded():
			out.Degradations = append(out.Degradations, "rerank: "+reranked.Reason)
			out.Results = reranked.Results
		default:
			out.Results = reranked.Results
		}
	}

	// The focus follows an explicit document, or is re-inferred when no
	// document filter constrained the results.
	if req.Document != "" || resp.Filters.Document == "" {
		out.Focus = session.NextFocus(req.Focus, req.Document, out.Results)
	}

	return out, nil
}

func truncate(results []types.SearchResult, n int) []types.SearchResult {
	if n > 0 && len(results) > n {
		return results[:n]
	}
	return results
}
