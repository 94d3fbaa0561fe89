package server

import (
	"context"
	"encoding/hex"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/loopfi/routerd/internal/authz"
	"github.com/loopfi/routerd/internal/router"
	"github.com/loopfi/routerd/internal/storage/history"
	"github.com/loopfi/routerd/internal/storage/tracestore"
)

// Service implements the router RPC surface.
type Service struct {
	engine  *router.Engine
	traces  *tracestore.Store
	journal history.Store
	hub     *Hub
	log     *zap.SugaredLogger

	// requireSignature rejects unsigned submissions.
	requireSignature bool
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTraceStore archives committed executions.
func WithTraceStore(ts *tracestore.Store) ServiceOption {
	return func(s *Service) { s.traces = ts }
}

// WithJournal records every execution in the relational journal.
func WithJournal(j history.Store) ServiceOption {
	return func(s *Service) { s.journal = j }
}

// WithHub publishes execution events to websocket subscribers.
func WithHub(h *Hub) ServiceOption {
	return func(s *Service) { s.hub = h }
}

// WithSignatureRequired demands a valid owner signature on every batch.
func WithSignatureRequired(required bool) ServiceOption {
	return func(s *Service) { s.requireSignature = required }
}

// NewService wires the RPC surface around an engine.
func NewService(engine *router.Engine, log *zap.SugaredLogger, opts ...ServiceOption) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Service{engine: engine, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExecuteBatch runs the batch and commits its effects.
func (s *Service) ExecuteBatch(ctx context.Context, req *ExecuteBatchRequest) (*ExecuteBatchResponse, error) {
	if len(req.Batch) == 0 {
		return nil, status.Error(codes.InvalidArgument, "empty batch")
	}
	if err := s.authenticate(req); err != nil {
		return nil, err
	}

	res, err := s.engine.Execute(ctx, req.Batch)
	s.journalize(ctx, req.Batch, res, err)
	if err != nil {
		return nil, executionStatus(err)
	}

	if s.traces != nil {
		if aerr := s.traces.Archive(ctx, req.Batch, res); aerr != nil {
			// The execution committed; losing the trace is not fatal.
			s.log.Errorw("trace archive failed", "digest", hex.EncodeToString(res.Digest[:]), "err", aerr)
		}
	}
	if s.hub != nil {
		s.hub.Publish(Event{
			Digest:     hex.EncodeToString(res.Digest[:]),
			Committed:  true,
			Cells:      len(res.Cells),
			FlashLoans: res.FlashLoans,
		})
	}

	return &ExecuteBatchResponse{
		Digest:       res.Digest[:],
		Cells:        res.Cells,
		FlashLoans:   res.FlashLoans,
		Committed:    true,
		DurationNano: res.Duration.Nanoseconds(),
	}, nil
}

// SimulateBatch runs the batch and always discards its effects.
func (s *Service) SimulateBatch(ctx context.Context, req *SimulateBatchRequest) (*ExecuteBatchResponse, error) {
	if len(req.Batch) == 0 {
		return nil, status.Error(codes.InvalidArgument, "empty batch")
	}

	res, err := s.engine.Simulate(ctx, req.Batch)
	if err != nil {
		return nil, executionStatus(err)
	}
	return &ExecuteBatchResponse{
		Digest:       res.Digest[:],
		Cells:        res.Cells,
		FlashLoans:   res.FlashLoans,
		Committed:    false,
		DurationNano: res.Duration.Nanoseconds(),
	}, nil
}

// GetExecution returns the archived trace for a digest.
func (s *Service) GetExecution(ctx context.Context, req *GetExecutionRequest) (*GetExecutionResponse, error) {
	if s.traces == nil {
		return nil, status.Error(codes.Unimplemented, "trace archive disabled")
	}
	if len(req.Digest) != 32 {
		return nil, status.Errorf(codes.InvalidArgument, "digest must be 32 bytes, got %d", len(req.Digest))
	}

	var digest [32]byte
	copy(digest[:], req.Digest)

	tr, err := s.traces.Get(ctx, digest)
	if errors.Is(err, tracestore.ErrTraceNotFound) {
		return nil, status.Error(codes.NotFound, "no execution with that digest")
	}
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return &GetExecutionResponse{
		Digest:       tr.Digest[:],
		Batch:        tr.Batch,
		Cells:        tr.Cells,
		FlashLoans:   tr.FlashLoans,
		Committed:    tr.Committed,
		DurationNano: tr.DurationNano,
		ArchivedAt:   tr.ArchivedAt,
	}, nil
}

// ListExecutions returns the most recent journal rows.
func (s *Service) ListExecutions(ctx context.Context, req *ListExecutionsRequest) (*ListExecutionsResponse, error) {
	if s.journal == nil {
		return nil, status.Error(codes.Unimplemented, "execution journal disabled")
	}
	limit := req.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	recs, err := s.journal.Recent(ctx, limit)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	resp := &ListExecutionsResponse{Executions: make([]ExecutionSummary, 0, len(recs))}
	for _, rec := range recs {
		resp.Executions = append(resp.Executions, ExecutionSummary{
			Digest:       rec.Digest,
			Committed:    rec.Committed,
			Instructions: rec.Instructions,
			FlashLoans:   rec.FlashLoans,
			DurationNano: rec.DurationNano,
			Error:        rec.Error,
			CreatedAt:    rec.CreatedAt.Unix(),
		})
	}
	return resp, nil
}

func (s *Service) authenticate(req *ExecuteBatchRequest) error {
	if len(req.Signature) == 0 && len(req.PubKey) == 0 {
		if s.requireSignature {
			return status.Error(codes.Unauthenticated, "batch signature required")
		}
		return nil
	}
	if req.Owner == "" {
		return status.Error(codes.InvalidArgument, "signed batch needs an owner")
	}
	if err := authz.VerifyBatch(req.Owner, req.PubKey, req.Signature, req.Batch); err != nil {
		return status.Error(codes.Unauthenticated, err.Error())
	}
	return nil
}

func (s *Service) journalize(ctx context.Context, batch router.Batch, res *router.Result, execErr error) {
	if s.journal == nil {
		return
	}
	digest, err := batch.Digest()
	if err != nil {
		return
	}
	rec := history.Record{
		Digest:       hex.EncodeToString(digest[:]),
		Instructions: len(batch),
	}
	if execErr != nil {
		rec.Error = execErr.Error()
	} else if res != nil {
		rec.Committed = res.Committed
		rec.FlashLoans = res.FlashLoans
		rec.DurationNano = res.Duration.Nanoseconds()
	}
	if err := s.journal.Insert(ctx, rec); err != nil {
		s.log.Errorw("journal insert failed", "digest", rec.Digest, "err", err)
	}
}

// executionStatus maps engine errors to RPC status codes. The full
// error text travels in the message so clients see the failing index.
func executionStatus(err error) error {
	var xerr *router.ExecError
	if !errors.As(err, &xerr) {
		return status.Error(codes.Internal, err.Error())
	}

	var code codes.Code
	switch xerr.Code {
	case router.CodeInvalidIndex, router.CodeTokenMismatch, router.CodeFractionTooLarge,
		router.CodeUnderflow, router.CodeMalformed:
		code = codes.InvalidArgument
	case router.CodeUnauthorized:
		code = codes.PermissionDenied
	case router.CodeInsufficientFunds, router.CodeInsufficientOutput,
		router.CodeFlashLoanUnrepaid, router.CodeFlashLoanActive:
		code = codes.FailedPrecondition
	default:
		code = codes.Aborted
	}
	return status.Error(code, err.Error())
}

// Hand-rolled service descriptor; message encoding is the cbor codec
// forced on the server.

func _Router_ExecuteBatch_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ExecuteBatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).ExecuteBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/routerd.Router/ExecuteBatch"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Service).ExecuteBatch(ctx, req.(*ExecuteBatchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Router_SimulateBatch_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SimulateBatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).SimulateBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/routerd.Router/SimulateBatch"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Service).SimulateBatch(ctx, req.(*SimulateBatchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Router_GetExecution_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetExecutionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).GetExecution(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/routerd.Router/GetExecution"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Service).GetExecution(ctx, req.(*GetExecutionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Router_ListExecutions_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListExecutionsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).ListExecutions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/routerd.Router/ListExecutions"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Service).ListExecutions(ctx, req.(*ListExecutionsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var routerServiceDesc = grpc.ServiceDesc{
	ServiceName: "routerd.Router",
	HandlerType: (*interface{})(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ExecuteBatch", Handler: _Router_ExecuteBatch_Handler},
		{MethodName: "SimulateBatch", Handler: _Router_SimulateBatch_Handler},
		{MethodName: "GetExecution", Handler: _Router_GetExecution_Handler},
		{MethodName: "ListExecutions", Handler: _Router_ListExecutions_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "routerd/router.cbor",
}
