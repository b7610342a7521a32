// Package grpcserver exposes the backup repositories over a single gRPC method channel.
package grpcserver

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/sable-sync/internal/errs"
	"github.com/and161185/sable-sync/internal/model"
	"github.com/and161185/sable-sync/internal/service"
)

// Bridge method names.
const (
	MethodCheckAccountStatus     = "checkAccountStatus"
	MethodIsAvailable            = "isAvailable"
	MethodSaveJournalEntry       = "saveJournalEntry"
	MethodFetchAllJournalEntries = "fetchAllJournalEntries"
	MethodBackupJournalEntries   = "backupJournalEntries"
	MethodSaveGoal               = "saveGoal"
	MethodFetchAllGoals          = "fetchAllGoals"
	MethodBackupGoals            = "backupGoals"
	MethodSaveChatMessage        = "saveChatMessage"
	MethodFetchAllChatMessages   = "fetchAllChatMessages"
	MethodBackupChatMessages     = "backupChatMessages"
	MethodSavePreference         = "savePreference"
	MethodFetchAllPreferences    = "fetchAllPreferences"
	MethodDeleteRecord           = "deleteRecord"
)

type handler func(ctx context.Context, args *structpb.Value) (any, error)

// Server routes Invoke calls to the backup repositories.
type Server struct {
	backup  *service.Backup
	log     *zap.Logger
	methods map[string]handler
}

var _ BackupServer = (*Server)(nil)

// New constructs the bridge over backup.
func New(backup *service.Backup, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{backup: backup, log: log}
	s.methods = map[string]handler{
		MethodCheckAccountStatus: s.checkAccountStatus,
		MethodIsAvailable:        s.isAvailable,
		MethodSavePreference:     s.savePreference,
		MethodFetchAllPreferences: func(ctx context.Context, _ *structpb.Value) (any, error) {
			return s.backup.Preferences.FetchAllPreferences(ctx)
		},
		MethodDeleteRecord: s.deleteRecord,
	}
	s.entity(backup.Journal, MethodSaveJournalEntry, MethodFetchAllJournalEntries, MethodBackupJournalEntries)
	s.entity(backup.Goals, MethodSaveGoal, MethodFetchAllGoals, MethodBackupGoals)
	s.entity(backup.Chat, MethodSaveChatMessage, MethodFetchAllChatMessages, MethodBackupChatMessages)
	return s
}

// Methods lists the method names the bridge accepts.
func (s *Server) Methods() []string {
	out := make([]string, 0, len(s.methods))
	for m := range s.methods {
		out = append(out, m)
	}
	return out
}

// Invoke dispatches one method-channel call.
func (s *Server) Invoke(ctx context.Context, req *structpb.Struct) (*structpb.Value, error) {
	method := req.GetFields()["method"].GetStringValue()
	h, ok := s.methods[method]
	if !ok {
		return nil, status.Errorf(codes.Unimplemented, "method %q not implemented", method)
	}

	res, err := h(ctx, req.GetFields()["arguments"])
	if err != nil {
		s.log.Debug("bridge call failed",
			zap.String("bridge_method", method),
			zap.String("error_kind", string(errs.KindOf(err))),
		)
		return nil, toStatus(err)
	}
	out, err := ToValue(res)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode %s result: %v", method, err)
	}
	return out, nil
}

// entity registers the save, fetch-all and backup methods for repo.
func (s *Server) entity(repo *service.EntityRepository, save, fetchAll, backup string) {
	s.methods[save] = func(ctx context.Context, args *structpb.Value) (any, error) {
		p, ok := payloadOf(args)
		if !ok {
			return nil, errs.Invalid("%s: arguments must be an object", save)
		}
		return repo.SaveOne(ctx, p)
	}
	s.methods[fetchAll] = func(ctx context.Context, _ *structpb.Value) (any, error) {
		return repo.FetchAll(ctx)
	}
	s.methods[backup] = func(ctx context.Context, args *structpb.Value) (any, error) {
		ps, ok := payloadsOf(args)
		if !ok {
			return nil, errs.Invalid("%s: arguments must be a list", backup)
		}
		n, err := repo.SaveBatch(ctx, ps)
		if err != nil {
			return nil, err
		}
		return int64(n), nil
	}
}

func (s *Server) checkAccountStatus(ctx context.Context, _ *structpb.Value) (any, error) {
	st, err := s.backup.AccountStatus(ctx)
	if err != nil {
		return nil, err
	}
	return st.String(), nil
}

func (s *Server) isAvailable(ctx context.Context, _ *structpb.Value) (any, error) {
	return s.backup.IsAvailable(ctx), nil
}

func (s *Server) savePreference(ctx context.Context, args *structpb.Value) (any, error) {
	p, ok := payloadOf(args)
	if !ok {
		return nil, errs.Invalid("%s: arguments must be an object", MethodSavePreference)
	}
	key, _ := p["key"].(string)
	value, ok := p["value"].(string)
	if !ok {
		return nil, errs.Invalid("%s: value must be a string", MethodSavePreference)
	}
	return nil, s.backup.Preferences.SavePreference(ctx, key, value)
}

func (s *Server) deleteRecord(ctx context.Context, args *structpb.Value) (any, error) {
	p, ok := payloadOf(args)
	if !ok {
		return nil, errs.Invalid("%s: arguments must be an object", MethodDeleteRecord)
	}
	kind, _ := p["kind"].(string)
	id, _ := p["id"].(string)
	return nil, s.backup.DeleteRecord(ctx, model.Kind(kind), id)
}

func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}
