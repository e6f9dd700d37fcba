package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"textbook-rag-be/internal/dto"
	"textbook-rag-be/internal/pkg/logger"
	"textbook-rag-be/pkg/vectorindex"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IAdminService interface {
	// Reindex queues an ingestion job. Dir must stay inside the docs root.
	Reindex(ctx context.Context, req dto.ReindexRequest) (*dto.ReindexResponse, error)
	IndexInfo(ctx context.Context) (*dto.IndexInfoResponse, error)
	Cleanup(ctx context.Context, req dto.CleanupRequest) (*dto.CleanupResponse, error)
}

type adminService struct {
	publisher     message.Publisher
	topic         string
	index         vectorindex.Index
	backend       string
	conversations IConversationService
	docsDir       string
	retention     time.Duration
	logger        logger.ILogger
}

func NewAdminService(
	publisher message.Publisher,
	topic string,
	index vectorindex.Index,
	backend string,
	conversations IConversationService,
	docsDir string,
	retention time.Duration,
	log logger.ILogger,
) IAdminService {
	return &adminService{
		publisher:     publisher,
		topic:         topic,
		index:         index,
		backend:       backend,
		conversations: conversations,
		docsDir:       docsDir,
		retention:     retention,
		logger:        log,
	}
}

func (s *adminService) Reindex(ctx context.Context, req dto.ReindexRequest) (*dto.ReindexResponse, error) {
	dir, err := s.resolveDir(req.Dir)
	if err != nil {
		return nil, err
	}

	if err := PublishIngestJob(s.publisher, s.topic, IngestJob{Dir: dir, Recreate: req.Recreate}); err != nil {
		return nil, fmt.Errorf("failed to queue ingest job: %w", err)
	}

	s.logger.Info("INGEST", "Ingest job queued", map[string]interface{}{"dir": dir, "recreate": req.Recreate})
	return &dto.ReindexResponse{Queued: true, Dir: dir, Recreate: req.Recreate}, nil
}

func (s *adminService) resolveDir(requested string) (string, error) {
	if requested == "" {
		return s.docsDir, nil
	}

	root, err := filepath.Abs(s.docsDir)
	if err != nil {
		return "", err
	}
	dir, err := filepath.Abs(filepath.Join(s.docsDir, requested))
	if err != nil {
		return "", err
	}
	if dir != root && !strings.HasPrefix(dir, root+string(filepath.Separator)) {
		return "", &ValidationError{Field: "dir", Message: "Directory must be inside the docs directory"}
	}
	return dir, nil
}

func (s *adminService) IndexInfo(ctx context.Context) (*dto.IndexInfoResponse, error) {
	info, err := s.index.Info(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.IndexInfoResponse{CollectionInfo: info, Backend: s.backend}, nil
}

func (s *adminService) Cleanup(ctx context.Context, req dto.CleanupRequest) (*dto.CleanupResponse, error) {
	olderThan := s.retention
	if req.Days > 0 {
		olderThan = time.Duration(req.Days) * 24 * time.Hour
	}

	deleted, err := s.conversations.CleanupInactive(ctx, olderThan)
	if err != nil {
		return nil, err
	}
	return &dto.CleanupResponse{Deleted: deleted, Days: int(olderThan / (24 * time.Hour))}, nil
}
