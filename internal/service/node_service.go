package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/futbolpi/harmonic-realm-sub000/internal/cache"
	"github.com/futbolpi/harmonic-realm-sub000/internal/game"
	"github.com/futbolpi/harmonic-realm-sub000/internal/model"
	"github.com/futbolpi/harmonic-realm-sub000/internal/repository"
)

var ErrNodeNotFound = errors.New("node not found")

// NodeService handles catalog reads and node administration
type NodeService struct {
	nodeRepo       repository.NodeRepo
	sessionRepo    repository.SessionRepo
	nodeCache      cache.NodeCache
	occupancyCache cache.OccupancyCache
	broadcaster    Broadcaster
}

// NewNodeService creates a new node service
func NewNodeService(
	nodeRepo repository.NodeRepo,
	sessionRepo repository.SessionRepo,
	nodeCache cache.NodeCache,
	occupancyCache cache.OccupancyCache,
) *NodeService {
	return &NodeService{
		nodeRepo:       nodeRepo,
		sessionRepo:    sessionRepo,
		nodeCache:      nodeCache,
		occupancyCache: occupancyCache,
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events
func (s *NodeService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// CreateNode inserts a new node into the catalog
func (s *NodeService) CreateNode(ctx context.Context, node *model.Node) (*model.Node, error) {
	if node.ID == "" {
		node.ID = "n_" + uuid.New().String()[:8]
	}
	node.CreatedAt = time.Now()

	if err := s.nodeRepo.Create(ctx, node); err != nil {
		return nil, fmt.Errorf("failed to create node: %w", err)
	}
	return node, nil
}

// GetNode retrieves a node, cache first
func (s *NodeService) GetNode(ctx context.Context, id string) (*model.Node, error) {
	node, err := s.nodeCache.Get(ctx, id)
	if err == nil && node != nil {
		return node, nil
	}

	node, err = s.nodeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	if node == nil {
		return nil, ErrNodeNotFound
	}

	if err := s.nodeCache.Set(ctx, node); err == nil {
		_ = s.occupancyCache.Set(ctx, node.ID, node.CompletedSessionCount)
	}
	return node, nil
}

// ListNodes returns the catalog
func (s *NodeService) ListNodes(ctx context.Context, openOnly bool) ([]*model.Node, error) {
	return s.nodeRepo.List(ctx, openOnly)
}

// EstimateYield returns the pre-session yield estimate for a node
func (s *NodeService) EstimateYield(node *model.Node) float64 {
	return game.EstimateYield(node)
}

// CompletedMinerCount returns the node's completed-session count, cache first
func (s *NodeService) CompletedMinerCount(ctx context.Context, nodeID string) (int, error) {
	count, found, err := s.occupancyCache.Get(ctx, nodeID)
	if err == nil && found {
		return count, nil
	}

	count, err = s.sessionRepo.CountCompletedByNode(ctx, nodeID)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed sessions: %w", err)
	}
	_ = s.occupancyCache.Set(ctx, nodeID, count)
	return count, nil
}

// SetOpen opens or closes a node for mining
func (s *NodeService) SetOpen(ctx context.Context, nodeID string, open bool) error {
	node, err := s.nodeRepo.GetByID(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("failed to get node: %w", err)
	}
	if node == nil {
		return ErrNodeNotFound
	}

	if err := s.nodeRepo.SetOpen(ctx, nodeID, open); err != nil {
		return fmt.Errorf("failed to update node: %w", err)
	}
	_ = s.nodeCache.Delete(ctx, nodeID)

	if s.broadcaster != nil {
		status := "closed"
		if open {
			status = "open"
		}
		s.broadcaster.BroadcastToNodeWatchers(nodeID, "node_status", map[string]string{
			"nodeId": nodeID,
			"status": status,
		})
	}
	return nil
}
