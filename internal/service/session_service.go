package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/futbolpi/harmonic-realm-sub000/internal/cache"
	"github.com/futbolpi/harmonic-realm-sub000/internal/game"
	"github.com/futbolpi/harmonic-realm-sub000/internal/geo"
	"github.com/futbolpi/harmonic-realm-sub000/internal/model"
	"github.com/futbolpi/harmonic-realm-sub000/internal/repository"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrNoActiveSession  = errors.New("session is not active")
	ErrSessionExists    = errors.New("an active session already exists for this node")
	ErrNotSessionOwner  = errors.New("session belongs to another miner")
	ErrOutOfRange       = errors.New("too far from the node")
	ErrLockInNotElapsed = errors.New("lock-in duration has not elapsed")
	ErrStaleLocation    = errors.New("location reading is too old")
)

// NotEligibleError reports which derived state blocked a session start.
type NotEligibleError struct {
	State model.MiningState
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("not eligible to mine: %s", e.State)
}

// SessionService owns the mining session lifecycle: eligibility derivation,
// the start gate, and the finalize pipeline. It is the server-authoritative
// half of the session engine; the ws runner drives its Finalize through a
// game.CompletionCoordinator.
type SessionService struct {
	nodeSvc       *NodeService
	sessionRepo   repository.SessionRepo
	sessionCache  cache.SessionCache
	echoCache     cache.EchoCache
	leaderboard   cache.LeaderboardCache
	occupancy     cache.OccupancyCache
	chamber       ChamberBonusProvider
	broadcaster   Broadcaster
	allowedDistM  float64
	maxSampleAge  time.Duration
	now           func() time.Time
}

// NewSessionService creates a new session service
func NewSessionService(
	nodeSvc *NodeService,
	sessionRepo repository.SessionRepo,
	sessionCache cache.SessionCache,
	echoCache cache.EchoCache,
	leaderboard cache.LeaderboardCache,
	occupancy cache.OccupancyCache,
	chamber ChamberBonusProvider,
	allowedDistM float64,
	maxSampleAge time.Duration,
) *SessionService {
	return &SessionService{
		nodeSvc:      nodeSvc,
		sessionRepo:  sessionRepo,
		sessionCache: sessionCache,
		echoCache:    echoCache,
		leaderboard:  leaderboard,
		occupancy:    occupancy,
		chamber:      chamber,
		allowedDistM: allowedDistM,
		maxSampleAge: maxSampleAge,
		now:          time.Now,
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events
func (s *SessionService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// AllowedDistanceMeters returns the geofence radius.
func (s *SessionService) AllowedDistanceMeters() float64 {
	return s.allowedDistM
}

// MaxSampleAge returns the freshness window for geofence samples.
func (s *SessionService) MaxSampleAge() time.Duration {
	return s.maxSampleAge
}

// Node returns the node a session runs against.
func (s *SessionService) Node(ctx context.Context, nodeID string) (*model.Node, error) {
	return s.nodeSvc.GetNode(ctx, nodeID)
}

// StateFor derives the caller's MiningState for a node. location may be nil
// (the caller has no reading), which derives NoLocation.
func (s *SessionService) StateFor(ctx context.Context, userID, nodeID string, location *model.LatLng) (model.MiningState, *model.Node, error) {
	node, err := s.nodeSvc.GetNode(ctx, nodeID)
	if err != nil {
		return "", nil, err
	}

	existing, err := s.sessionRepo.GetLatestByUserAndNode(ctx, userID, nodeID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load session history: %w", err)
	}

	completed, err := s.nodeSvc.CompletedMinerCount(ctx, nodeID)
	if err != nil {
		return "", nil, err
	}

	state := game.Evaluate(game.EligibilityInput{
		UserLocation:        location,
		Node:                node,
		AllowedDistanceM:    s.allowedDistM,
		ExistingSession:     existing,
		CompletedMinerCount: completed,
	})
	return state, node, nil
}

// Start begins a mining session. The caller must be Eligible right now; the
// lock-in snapshot is taken here, shortened if an echo transmission buff is
// burning. The partial unique index backs up the eligibility check under
// concurrent starts.
func (s *SessionService) Start(ctx context.Context, userID, nodeID string, sample model.GeofenceSample) (*model.MiningSession, error) {
	if err := geo.Validate(sample.LatLng()); err != nil {
		return nil, err
	}
	if !sample.Fresh(s.now(), s.maxSampleAge) {
		return nil, ErrStaleLocation
	}

	loc := sample.LatLng()
	state, node, err := s.StateFor(ctx, userID, nodeID, &loc)
	if err != nil {
		return nil, err
	}
	if !state.CanStart() {
		return nil, &NotEligibleError{State: state}
	}

	// Peek now, burn after the insert succeeds. A failed insert must leave
	// the buff intact.
	lockIn := float64(node.Type.LockInMinutes)
	echoApplied := false
	if multiplier, ok, err := s.echoCache.Peek(ctx, userID); err != nil {
		log.Printf("echo buff lookup failed for %s: %v", userID, err)
	} else if ok {
		lockIn *= multiplier
		echoApplied = true
	}

	session := &model.MiningSession{
		ID:                      "s_" + uuid.New().String()[:8],
		NodeID:                  nodeID,
		UserID:                  userID,
		Status:                  model.SessionActive,
		StartedAt:               s.now(),
		LockInMinutes:           lockIn,
		EchoTransmissionApplied: echoApplied,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrSessionExists
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if echoApplied {
		if _, _, err := s.echoCache.Consume(ctx, userID); err != nil {
			log.Printf("session %s: failed to burn echo buff for %s: %v", session.ID, userID, err)
		}
	}

	_ = s.sessionCache.Set(ctx, session)
	log.Printf("session %s started: user=%s node=%s lockIn=%.2fm echo=%v",
		session.ID, userID, nodeID, lockIn, echoApplied)
	return session, nil
}

// Get returns a session snapshot, owner only.
func (s *SessionService) Get(ctx context.Context, sessionID, userID string) (*model.MiningSession, error) {
	session, err := s.sessionCache.Get(ctx, sessionID)
	if err != nil || session == nil {
		session, err = s.sessionRepo.GetByID(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get session: %w", err)
		}
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.UserID != userID {
		return nil, ErrNotSessionOwner
	}
	return session, nil
}

// Finalize converts a completed lock-in into a reward. It implements
// game.Finalizer. The ACTIVE->COMPLETED transition is a conditional update,
// so concurrent attempts (two devices, timer plus manual) resolve to exactly
// one reward; losers get ErrNoActiveSession and the session is unchanged on
// any failure.
func (s *SessionService) Finalize(ctx context.Context, sessionID, userID string, location *model.LatLng) (*model.CompletionResult, error) {
	if userID == "" {
		return nil, game.ErrUnauthorized
	}
	if location == nil {
		return nil, game.ErrMissingLocation
	}
	if err := geo.Validate(*location); err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.UserID != userID {
		return nil, ErrNotSessionOwner
	}
	if session.Status != model.SessionActive {
		return nil, ErrNoActiveSession
	}

	node, err := s.nodeSvc.GetNode(ctx, session.NodeID)
	if err != nil {
		return nil, err
	}

	// Distance is re-checked against the *current* location, not the one at
	// start. Out of range leaves the session ACTIVE for a later attempt.
	dist, err := geo.DistanceMeters(*location, node.Location)
	if err != nil {
		return nil, err
	}
	if dist > s.allowedDistM {
		return nil, ErrOutOfRange
	}

	// Pauses only stretch wall time, so a countdown that truly reached zero
	// always satisfies this.
	if s.now().Sub(session.StartedAt) < session.LockInDuration() {
		return nil, ErrLockInNotElapsed
	}

	bonus := s.chamber.BonusFor(ctx, userID)
	shares := game.ResolveShares(session, node.Type.BaseYieldPerMinute, bonus)

	completedAt := s.now()
	updated, err := s.sessionRepo.CompleteActive(ctx, sessionID, shares, completedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to complete session: %w", err)
	}
	if updated == nil {
		// Another device or request won the transition.
		return nil, ErrNoActiveSession
	}

	if err := s.nodeSvc.nodeRepo.IncrementCompletedSessions(ctx, node.ID); err != nil {
		log.Printf("session %s: failed to bump node counter: %v", sessionID, err)
	}
	_ = s.occupancy.Increment(ctx, node.ID)
	_ = s.nodeSvc.nodeCache.Delete(ctx, node.ID)
	_ = s.sessionCache.Set(ctx, updated)
	if err := s.leaderboard.AddShares(ctx, userID, shares); err != nil {
		log.Printf("session %s: failed to update leaderboard: %v", sessionID, err)
	}

	result := &model.CompletionResult{
		SessionID:         updated.ID,
		NodeID:            node.ID,
		MinerSharesEarned: updated.MinerSharesEarned,
		ChamberBonus:      bonus,
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToNodeWatchers(node.ID, "session_completed", map[string]interface{}{
			"nodeId":    node.ID,
			"sessionId": updated.ID,
		})
	}

	log.Printf("session %s completed: user=%s shares=%.4f boost=%v",
		sessionID, userID, shares, bonus.HasBoost)
	return result, nil
}

// Cancel transitions an ACTIVE session to CANCELLED. Cancellation is
// server-authoritative; abandoning a countdown view never cancels.
func (s *SessionService) Cancel(ctx context.Context, sessionID, userID string) (*model.MiningSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.UserID != userID {
		return nil, ErrNotSessionOwner
	}

	cancelled, err := s.sessionRepo.CancelActive(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel session: %w", err)
	}
	if cancelled == nil {
		return nil, ErrNoActiveSession
	}

	_ = s.sessionCache.Set(ctx, cancelled)
	log.Printf("session %s cancelled: user=%s", sessionID, userID)
	return cancelled, nil
}
