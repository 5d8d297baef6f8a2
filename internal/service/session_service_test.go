package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/futbolpi/harmonic-realm-sub000/internal/cache"
	"github.com/futbolpi/harmonic-realm-sub000/internal/model"
)

type fakeNodeRepo struct {
	mu    sync.Mutex
	nodes map[string]*model.Node
}

func newFakeNodeRepo(nodes ...*model.Node) *fakeNodeRepo {
	r := &fakeNodeRepo{nodes: make(map[string]*model.Node)}
	for _, n := range nodes {
		copied := *n
		r.nodes[n.ID] = &copied
	}
	return r
}

func (r *fakeNodeRepo) Create(ctx context.Context, node *model.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *node
	r.nodes[node.ID] = &copied
	return nil
}

func (r *fakeNodeRepo) GetByID(ctx context.Context, id string) (*model.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	node, ok := r.nodes[id]
	if !ok {
		return nil, nil
	}
	copied := *node
	return &copied, nil
}

func (r *fakeNodeRepo) List(ctx context.Context, openOnly bool) ([]*model.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Node
	for _, n := range r.nodes {
		if openOnly && !n.OpenForMining {
			continue
		}
		copied := *n
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeNodeRepo) SetOpen(ctx context.Context, id string, open bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[id]; ok {
		n.OpenForMining = open
	}
	return nil
}

func (r *fakeNodeRepo) IncrementCompletedSessions(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[id]; ok {
		n.CompletedSessionCount++
	}
	return nil
}

type fakeSessionRepo struct {
	mu        sync.Mutex
	sessions  map[string]*model.MiningSession
	createErr error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*model.MiningSession)}
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *model.MiningSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, id string) (*model.MiningSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSessionRepo) GetLatestByUserAndNode(ctx context.Context, userID, nodeID string) (*model.MiningSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *model.MiningSession
	for _, s := range r.sessions {
		if s.UserID != userID || s.NodeID != nodeID {
			continue
		}
		if latest == nil || s.StartedAt.After(latest.StartedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (r *fakeSessionRepo) CompleteActive(ctx context.Context, id string, shares float64, completedAt time.Time) (*model.MiningSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Status != model.SessionActive {
		return nil, nil
	}
	s.Status = model.SessionCompleted
	s.MinerSharesEarned = shares
	s.CompletedAt = &completedAt
	copied := *s
	return &copied, nil
}

func (r *fakeSessionRepo) CancelActive(ctx context.Context, id string) (*model.MiningSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Status != model.SessionActive {
		return nil, nil
	}
	s.Status = model.SessionCancelled
	copied := *s
	return &copied, nil
}

func (r *fakeSessionRepo) CountCompletedByNode(ctx context.Context, nodeID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, s := range r.sessions {
		if s.NodeID == nodeID && s.Status == model.SessionCompleted {
			count++
		}
	}
	return count, nil
}

func (r *fakeSessionRepo) EnsureIndexes(ctx context.Context) error { return nil }

type fakeNodeCache struct{}

func (fakeNodeCache) Set(ctx context.Context, node *model.Node) error         { return nil }
func (fakeNodeCache) Get(ctx context.Context, id string) (*model.Node, error) { return nil, nil }
func (fakeNodeCache) Delete(ctx context.Context, id string) error             { return nil }

type fakeSessionCache struct{}

func (fakeSessionCache) Set(ctx context.Context, session *model.MiningSession) error { return nil }
func (fakeSessionCache) Get(ctx context.Context, id string) (*model.MiningSession, error) {
	return nil, nil
}
func (fakeSessionCache) Delete(ctx context.Context, id string) error { return nil }

type fakeOccupancyCache struct{}

func (fakeOccupancyCache) Set(ctx context.Context, nodeID string, count int) error { return nil }
func (fakeOccupancyCache) Get(ctx context.Context, nodeID string) (int, bool, error) {
	return 0, false, nil
}
func (fakeOccupancyCache) Increment(ctx context.Context, nodeID string) error { return nil }

type fakeEchoCache struct {
	multiplier float64
	active     bool
	peekErr    error
}

func (c *fakeEchoCache) Grant(ctx context.Context, userID string, m float64, ttl time.Duration) error {
	c.multiplier, c.active = m, true
	return nil
}

func (c *fakeEchoCache) Peek(ctx context.Context, userID string) (float64, bool, error) {
	if c.peekErr != nil {
		return 1, false, c.peekErr
	}
	if !c.active {
		return 1, false, nil
	}
	return c.multiplier, true, nil
}

func (c *fakeEchoCache) Consume(ctx context.Context, userID string) (float64, bool, error) {
	if !c.active {
		return 1, false, nil
	}
	c.active = false
	return c.multiplier, true, nil
}

type fakeLeaderboard struct {
	mu     sync.Mutex
	shares map[string]float64
}

func newFakeLeaderboard() *fakeLeaderboard {
	return &fakeLeaderboard{shares: make(map[string]float64)}
}

func (l *fakeLeaderboard) AddShares(ctx context.Context, userID string, shares float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shares[userID] += shares
	return nil
}

func (l *fakeLeaderboard) GetTop(ctx context.Context, limit int) ([]cache.LeaderboardEntry, error) {
	return nil, nil
}

func (l *fakeLeaderboard) GetRank(ctx context.Context, userID string) (int64, error) {
	return -1, nil
}

type fakeChamber struct {
	bonus model.ChamberBonus
}

func (c *fakeChamber) BonusFor(ctx context.Context, userID string) model.ChamberBonus {
	return c.bonus
}

var (
	nodeLocation = model.LatLng{Lat: 6.5244, Lng: 3.3792}
	nearNode     = model.GeofenceSample{Lat: 6.52512, Lng: 3.3792} // ~80m away
	farFromNode  = model.GeofenceSample{Lat: 6.52575, Lng: 3.3792} // ~150m away
)

func miningNode() *model.Node {
	return &model.Node{
		ID:       "n_test",
		Name:     "Test Seam",
		Location: nodeLocation,
		Type: model.NodeType{
			BaseYieldPerMinute: 2.5,
			LockInMinutes:      10,
			MaxMiners:          5,
			Rarity:             model.RarityCommon,
		},
		OpenForMining: true,
	}
}

type testEnv struct {
	svc         *SessionService
	sessionRepo *fakeSessionRepo
	nodeRepo    *fakeNodeRepo
	echo        *fakeEchoCache
	leaderboard *fakeLeaderboard
	chamber     *fakeChamber
	now         time.Time
}

func newTestEnv(t *testing.T, nodes ...*model.Node) *testEnv {
	t.Helper()

	env := &testEnv{
		nodeRepo:    newFakeNodeRepo(nodes...),
		sessionRepo: newFakeSessionRepo(),
		echo:        &fakeEchoCache{},
		leaderboard: newFakeLeaderboard(),
		chamber:     &fakeChamber{bonus: model.NoBonus()},
		now:         time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}

	nodeSvc := NewNodeService(env.nodeRepo, env.sessionRepo, fakeNodeCache{}, fakeOccupancyCache{})
	env.svc = NewSessionService(
		nodeSvc, env.sessionRepo, fakeSessionCache{}, env.echo,
		env.leaderboard, fakeOccupancyCache{}, env.chamber,
		100, 5*time.Minute,
	)
	env.svc.now = func() time.Time { return env.now }
	return env
}

func (env *testEnv) freshSample(s model.GeofenceSample) model.GeofenceSample {
	s.Timestamp = env.now
	return s
}

func TestStartCreatesActiveSession(t *testing.T) {
	env := newTestEnv(t, miningNode())

	session, err := env.svc.Start(context.Background(), "u_1", "n_test", env.freshSample(nearNode))
	require.NoError(t, err)
	require.Equal(t, model.SessionActive, session.Status)
	require.Equal(t, 10.0, session.LockInMinutes)
	require.False(t, session.EchoTransmissionApplied)
	require.Equal(t, env.now, session.StartedAt)
}

func TestStartAppliesEchoTransmission(t *testing.T) {
	env := newTestEnv(t, miningNode())
	require.NoError(t, env.echo.Grant(context.Background(), "u_1", 0.5, time.Hour))

	session, err := env.svc.Start(context.Background(), "u_1", "n_test", env.freshSample(nearNode))
	require.NoError(t, err)
	require.True(t, session.EchoTransmissionApplied)
	require.Equal(t, 5.0, session.LockInMinutes)

	// The buff burns on use.
	_, active, err := env.echo.Consume(context.Background(), "u_1")
	require.NoError(t, err)
	require.False(t, active)
}

func TestStartFailureKeepsEchoBuff(t *testing.T) {
	env := newTestEnv(t, miningNode())
	require.NoError(t, env.echo.Grant(context.Background(), "u_1", 0.5, time.Hour))
	env.sessionRepo.createErr = errors.New("write concern error")

	_, err := env.svc.Start(context.Background(), "u_1", "n_test", env.freshSample(nearNode))
	require.Error(t, err)

	// The buff burns only for a session that actually exists.
	multiplier, active, err := env.echo.Peek(context.Background(), "u_1")
	require.NoError(t, err)
	require.True(t, active)
	require.Equal(t, 0.5, multiplier)
}

func TestStartToleratesEchoCacheErrors(t *testing.T) {
	env := newTestEnv(t, miningNode())
	env.echo.peekErr = errors.New("redis connection refused")

	session, err := env.svc.Start(context.Background(), "u_1", "n_test", env.freshSample(nearNode))
	require.NoError(t, err)
	require.False(t, session.EchoTransmissionApplied)
	require.Equal(t, 10.0, session.LockInMinutes)
}

func TestStartRejectedWhenTooFar(t *testing.T) {
	env := newTestEnv(t, miningNode())

	_, err := env.svc.Start(context.Background(), "u_1", "n_test", env.freshSample(farFromNode))
	var notEligible *NotEligibleError
	require.ErrorAs(t, err, &notEligible)
	require.Equal(t, model.StateTooFar, notEligible.State)
}

func TestStartRejectedWhenAlreadyPending(t *testing.T) {
	env := newTestEnv(t, miningNode())

	_, err := env.svc.Start(context.Background(), "u_1", "n_test", env.freshSample(nearNode))
	require.NoError(t, err)

	_, err = env.svc.Start(context.Background(), "u_1", "n_test", env.freshSample(nearNode))
	var notEligible *NotEligibleError
	require.ErrorAs(t, err, &notEligible)
	require.Equal(t, model.StatePending, notEligible.State)
}

func TestStartRejectsStaleSample(t *testing.T) {
	env := newTestEnv(t, miningNode())

	stale := nearNode
	stale.Timestamp = env.now.Add(-6 * time.Minute)
	_, err := env.svc.Start(context.Background(), "u_1", "n_test", stale)
	require.ErrorIs(t, err, ErrStaleLocation)
}

func TestStateForReportsHistory(t *testing.T) {
	env := newTestEnv(t, miningNode())

	session, err := env.svc.Start(context.Background(), "u_1", "n_test", env.freshSample(nearNode))
	require.NoError(t, err)

	loc := nearNode.LatLng()
	state, _, err := env.svc.StateFor(context.Background(), "u_1", "n_test", &loc)
	require.NoError(t, err)
	require.Equal(t, model.StatePending, state)

	_, err = env.sessionRepo.CancelActive(context.Background(), session.ID)
	require.NoError(t, err)

	state, _, err = env.svc.StateFor(context.Background(), "u_1", "n_test", &loc)
	require.NoError(t, err)
	require.Equal(t, model.StateCancelled, state)
}

func TestFinalizeHappyPath(t *testing.T) {
	env := newTestEnv(t, miningNode())
	env.chamber.bonus = model.ChamberBonus{HasBoost: true, ChamberLevel: 2, BoostMultiplier: 1.2}

	session, err := env.svc.Start(context.Background(), "u_1", "n_test", env.freshSample(nearNode))
	require.NoError(t, err)

	env.now = env.now.Add(11 * time.Minute)
	loc := nearNode.LatLng()
	result, err := env.svc.Finalize(context.Background(), session.ID, "u_1", &loc)
	require.NoError(t, err)

	// 2.5 yield/min * 10 min * 1.2 boost
	require.InDelta(t, 30.0, result.MinerSharesEarned, 1e-9)
	require.True(t, result.ChamberBonus.HasBoost)

	stored, err := env.sessionRepo.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, model.SessionCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)

	node, err := env.nodeRepo.GetByID(context.Background(), "n_test")
	require.NoError(t, err)
	require.Equal(t, 1, node.CompletedSessionCount)

	require.InDelta(t, 30.0, env.leaderboard.shares["u_1"], 1e-9)
}

func TestFinalizeSecondAttemptLosesRace(t *testing.T) {
	env := newTestEnv(t, miningNode())

	session, err := env.svc.Start(context.Background(), "u_1", "n_test", env.freshSample(nearNode))
	require.NoError(t, err)

	env.now = env.now.Add(11 * time.Minute)
	loc := nearNode.LatLng()
	_, err = env.svc.Finalize(context.Background(), session.ID, "u_1", &loc)
	require.NoError(t, err)

	_, err = env.svc.Finalize(context.Background(), session.ID, "u_1", &loc)
	require.ErrorIs(t, err, ErrNoActiveSession)

	// No double-count on the leaderboard.
	require.InDelta(t, 25.0, env.leaderboard.shares["u_1"], 1e-9)
}

func TestFinalizeBeforeLockInElapsed(t *testing.T) {
	env := newTestEnv(t, miningNode())

	session, err := env.svc.Start(context.Background(), "u_1", "n_test", env.freshSample(nearNode))
	require.NoError(t, err)

	env.now = env.now.Add(3 * time.Minute)
	loc := nearNode.LatLng()
	_, err = env.svc.Finalize(context.Background(), session.ID, "u_1", &loc)
	require.ErrorIs(t, err, ErrLockInNotElapsed)

	stored, err := env.sessionRepo.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, model.SessionActive, stored.Status)
}

func TestFinalizeOutOfRangeLeavesSessionActive(t *testing.T) {
	env := newTestEnv(t, miningNode())

	session, err := env.svc.Start(context.Background(), "u_1", "n_test", env.freshSample(nearNode))
	require.NoError(t, err)

	env.now = env.now.Add(11 * time.Minute)
	loc := farFromNode.LatLng()
	_, err = env.svc.Finalize(context.Background(), session.ID, "u_1", &loc)
	require.ErrorIs(t, err, ErrOutOfRange)

	// Still ACTIVE; walking back lets the miner finish.
	nearLoc := nearNode.LatLng()
	result, err := env.svc.Finalize(context.Background(), session.ID, "u_1", &nearLoc)
	require.NoError(t, err)
	require.InDelta(t, 25.0, result.MinerSharesEarned, 1e-9)
}

func TestFinalizeOwnershipAndPreconditions(t *testing.T) {
	env := newTestEnv(t, miningNode())

	session, err := env.svc.Start(context.Background(), "u_1", "n_test", env.freshSample(nearNode))
	require.NoError(t, err)

	env.now = env.now.Add(11 * time.Minute)
	loc := nearNode.LatLng()

	_, err = env.svc.Finalize(context.Background(), session.ID, "u_2", &loc)
	require.ErrorIs(t, err, ErrNotSessionOwner)

	_, err = env.svc.Finalize(context.Background(), session.ID, "u_1", nil)
	require.Error(t, err)

	_, err = env.svc.Finalize(context.Background(), "s_missing", "u_1", &loc)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCancelTransitionsOnce(t *testing.T) {
	env := newTestEnv(t, miningNode())

	session, err := env.svc.Start(context.Background(), "u_1", "n_test", env.freshSample(nearNode))
	require.NoError(t, err)

	cancelled, err := env.svc.Cancel(context.Background(), session.ID, "u_1")
	require.NoError(t, err)
	require.Equal(t, model.SessionCancelled, cancelled.Status)

	_, err = env.svc.Cancel(context.Background(), session.ID, "u_1")
	require.ErrorIs(t, err, ErrNoActiveSession)
}

func TestNodeFullAfterCapacityReached(t *testing.T) {
	node := miningNode()
	node.Type.MaxMiners = 1
	env := newTestEnv(t, node)

	first, err := env.svc.Start(context.Background(), "u_1", "n_test", env.freshSample(nearNode))
	require.NoError(t, err)

	env.now = env.now.Add(11 * time.Minute)
	loc := nearNode.LatLng()
	_, err = env.svc.Finalize(context.Background(), first.ID, "u_1", &loc)
	require.NoError(t, err)

	_, err = env.svc.Start(context.Background(), "u_2", "n_test", env.freshSample(nearNode))
	var notEligible *NotEligibleError
	require.ErrorAs(t, err, &notEligible)
	require.Equal(t, model.StateNodeFull, notEligible.State)
}
