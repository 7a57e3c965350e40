package voxdoc

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const (
	projectKeyPrefix    = "voxdoc:project:"
	projectSetKey       = "voxdoc:projects"
	transcriptKeyPrefix = "voxdoc:transcript:"
	sessionKeyPrefix    = "voxdoc:session:"
	activeSessionsKey   = "voxdoc:active_sessions"

	maxPersistedTranscript = 500
)

// ProjectRecord is one saved document project.
type ProjectRecord struct {
	ID        string
	Name      string
	HTML      string
	Version   int64
	UpdatedAt time.Time
}

// ProjectStore persists projects, transcripts, and session bookkeeping in
// Redis. When Redis is unreachable at construction the store degrades to an
// in-process map, so single-machine use works with no infrastructure.
type ProjectStore struct {
	redis *redis.Client

	mu          sync.RWMutex
	memProjects map[string]*ProjectRecord
	memLogs     map[string][]TranscriptEntry

	sessionTTL time.Duration
	logger     *VoxdocLogger
}

// NewProjectStore connects to Redis at the configured address. A failed ping
// is not an error; the store falls back to memory and says so once.
func NewProjectStore(config *VoxdocConfig) *ProjectStore {
	store := &ProjectStore{
		memProjects: make(map[string]*ProjectRecord),
		memLogs:     make(map[string][]TranscriptEntry),
		sessionTTL:  config.SessionTTL,
		logger:      GetGlobalLogger().WithComponent("store"),
	}

	if config.RedisAddr == "" {
		return store
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		store.logger.Warnf("Redis unavailable at %s, using in-memory store: %v", config.RedisAddr, err)
		client.Close()
		return store
	}

	store.redis = client
	store.logger.Infof("Project store backed by Redis at %s", config.RedisAddr)
	return store
}

// UsingRedis reports whether the store is backed by Redis.
func (ps *ProjectStore) UsingRedis() bool {
	return ps.redis != nil
}

// SaveProject upserts one project record.
func (ps *ProjectStore) SaveProject(ctx context.Context, rec *ProjectRecord) *VoxdocError {
	if rec == nil || rec.ID == "" {
		return NewStoreError("project record needs an id")
	}
	rec.UpdatedAt = time.Now()

	if ps.redis == nil {
		ps.mu.Lock()
		saved := *rec
		ps.memProjects[rec.ID] = &saved
		ps.mu.Unlock()
		return nil
	}

	if err := ps.redis.HSet(ctx, projectKeyPrefix+rec.ID, map[string]interface{}{
		"name":       rec.Name,
		"html":       rec.HTML,
		"version":    rec.Version,
		"updated_at": rec.UpdatedAt.Format(time.RFC3339),
	}).Err(); err != nil {
		return WrapError(err, ErrCodeStoreUnavailable)
	}
	if err := ps.redis.SAdd(ctx, projectSetKey, rec.ID).Err(); err != nil {
		return WrapError(err, ErrCodeStoreUnavailable)
	}
	return nil
}

// LoadProject fetches one project record.
func (ps *ProjectStore) LoadProject(ctx context.Context, id string) (*ProjectRecord, *VoxdocError) {
	if ps.redis == nil {
		ps.mu.RLock()
		defer ps.mu.RUnlock()
		rec, ok := ps.memProjects[id]
		if !ok {
			return nil, NewStoreError("project not found").AddDetail("project_id", id)
		}
		loaded := *rec
		return &loaded, nil
	}

	fields, err := ps.redis.HGetAll(ctx, projectKeyPrefix+id).Result()
	if err != nil {
		return nil, WrapError(err, ErrCodeStoreUnavailable)
	}
	if len(fields) == 0 {
		return nil, NewStoreError("project not found").AddDetail("project_id", id)
	}

	rec := &ProjectRecord{
		ID:   id,
		Name: fields["name"],
		HTML: fields["html"],
	}
	if v, err := strconv.ParseInt(fields["version"], 10, 64); err == nil {
		rec.Version = v
	}
	if t, err := time.Parse(time.RFC3339, fields["updated_at"]); err == nil {
		rec.UpdatedAt = t
	}
	return rec, nil
}

// ListProjects returns all known project ids.
func (ps *ProjectStore) ListProjects(ctx context.Context) ([]string, *VoxdocError) {
	if ps.redis == nil {
		ps.mu.RLock()
		defer ps.mu.RUnlock()
		ids := make([]string, 0, len(ps.memProjects))
		for id := range ps.memProjects {
			ids = append(ids, id)
		}
		return ids, nil
	}

	ids, err := ps.redis.SMembers(ctx, projectSetKey).Result()
	if err != nil {
		return nil, WrapError(err, ErrCodeStoreUnavailable)
	}
	return ids, nil
}

// DeleteProject removes a project and its transcript.
func (ps *ProjectStore) DeleteProject(ctx context.Context, id string) *VoxdocError {
	if ps.redis == nil {
		ps.mu.Lock()
		delete(ps.memProjects, id)
		delete(ps.memLogs, id)
		ps.mu.Unlock()
		return nil
	}

	if err := ps.redis.Del(ctx, projectKeyPrefix+id, transcriptKeyPrefix+id).Err(); err != nil {
		return WrapError(err, ErrCodeStoreUnavailable)
	}
	if err := ps.redis.SRem(ctx, projectSetKey, id).Err(); err != nil {
		return WrapError(err, ErrCodeStoreUnavailable)
	}
	return nil
}

// AppendTranscript persists one transcript entry for a project, keeping only
// the most recent entries.
func (ps *ProjectStore) AppendTranscript(ctx context.Context, projectID string, entry TranscriptEntry) *VoxdocError {
	if ps.redis == nil {
		ps.mu.Lock()
		log := append(ps.memLogs[projectID], entry)
		if len(log) > maxPersistedTranscript {
			log = log[len(log)-maxPersistedTranscript:]
		}
		ps.memLogs[projectID] = log
		ps.mu.Unlock()
		return nil
	}

	payload, err := sonic.Marshal(entry)
	if err != nil {
		return WrapError(err, ErrCodeJSONParse)
	}
	key := transcriptKeyPrefix + projectID
	if err := ps.redis.RPush(ctx, key, payload).Err(); err != nil {
		return WrapError(err, ErrCodeStoreUnavailable)
	}
	if err := ps.redis.LTrim(ctx, key, -maxPersistedTranscript, -1).Err(); err != nil {
		return WrapError(err, ErrCodeStoreUnavailable)
	}
	return nil
}

// LoadTranscript returns a project's persisted transcript in order.
func (ps *ProjectStore) LoadTranscript(ctx context.Context, projectID string) ([]TranscriptEntry, *VoxdocError) {
	if ps.redis == nil {
		ps.mu.RLock()
		defer ps.mu.RUnlock()
		return append([]TranscriptEntry(nil), ps.memLogs[projectID]...), nil
	}

	raw, err := ps.redis.LRange(ctx, transcriptKeyPrefix+projectID, 0, -1).Result()
	if err != nil {
		return nil, WrapError(err, ErrCodeStoreUnavailable)
	}
	entries := make([]TranscriptEntry, 0, len(raw))
	for _, item := range raw {
		var entry TranscriptEntry
		if err := sonic.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// TouchSession records live-session activity with a TTL so stale sessions
// age out of the active set.
func (ps *ProjectStore) TouchSession(ctx context.Context, sessionID string, state ConnectionState) *VoxdocError {
	if ps.redis == nil {
		return nil
	}

	key := sessionKeyPrefix + sessionID
	if err := ps.redis.HSet(ctx, key, map[string]interface{}{
		"state":         string(state),
		"last_activity": time.Now().Format(time.RFC3339),
	}).Err(); err != nil {
		return WrapError(err, ErrCodeStoreUnavailable)
	}
	if err := ps.redis.SAdd(ctx, activeSessionsKey, sessionID).Err(); err != nil {
		return WrapError(err, ErrCodeStoreUnavailable)
	}
	if err := ps.redis.Expire(ctx, key, ps.sessionTTL).Err(); err != nil {
		return WrapError(err, ErrCodeStoreUnavailable)
	}
	return nil
}

// EndSession removes a session from the active set.
func (ps *ProjectStore) EndSession(ctx context.Context, sessionID string) {
	if ps.redis == nil {
		return
	}
	ps.redis.Del(ctx, sessionKeyPrefix+sessionID)
	ps.redis.SRem(ctx, activeSessionsKey, sessionID)
}

// Close releases the Redis connection if one is held.
func (ps *ProjectStore) Close() error {
	if ps.redis == nil {
		return nil
	}
	return ps.redis.Close()
}
