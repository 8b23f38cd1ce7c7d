package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/model"
	"github.com/valkey-io/valkey-go"
)

const defaultKeyPrefix = "bwlens:"

// ValkeyStore keeps one JSON value per session and a sorted set of ids
// scored by timestamp.
type ValkeyStore struct {
	client valkey.Client
	prefix string
	now    func() time.Time
}

// ValkeyConfig holds connection settings.
type ValkeyConfig struct {
	Address   string
	Password  string
	KeyPrefix string
}

// NewValkeyStore connects and pings the server.
func NewValkeyStore(ctx context.Context, cfg ValkeyConfig) (*ValkeyStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.Address},
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping valkey: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &ValkeyStore{client: client, prefix: prefix, now: time.Now}, nil
}

var _ Store = (*ValkeyStore)(nil)

func (s *ValkeyStore) sessionKey(id string) string {
	return s.prefix + "session:" + id
}

func (s *ValkeyStore) indexKey() string {
	return s.prefix + "sessions"
}

func encodeSession(sess model.Session) (string, error) {
	data, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	return string(data), nil
}

func decodeSession(raw string) (*model.Session, error) {
	var sess model.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// Save implements Store.
func (s *ValkeyStore) Save(ctx context.Context, result *model.AnalysisResult, fileNames []string) (*model.Session, error) {
	sess := NewSession(result, fileNames, s.now())
	value, err := encodeSession(sess)
	if err != nil {
		return nil, err
	}

	cmds := valkey.Commands{
		s.client.B().Set().Key(s.sessionKey(sess.ID)).Value(value).Build(),
		s.client.B().Zadd().Key(s.indexKey()).ScoreMember().ScoreMember(float64(sess.Timestamp), sess.ID).Build(),
	}
	for _, resp := range s.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return nil, fmt.Errorf("save session %s: %w", sess.ID, err)
		}
	}
	return &sess, nil
}

// Get implements Store.
func (s *ValkeyStore) Get(ctx context.Context, id string) (*model.Session, error) {
	raw, err := s.client.Do(ctx, s.client.B().Get().Key(s.sessionKey(id)).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return decodeSession(raw)
}

// List implements Store. Index entries whose value has expired or been
// removed out of band are skipped.
func (s *ValkeyStore) List(ctx context.Context) ([]model.Session, error) {
	ids, err := s.client.Do(ctx, s.client.B().Zrevrange().Key(s.indexKey()).Start(0).Stop(-1).Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]model.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		sessions = append(sessions, *sess)
	}
	sortNewestFirst(sessions)
	return sessions, nil
}

// Delete implements Store.
func (s *ValkeyStore) Delete(ctx context.Context, id string) error {
	removed, err := s.client.Do(ctx, s.client.B().Zrem().Key(s.indexKey()).Member(id).Build()).AsInt64()
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.sessionKey(id)).Build()).Error(); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if removed == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

// Clear implements Store.
func (s *ValkeyStore) Clear(ctx context.Context) error {
	ids, err := s.client.Do(ctx, s.client.B().Zrange().Key(s.indexKey()).Min("0").Max("-1").Build()).AsStrSlice()
	if err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	keys := []string{s.indexKey()}
	for _, id := range ids {
		keys = append(keys, s.sessionKey(id))
	}
	if err := s.client.Do(ctx, s.client.B().Del().Key(keys...).Build()).Error(); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	return nil
}

// Close releases the connection.
func (s *ValkeyStore) Close() {
	s.client.Close()
}
