package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"crimewatch/internal/credibility/models"
	id "crimewatch/pkg/domain"
	"crimewatch/pkg/platform/sentinel"
)

// applyScript checks the history hash for the report id and, on a miss,
// clamps and writes score and entry together. Returns {score, applied, delta}.
var applyScript = redis.NewScript(`
local existing = redis.call('HGET', KEYS[2], ARGV[1])
local current = tonumber(redis.call('GET', KEYS[1]) or ARGV[3])
if existing then
	return {current, 0, 0}
end
local nextScore = current + tonumber(ARGV[2])
if nextScore < tonumber(ARGV[4]) then nextScore = tonumber(ARGV[4]) end
if nextScore > tonumber(ARGV[5]) then nextScore = tonumber(ARGV[5]) end
local effective = nextScore - current
local entry = cjson.decode(ARGV[6])
entry['delta'] = effective
redis.call('SET', KEYS[1], nextScore)
redis.call('HSET', KEYS[2], ARGV[1], cjson.encode(entry))
return {nextScore, 1, effective}
`)

// RedisStore keeps each submitter's score in a string key and history in a
// hash keyed by report id, which is what makes Apply idempotent.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: "credibility"}
}

func (s *RedisStore) keys(submitterID id.SubmitterID) (score, history string) {
	base := s.prefix + ":{" + submitterID.String() + "}"
	return base + ":score", base + ":history"
}

func (s *RedisStore) Get(ctx context.Context, submitterID id.SubmitterID) (*models.Score, error) {
	scoreKey, historyKey := s.keys(submitterID)

	pipe := s.client.Pipeline()
	scoreCmd := pipe.Get(ctx, scoreKey)
	historyCmd := pipe.HGetAll(ctx, historyKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read credibility: %w", err)
	}

	raw, err := scoreCmd.Result()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read credibility score: %w", err)
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("parse credibility score: %w", err)
	}

	score := &models.Score{SubmitterID: submitterID, Value: value}
	for _, v := range historyCmd.Val() {
		var e models.Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, fmt.Errorf("decode credibility entry: %w", err)
		}
		score.History = append(score.History, e)
	}
	sort.Slice(score.History, func(i, j int) bool {
		return score.History[i].AppliedAt.Before(score.History[j].AppliedAt)
	})
	return score, nil
}

func (s *RedisStore) Apply(ctx context.Context, submitterID id.SubmitterID, entry models.Entry) (int, bool, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return 0, false, fmt.Errorf("marshal credibility entry: %w", err)
	}
	scoreKey, historyKey := s.keys(submitterID)

	res, err := applyScript.Run(ctx, s.client,
		[]string{scoreKey, historyKey},
		entry.ReportID.String(), entry.Requested,
		models.InitialScore, models.MinScore, models.MaxScore,
		string(payload),
	).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("apply credibility delta: %w", err)
	}
	if len(res) != 3 {
		return 0, false, fmt.Errorf("apply credibility delta: unexpected reply %v", res)
	}
	return int(res[0]), res[1] == 1, nil
}
