package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fe-dox/biobb-api-client/internal/data"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "biobb:job:"

// ResultsCache remembers, per request hash, the token of a running job and
// the outputs of a finished one so an interrupted workflow can resume.
type ResultsCache struct {
	rdb           *redis.Client
	ProcessingTTL time.Duration
	ResultTTL     time.Duration
}

func (r ResultsCache) Get(key string) (data.Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*1)
	defer cancel()
	strResult, err := r.rdb.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return data.Record{Status: data.JobNotFound}, nil
		}
		return data.Record{}, err
	}
	var record data.Record
	if err := json.Unmarshal([]byte(strResult), &record); err != nil {
		return data.Record{}, err
	}
	return record, nil
}

func (r ResultsCache) GetStatus(key string) (data.JobStatus, error) {
	record, err := r.Get(key)
	if err != nil {
		return data.JobNotFound, err
	}
	return record.Status, nil
}

func (r ResultsCache) SetStatusProcessing(key string, token data.Token) error {
	return r.save(key, data.Record{Status: data.JobProcessing, Token: token}, r.ProcessingTTL)
}

func (r ResultsCache) SaveResult(key string, token data.Token, value data.Result) error {
	return r.save(key, data.Record{Status: data.JobDone, Token: token, Result: &value}, r.ResultTTL)
}

func (r ResultsCache) SaveFailure(key string, token data.Token, reason string) error {
	return r.save(key, data.Record{Status: data.JobFailed, Token: token, Error: reason}, r.ResultTTL)
}

func (r ResultsCache) save(key string, record data.Record, ttl time.Duration) error {
	parsedData, err := json.Marshal(record)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*1)
	defer cancel()
	return r.rdb.Set(ctx, keyPrefix+key, string(parsedData), ttl).Err()
}

func (r ResultsCache) Close() error {
	return r.rdb.Close()
}

func NewResultsCache(connectionUrl string) (*ResultsCache, error) {
	options, err := redis.ParseURL(connectionUrl)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(options)
	_, err = rdb.Ping(context.Background()).Result()
	if err != nil {
		return nil, err
	}
	return NewResultsCacheFromClient(rdb), nil
}

func NewResultsCacheFromClient(rdb *redis.Client) *ResultsCache {
	return &ResultsCache{
		rdb:           rdb,
		ProcessingTTL: 24 * time.Hour,
		ResultTTL:     7 * 24 * time.Hour,
	}
}
