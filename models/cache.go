package models

import (
	"errors"
	"time"

	"text2phenotype.com/postag/redis"
)

const ModelsDB redis.DB = 3

// trainingLockExpiration covers training a large corpus while holding the lock.
const trainingLockExpiration = 5 * time.Minute

type RedisCache struct {
	Client     *redis.Client
	Expiration time.Duration
}

func (cache RedisCache) Get(key string) ([]byte, error) {
	data, err := cache.Client.GetBytes(key)
	if errors.Is(err, redis.ErrNotFound) {
		return nil, ErrCacheMiss
	}
	return data, err
}

func (cache RedisCache) Set(key string, data []byte) error {
	return cache.Client.SetBytes(key, data, cache.Expiration)
}

func (cache RedisCache) Lock(key string) (func() error, error) {
	release, err := cache.Client.LockFor(key, trainingLockExpiration)
	if err != nil {
		return nil, err
	}
	return release, nil
}
